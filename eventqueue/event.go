// Package eventqueue is the single-threaded consumer every scripting call,
// client request, and process-output line is funneled through, so the
// registry is only ever mutated from one goroutine.
package eventqueue

import "github.com/neopult/neopult/scripting"

// Event is the tagged union the Dispatcher consumes. Each concrete type
// corresponds to one of spec.md §4.4's event kinds.
type Event interface {
	isEvent()
}

// CliCommand is one line read from the operator console.
type CliCommand struct {
	Line  string
	Reply chan string
}

func (CliCommand) isEvent() {}

// ProcessOutput is one whole line of output from a supervised child,
// destined for the plugin callback that requested it.
type ProcessOutput struct {
	Line           string
	ProcessName    string
	PluginInstance string
	Callback       scripting.CallbackHandle
}

func (ProcessOutput) isEvent() {}

// FetchSystemInfo requests a full registry snapshot for a control-plane
// connection (sent once right after auth, and whenever a client
// resynchronizes after a lagged notification stream).
type FetchSystemInfo struct {
	Reply chan SystemInfo
}

func (FetchSystemInfo) isEvent() {}

// CallAction identifies one action invocation request plus where to send
// its result.
type CallAction struct {
	PluginInstance string
	Module         string
	Action         string
	Reply          chan CallActionResult
}

// CallActionResult is what a CallAction reply carries: spec's
// Response{request_id, success, message?} minus request_id, which the
// caller (wsserver) already owns.
type CallActionResult struct {
	Success bool
	Message string
}

// ClientCommand wraps a client request forwarded from the control plane.
// Only CallAction exists today; the wrapper exists so future client
// request kinds don't change the Event union's shape.
type ClientCommand struct {
	CallAction CallAction
}

func (ClientCommand) isEvent() {}
