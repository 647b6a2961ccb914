package eventqueue

import (
	"context"
	"strings"

	"github.com/neopult/neopult/logger"
	"github.com/neopult/neopult/scripting"
)

// Dispatcher is the single-threaded event consumer described in spec §4.4,
// grounded line-for-line on plugin_system.rs's event_loop/handle_event: it
// drains deferred tasks, dispatches the next event outside the async
// driver, and sweeps orphaned registry handles every expireEvery turns.
type Dispatcher struct {
	Registry *scripting.Registry
	Eval     scripting.Evaluator

	Events   chan Event
	Shutdown chan struct{}

	// OnShutdown is invoked once, synchronously, after the loop exits and
	// before Run returns — running every plugin instance's on_cleanup
	// callback and waiting for the process supervisor to drain, per §4.4's
	// shutdown sequence. The caller supplies it so eventqueue doesn't need
	// to import process/shutdown directly.
	OnShutdown func(ctx context.Context)

	// Audit records every action-call outcome, if set. Declared as an
	// interface (rather than importing the audit package directly) for
	// the same reason OnShutdown is a func: eventqueue stays the package
	// everything else depends on, not the other way around.
	Audit AuditRecorder
}

// AuditRecorder is satisfied by *audit.Log.
type AuditRecorder interface {
	Record(pluginInstance, module, action string, success bool, message string)
}

// HostSink adapts an event channel into the scripting.ProcessOutputSink
// interface, so a spawned process's tailed output lines reach the same
// single-threaded dispatcher every other event does, instead of invoking
// guest callbacks directly from the supervisor's reader goroutine.
type HostSink struct {
	Events chan<- Event
}

// Dispatch implements scripting.ProcessOutputSink.
func (s HostSink) Dispatch(pluginInstance, processName, line string, callback scripting.CallbackHandle) {
	s.Events <- ProcessOutput{
		Line:           line,
		ProcessName:    processName,
		PluginInstance: pluginInstance,
		Callback:       callback,
	}
}

// NewDispatcher creates a dispatcher with a reasonably deep event buffer —
// deep enough that a burst of process-output lines doesn't block the
// readers that produced them.
func NewDispatcher(registry *scripting.Registry, eval scripting.Evaluator) *Dispatcher {
	return &Dispatcher{
		Registry: registry,
		Eval:     eval,
		Events:   make(chan Event, 256),
		Shutdown: make(chan struct{}),
	}
}

// Run blocks until Shutdown is closed. It must run on its own goroutine;
// every Event is handled synchronously on that same goroutine so the
// registry never sees concurrent mutation from script callbacks.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		d.Registry.DrainDeferred(ctx, d.Eval)

		select {
		case <-d.Shutdown:
			if d.OnShutdown != nil {
				d.OnShutdown(ctx)
			}
			return
		case ev := <-d.Events:
			d.handle(ctx, ev)
			if d.Registry.Tick() {
				d.Registry.ExpireOrphaned(ctx, d.Eval)
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case CliCommand:
		e.Reply <- d.handleCliCommand(e.Line)
	case ProcessOutput:
		d.handleProcessOutput(ctx, e)
	case FetchSystemInfo:
		e.Reply <- BuildSystemInfo(d.Registry)
	case ClientCommand:
		d.handleCallAction(ctx, e.CallAction)
	default:
		logger.ScriptingWarnw("dispatcher received an unrecognized event type")
	}
}

func (d *Dispatcher) handleCliCommand(line string) string {
	switch {
	case line == "actions":
		return formatActions(d.Registry)
	case line == "statuses":
		return formatStatuses(d.Registry)
	case strings.HasPrefix(line, "call "):
		return d.handleCliCall(strings.TrimPrefix(line, "call "))
	default:
		return "unknown command"
	}
}

func (d *Dispatcher) handleCliCall(id string) string {
	parts := strings.SplitN(id, "::", 3)
	if len(parts) != 3 {
		return "unknown command"
	}
	reply := make(chan CallActionResult, 1)
	d.handleCallAction(context.Background(), CallAction{
		PluginInstance: parts[0],
		Module:         parts[1],
		Action:         parts[2],
		Reply:          reply,
	})
	result := <-reply
	if result.Success {
		return "action called successfully"
	}
	return "error when calling action: " + result.Message
}

func (d *Dispatcher) handleCallAction(ctx context.Context, call CallAction) {
	result := d.invokeAction(ctx, call.PluginInstance, call.Module, call.Action)
	if call.Reply != nil {
		call.Reply <- result
	}
}

func (d *Dispatcher) invokeAction(ctx context.Context, pluginInstance, module, action string) CallActionResult {
	inst, ok := d.Registry.Instance(pluginInstance)
	if !ok {
		return CallActionResult{Success: false, Message: "unknown plugin instance " + pluginInstance}
	}
	m, ok := inst.Modules[module]
	if !ok {
		return CallActionResult{Success: false, Message: "unknown module " + module}
	}
	a, ok := m.Actions[action]
	if !ok {
		return CallActionResult{Success: false, Message: "unknown action " + action}
	}
	var result CallActionResult
	if _, err := d.Eval.InvokeCallback(ctx, a.Handle); err != nil {
		result = CallActionResult{Success: false, Message: err.Error()}
	} else {
		result = CallActionResult{Success: true}
	}

	if d.Audit != nil {
		d.Audit.Record(pluginInstance, module, action, result.Success, result.Message)
	}
	return result
}

func (d *Dispatcher) handleProcessOutput(ctx context.Context, e ProcessOutput) {
	if _, err := d.Eval.InvokeCallback(ctx, e.Callback, scripting.StringValue(e.Line)); err != nil {
		logger.ScriptingWarnw("process output callback failed",
			logger.FieldPluginInstance, e.PluginInstance, "process", e.ProcessName, "error", err)
	}
}

func formatActions(r *scripting.Registry) string {
	var b strings.Builder
	for _, inst := range r.Instances() {
		for _, name := range moduleNames(inst) {
			m := inst.Modules[name]
			for _, actionName := range actionNames(m) {
				b.WriteString(inst.ID + "::" + m.Name + "::" + actionName + "\n")
			}
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatStatuses(r *scripting.Registry) string {
	var b strings.Builder
	for _, inst := range r.Instances() {
		for _, name := range moduleNames(inst) {
			m := inst.Modules[name]
			status := m.Status
			if status == "" {
				status = "unknown"
			}
			b.WriteString(inst.ID + "::" + m.Name + " -- " + status + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func moduleNames(inst *scripting.PluginInstance) []string {
	return sortedKeys(inst.Modules)
}

func actionNames(m *scripting.Module) []string {
	return sortedActionKeys(m.Actions)
}
