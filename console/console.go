// Package console is the operator-facing stdin CLI: read a line, tokenize
// it shell-style, push it onto the event queue as a CliCommand, print the
// reply. Grounded on plugin_system.rs's CliCommand handling and teacher's
// use of kballard/go-shellquote for quote-aware line splitting
// (graph/query.go's BuildFromQuery).
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/neopult/neopult/eventqueue"
	"github.com/neopult/neopult/logger"
)

// Console reads lines from In and writes prompts/replies to Out.
type Console struct {
	In     io.Reader
	Out    io.Writer
	Events chan<- eventqueue.Event
}

// New wires a Console to the dispatcher's event channel.
func New(in io.Reader, out io.Writer, events chan<- eventqueue.Event) *Console {
	return &Console{In: in, Out: out, Events: events}
}

// Run blocks reading lines from In until it's closed or ctx is canceled,
// dispatching each non-empty line as a CliCommand and printing its reply.
// Supported commands: "actions", "statuses", "call <instance>::<module>::<action>".
func (c *Console) Run(ctx context.Context) {
	lines := make(chan string)
	go c.scan(lines)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.handle(line)
		}
	}
}

func (c *Console) scan(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(c.In)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func (c *Console) handle(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	// shellquote.Split round-trips the tokens back into a single
	// space-joined command: it exists here so a quoted argument (e.g. a
	// call id containing a space) is tokenized the way a shell would,
	// matching teacher's fallback-on-parse-failure behavior.
	args, err := shellquote.Split(trimmed)
	if err != nil {
		logger.ScriptingWarnw("console: quote parsing failed, using raw line", "line", trimmed, "error", err)
		args = strings.Fields(trimmed)
	}
	normalized := strings.Join(args, " ")

	reply := make(chan string, 1)
	c.Events <- eventqueue.CliCommand{Line: normalized, Reply: reply}
	fmt.Fprintln(c.Out, <-reply)
}
