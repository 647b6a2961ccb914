package shutdown

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
)

// WaitForSignal blocks for SIGINT/SIGTERM. On the first signal it calls
// Signal and returns, letting the caller run its graceful-shutdown
// sequence (notably WaitForCleanup). On a second signal, received at any
// point after the first, the process exits immediately with status 1 — grounded on cmd/qntx/commands/server.go's
// first-Ctrl+C-graceful/second-Ctrl+C-forces-exit pattern, which itself
// matches original main.rs's `tokio::select!` over shutdown_wait_rx.recv()
// vs. a second signal::ctrl_c().
func (c *Coordinator) WaitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh
	pterm.Info.Println("got interrupt, shutting down gracefully (press again to force)")
	c.Signal()

	go func() {
		<-sigCh
		pterm.Warning.Println("got second interrupt, forcing shutdown")
		os.Exit(1)
	}()
}
