// Package shutdown coordinates graceful termination across the event
// loop, control-plane listeners, and the console reader. Grounded on
// main.rs's ShutdownChannels: a broadcast signal fans the "start shutting
// down" notice out to every listener, and a reference-counted wait group
// mirrors its shutdown_wait_sender mpsc::Sender<()> — every goroutine
// doing cleanup work holds a Token until it's finished, and WaitForCleanup
// unblocks once every Token has been Released, the same way the original's
// shutdown_wait_rx.recv() only returns once every sender clone is dropped.
package shutdown

import "sync"

// Coordinator is safe for concurrent use.
type Coordinator struct {
	once     sync.Once
	signaled chan struct{}
	wg       sync.WaitGroup
}

// NewCoordinator returns a Coordinator with no pending cleanup tokens.
func NewCoordinator() *Coordinator {
	return &Coordinator{signaled: make(chan struct{})}
}

// Signal closes the shutdown channel exactly once. Safe to call more than
// once (later calls are no-ops), mirroring a broadcast::Sender::send that's
// only meaningfully observed the first time.
func (c *Coordinator) Signal() {
	c.once.Do(func() { close(c.signaled) })
}

// Done returns a channel that's closed once Signal has been called, for
// goroutines to select on alongside their normal work.
func (c *Coordinator) Done() <-chan struct{} {
	return c.signaled
}

// Token must be held by a goroutine performing shutdown cleanup and
// Released when that cleanup completes. WaitForCleanup blocks until every
// outstanding Token has been released, mirroring a dropped
// shutdown_wait_sender clone.
type Token struct {
	c    *Coordinator
	once sync.Once
}

// NewToken registers one unit of pending cleanup work.
func (c *Coordinator) NewToken() *Token {
	c.wg.Add(1)
	return &Token{c: c}
}

// Release marks this token's cleanup as complete. Safe to call more than
// once.
func (t *Token) Release() {
	t.once.Do(t.c.wg.Done)
}

// WaitForCleanup blocks until every issued Token has been released.
func (c *Coordinator) WaitForCleanup() {
	c.wg.Wait()
}
