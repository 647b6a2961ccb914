package scripting

import (
	"context"
	"strconv"
	"sync"

	"github.com/neopult/neopult/logger"
)

// Store is a script-visible cell holding one opaque Value plus a set of
// subscriber callbacks. A Set triggers every currently-registered
// subscriber exactly once with the new value; subscribers may
// subscribe/unsubscribe from within a callback without affecting the
// in-progress dispatch — the subscriber set is snapshotted before any
// callback in the batch runs.
type Store struct {
	mu          sync.Mutex
	value       Value
	subscribers map[string]CallbackHandle
	nextSubID   int
}

// NewStore creates a store holding initial.
func NewStore(initial Value) *Store {
	return &Store{
		value:       initial,
		subscribers: make(map[string]CallbackHandle),
	}
}

// Get returns the current value.
func (s *Store) Get() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and returns a snapshot of subscriber handles to
// invoke with it. The caller (host.go) invokes them outside the lock, since
// invoking a guest callback may itself call back into the store.
func (s *Store) Set(value Value) []CallbackHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value

	snapshot := make([]CallbackHandle, 0, len(s.subscribers))
	for _, h := range s.subscribers {
		snapshot = append(snapshot, h)
	}
	return snapshot
}

// Subscribe registers a callback and returns an opaque subscription id
// scripts use to Unsubscribe later.
func (s *Store) Subscribe(handle CallbackHandle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := strconv.Itoa(s.nextSubID)
	s.subscribers[id] = handle
	return id
}

// Unsubscribe removes a previously-registered subscription.
func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
}

// notifySubscribers invokes every handle in handles with value, logging and
// continuing past individual callback failures so one broken subscriber
// cannot block the others.
func notifySubscribers(ctx context.Context, eval Evaluator, handles []CallbackHandle, value Value) {
	for _, h := range handles {
		if _, err := eval.InvokeCallback(ctx, h, value); err != nil {
			logger.ScriptingWarnw("store subscriber callback failed", "export", h.ExportName, "error", err)
		}
	}
}
