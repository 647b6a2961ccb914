package scripting

import (
	"context"
	"sync"
)

// recordedCall is one InvokeCallback call captured by fakeEvaluator.
type recordedCall struct {
	Handle CallbackHandle
	Args   []Value
}

// fakeEvaluator is an Evaluator for tests: LoadModule is a no-op, and
// InvokeCallback records the call and returns a pre-programmed response
// (or Nil if none was set for that export name).
type fakeEvaluator struct {
	mu        sync.Mutex
	loaded    map[string]string // instanceID -> path
	calls     []recordedCall
	responses map[string]Value
	errors    map[string]error
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{
		loaded:    make(map[string]string),
		responses: make(map[string]Value),
		errors:    make(map[string]error),
	}
}

func (e *fakeEvaluator) LoadModule(ctx context.Context, instanceID string, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded[instanceID] = path
	return nil
}

func (e *fakeEvaluator) InvokeCallback(ctx context.Context, handle CallbackHandle, args ...Value) (Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, recordedCall{Handle: handle, Args: args})
	if err, ok := e.errors[handle.ExportName]; ok {
		return Value{}, err
	}
	if v, ok := e.responses[handle.ExportName]; ok {
		return v, nil
	}
	return Nil(), nil
}

func (e *fakeEvaluator) Close(ctx context.Context, instanceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.loaded, instanceID)
	return nil
}

func (e *fakeEvaluator) setResponse(export string, v Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[export] = v
}

func (e *fakeEvaluator) callsFor(export string) []recordedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []recordedCall
	for _, c := range e.calls {
		if c.Handle.ExportName == export {
			out = append(out, c)
		}
	}
	return out
}
