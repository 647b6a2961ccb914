package scripting

import "context"

// CallbackHandle identifies one exported guest function: a module instance
// plus the name it exported its callback under. This stands in for a
// first-class function value, which wazero's guest/host boundary has no
// direct equivalent for.
type CallbackHandle struct {
	ModuleInstanceID string
	ExportName       string
}

// Evaluator invokes guest callbacks. Production code uses wazeroEvaluator;
// tests use fakeEvaluator to record and replay calls without a real WASM
// runtime.
type Evaluator interface {
	// LoadModule compiles and instantiates the WASM file at path and
	// registers it under instanceID, the ModuleInstanceID new CallbackHandles
	// reference.
	LoadModule(ctx context.Context, instanceID string, path string) error
	// InvokeCallback calls the guest function named by handle with args and
	// returns its single return Value.
	InvokeCallback(ctx context.Context, handle CallbackHandle, args ...Value) (Value, error)
	// Close releases all resources held for a module instance.
	Close(ctx context.Context, instanceID string) error
}
