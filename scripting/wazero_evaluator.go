package scripting

import (
	"context"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/neopult/neopult/errors"
)

// wazeroEvaluator hosts plugin WASM modules on a single shared wazero
// runtime. Guest↔host values cross as JSON-encoded (ptr, len) pairs in
// guest linear memory, the same convention ats/wasm/engine.go uses for
// qntx-core: the guest exports wasm_alloc/wasm_free, the host writes into
// and reads out of the space they allocate.
type wazeroEvaluator struct {
	runtime wazero.Runtime
	host    api.Module

	mu      sync.Mutex
	modules map[string]api.Module
}

// NewWazeroEvaluator builds a runtime, registers the host capability
// surface described by env under the "env" import namespace, and returns
// an Evaluator ready to load plugin modules.
func NewWazeroEvaluator(ctx context.Context, env *HostEnv) (*wazeroEvaluator, error) {
	runtime := wazero.NewRuntime(ctx)

	host, err := buildHostModule(ctx, runtime, env)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(err, "failed to build host module")
	}

	return &wazeroEvaluator{
		runtime: runtime,
		host:    host,
		modules: make(map[string]api.Module),
	}, nil
}

func (e *wazeroEvaluator) LoadModule(ctx context.Context, instanceID string, path string) error {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read plugin module %s", path)
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.Wrapf(err, "failed to compile plugin module %s", path)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(instanceID))
	if err != nil {
		return errors.Wrapf(err, "failed to instantiate plugin module %s", path)
	}

	e.mu.Lock()
	e.modules[instanceID] = mod
	e.mu.Unlock()
	return nil
}

func (e *wazeroEvaluator) InvokeCallback(ctx context.Context, handle CallbackHandle, args ...Value) (Value, error) {
	e.mu.Lock()
	mod, ok := e.modules[handle.ModuleInstanceID]
	e.mu.Unlock()
	if !ok {
		return Value{}, errors.Newf("unknown plugin module instance %s", handle.ModuleInstanceID)
	}

	argBytes, err := EncodeArgs(args)
	if err != nil {
		return Value{}, errors.Wrap(err, "failed to encode callback arguments")
	}

	resultBytes, err := callGuestFunction(ctx, mod, handle.ExportName, argBytes)
	if err != nil {
		return Value{}, errors.Wrapf(err, "callback %s failed", handle.ExportName)
	}
	if len(resultBytes) == 0 {
		return Nil(), nil
	}
	return Decode(resultBytes)
}

func (e *wazeroEvaluator) Close(ctx context.Context, instanceID string) error {
	e.mu.Lock()
	mod, ok := e.modules[instanceID]
	delete(e.modules, instanceID)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return mod.Close(ctx)
}

// CloseRuntime releases the shared wazero runtime and every instantiated
// module. Called once at daemon shutdown.
func (e *wazeroEvaluator) CloseRuntime(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// callGuestFunction implements the ptr/len calling convention: allocate
// input bytes in guest memory via wasm_alloc, call the named export with
// (ptr, len), unpack the (ptr<<32)|len result, read and copy it out, then
// free both buffers via wasm_free.
func callGuestFunction(ctx context.Context, mod api.Module, fnName string, input []byte) ([]byte, error) {
	allocFn := mod.ExportedFunction("wasm_alloc")
	freeFn := mod.ExportedFunction("wasm_free")
	targetFn := mod.ExportedFunction(fnName)
	if allocFn == nil || freeFn == nil || targetFn == nil {
		return nil, errors.Newf("guest module missing export %q (or wasm_alloc/wasm_free)", fnName)
	}

	inputLen := uint64(len(input))
	var inputPtr uint64
	if inputLen > 0 {
		results, err := allocFn.Call(ctx, inputLen)
		if err != nil {
			return nil, errors.Wrap(err, "wasm_alloc failed")
		}
		inputPtr = results[0]
		if inputPtr == 0 {
			return nil, errors.New("wasm_alloc returned null")
		}
		if !mod.Memory().Write(uint32(inputPtr), input) {
			freeFn.Call(ctx, inputPtr, inputLen)
			return nil, errors.New("guest memory write out of range")
		}
	}

	results, err := targetFn.Call(ctx, inputPtr, inputLen)
	if inputLen > 0 {
		freeFn.Call(ctx, inputPtr, inputLen)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "call to %s failed", fnName)
	}

	packed := results[0]
	resultPtr := uint32(packed >> 32)
	resultLen := uint32(packed & 0xFFFFFFFF)
	if resultPtr == 0 || resultLen == 0 {
		return nil, nil
	}

	resultBytes, ok := mod.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, errors.New("guest memory read out of range")
	}
	out := make([]byte, len(resultBytes))
	copy(out, resultBytes)
	freeFn.Call(ctx, uint64(resultPtr), uint64(resultLen))
	return out, nil
}
