package scripting

import (
	"context"
	"crypto/rand"
	"html"
	"math/big"
	"strconv"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/neopult/neopult/config"
	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/logger"
	"github.com/neopult/neopult/notify"
	"github.com/neopult/neopult/process"
	"github.com/neopult/neopult/wm"
)

// HostEnv bundles every subsystem a host function may need to reach: the
// plugin registry itself, the window manager, the process supervisor, and
// the channel's static environment. One HostEnv is shared by every plugin
// instance's guest module.
type HostEnv struct {
	Registry   *Registry
	WM         *wm.Manager
	Supervisor *process.Supervisor
	Env        *config.EnvConfig

	// Bus publishes module state-mutation notifications to every connected
	// control-plane session, if set. Nil in tests that don't exercise the
	// notification path.
	Bus *notify.Bus

	// Sink forwards tailed process output lines onto the event queue, if
	// set. Declared as an interface (rather than importing eventqueue
	// directly) for the same dependency-direction reason AuditRecorder
	// lives in eventqueue instead of audit: scripting stays the package
	// everything else builds on top of.
	Sink ProcessOutputSink

	// processes tracks spawned process.Handle values by an opaque handle id
	// so guest scripts can reference them in later calls without leaking a
	// host pointer across the boundary.
	processes   map[string]*process.Handle
	nextProcess int
}

// ProcessOutputSink is satisfied by eventqueue.HostSink.
type ProcessOutputSink interface {
	Dispatch(pluginInstance, processName, line string, callback CallbackHandle)
}

// defaultClaimTimeoutMs is the claim_window poll deadline used when a script
// omits opts.timeout_ms.
const defaultClaimTimeoutMs = 5000

// alphanumericAlphabet matches api.generate_token's "random alphanumeric
// string" requirement.
const alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func generateToken(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphanumericAlphabet))))
		if err != nil {
			return "", errors.Wrap(err, "failed to generate random token")
		}
		out[i] = alphanumericAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// hostFn is the shape every capability-surface function is implemented
// with: it receives the calling plugin instance's id (derived from the
// guest module's name, set at LoadModule time) and its decoded arguments,
// and returns a single Value plus an error the guest sees as a failure.
type hostFn func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error)

// buildHostModule registers every capability-surface function under the
// "env" import namespace guest modules import from. Each is wrapped with
// the same ptr/len JSON protocol callGuestFunction uses in the other
// direction.
func buildHostModule(ctx context.Context, runtime wazero.Runtime, env *HostEnv) (api.Module, error) {
	if env.processes == nil {
		env.processes = make(map[string]*process.Handle)
	}

	builder := runtime.NewHostModuleBuilder("env")
	for name, fn := range hostFunctions {
		defineHostFunc(builder, name, env, fn)
	}
	return builder.Instantiate(ctx)
}

// defineHostFunc wraps fn in the (ptr,len)->(ptr<<32|len) ABI: decode the
// JSON-encoded argument array from guest memory, call fn, encode its
// result, allocate space for it in the SAME guest module via its own
// wasm_alloc so the guest can free it, and return the packed pointer/len.
func defineHostFunc(builder wazero.HostModuleBuilder, name string, env *HostEnv, fn hostFn) {
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			ptr := uint32(stack[0])
			length := uint32(stack[1])

			var result Value
			var callErr error

			argBytes, ok := mod.Memory().Read(ptr, length)
			if !ok {
				callErr = errors.New("host call: guest memory read out of range")
			} else {
				args, err := DecodeArgs(argBytes)
				if err != nil {
					callErr = errors.Wrap(err, "host call: failed to decode arguments")
				} else {
					result, callErr = fn(ctx, env, mod.Name(), args)
				}
			}

			if callErr != nil {
				logger.ScriptingWarnw("host function failed", "function", name, "instance", mod.Name(), "error", callErr)
				result = Value{Kind: KindTable, Table: map[string]Value{"error": StringValue(callErr.Error())}}
			}

			stack[0] = packResult(ctx, mod, result)
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64}).
		Export(name)
}

// packResult encodes v and writes it into mod's own linear memory via its
// wasm_alloc export, returning the (ptr<<32)|len packed result the guest
// frees with wasm_free, exactly as callGuestFunction expects of a guest
// export's return value.
func packResult(ctx context.Context, mod api.Module, v Value) uint64 {
	data, err := Encode(v)
	if err != nil {
		return 0
	}
	allocFn := mod.ExportedFunction("wasm_alloc")
	if allocFn == nil {
		return 0
	}
	results, err := allocFn.Call(ctx, uint64(len(data)))
	if err != nil || results[0] == 0 {
		return 0
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		return 0
	}
	return (uint64(ptr) << 32) | uint64(len(data))
}

func tableArg(args []Value, i int) map[string]Value {
	if i >= len(args) || args[i].Kind != KindTable {
		return nil
	}
	return args[i].Table
}

func stringArg(args []Value, i int) string {
	if i >= len(args) {
		return ""
	}
	return args[i].String
}

func numberArg(args []Value, i int) float64 {
	if i >= len(args) {
		return 0
	}
	return args[i].Number
}

// optTableString reads an optional string field out of an opts table,
// returning "" if the table is nil or the field is absent/non-string.
func optTableString(table map[string]Value, key string) string {
	if table == nil {
		return ""
	}
	v, ok := table[key]
	if !ok || v.Kind != KindString {
		return ""
	}
	return v.String
}

func callbackArg(instanceID string, args []Value, i int) CallbackHandle {
	return CallbackHandle{ModuleInstanceID: instanceID, ExportName: stringArg(args, i)}
}

// hostFunctions is the full capability surface, one entry per host-exported
// function named in the scripting runtime's design. Each mirrors a method
// of plugin_system/api.rs's API trait in the original.
var hostFunctions = map[string]hostFn{
	"api_register_plugin_instance": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		pluginName := stringArg(args, 0)
		inst, err := env.Registry.RegisterPluginInstance(instanceID, pluginName, env.Env.Channel)
		if err != nil {
			return Value{}, err
		}
		// The on_cleanup export name is optional and mirrors the original's
		// opts_table.on_cleanup: present only when the guest asked for a
		// shutdown callback.
		if len(args) > 1 && args[1].Kind == KindString && args[1].String != "" {
			handle := callbackArg(instanceID, args, 1)
			inst.OnCleanup = &handle
		}
		return StringValue(inst.ID), nil
	},
	"api_register_module": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		inst, ok := env.Registry.Instance(instanceID)
		if !ok {
			return Value{}, errors.Newf("unknown plugin instance %s", instanceID)
		}
		displayName := optTableString(tableArg(args, 1), "display_name")
		m, err := inst.RegisterModule(stringArg(args, 0), displayName)
		if err != nil {
			return Value{}, err
		}
		return StringValue(m.Name), nil
	},
	"api_register_action": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		inst, ok := env.Registry.Instance(instanceID)
		if !ok {
			return Value{}, errors.Newf("unknown plugin instance %s", instanceID)
		}
		m, ok := inst.Modules[stringArg(args, 0)]
		if !ok {
			return Value{}, errors.Newf("unknown module %s", stringArg(args, 0))
		}
		handle := callbackArg(instanceID, args, 2)
		displayName := optTableString(tableArg(args, 3), "display_name")
		a, err := m.RegisterAction(stringArg(args, 1), displayName, handle)
		if err != nil {
			return Value{}, err
		}
		return StringValue(a.Name), nil
	},
	"api_create_store": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		inst, ok := env.Registry.Instance(instanceID)
		if !ok {
			return Value{}, errors.Newf("unknown plugin instance %s", instanceID)
		}
		id := strconv.Itoa(len(inst.Stores) + 1)
		inst.CreateStore(id, args[0])
		return StringValue(id), nil
	},
	"store_get": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		store, err := lookupStore(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		return store.Get(), nil
	},
	"store_set": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		store, err := lookupStore(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		handles := store.Set(args[1])
		// Subscriber dispatch happens on the same goroutine, synchronously,
		// since the scripting runtime is single-threaded; a subscriber may
		// itself call store_set, which re-enters here, which is safe since
		// Store.Set takes its own lock only around the swap, not the
		// notification loop.
		notifySubscribers(ctx, pluginEvaluator(env), handles, args[1])
		return Nil(), nil
	},
	"store_subscribe": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		store, err := lookupStore(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		handle := callbackArg(instanceID, args, 1)
		return StringValue(store.Subscribe(handle)), nil
	},
	"store_unsubscribe": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		store, err := lookupStore(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		store.Unsubscribe(stringArg(args, 1))
		return Nil(), nil
	},
	"api_reposition_windows": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return Nil(), env.WM.Reposition()
	},
	"api_run_later": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		env.Registry.RunLater(callbackArg(instanceID, args, 0))
		return Nil(), nil
	},
	"api_generate_token": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		n := int(numberArg(args, 0))
		if n <= 0 {
			n = 16
		}
		token, err := generateToken(n)
		if err != nil {
			return Value{}, err
		}
		return StringValue(token), nil
	},
	"api_get_channel": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return NumberValue(float64(env.Env.Channel)), nil
	},
	"api_get_channel_home": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return StringValue(env.Env.ChannelHome), nil
	},
	"api_escape_html": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return StringValue(html.EscapeString(stringArg(args, 0))), nil
	},
	"log_debug": logFunc(logger.Debugw),
	"log_info":  logFunc(logger.Infow),
	"log_warn":  logFunc(logger.Warnw),
	"log_error": logFunc(logger.Errorw),

	"module_set_status": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		m, err := lookupModule(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		m.Status = stringArg(args, 1)
		publishModuleNotification(env, notify.Notification{
			Kind:           notify.KindModuleStatusUpdate,
			PluginInstance: instanceID,
			Module:         m.Name,
			NewStatus:      &m.Status,
		})
		return Nil(), nil
	},
	"module_get_status": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		m, err := lookupModule(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		return StringValue(m.Status), nil
	},
	"module_set_message": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		m, err := lookupModule(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		m.Message = stringArg(args, 1)
		publishModuleNotification(env, notify.Notification{
			Kind:           notify.KindModuleMessageUpdate,
			PluginInstance: instanceID,
			Module:         m.Name,
			NewMessage:     &m.Message,
		})
		return Nil(), nil
	},
	"module_set_active_actions": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		m, err := lookupModule(env, instanceID, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		table := tableArg(args, 1)
		actions := make([]string, 0, len(table))
		for k := range table {
			actions = append(actions, k)
		}
		m.ActiveActions = actions
		publishModuleNotification(env, notify.Notification{
			Kind:             notify.KindModuleActiveActionsUpdate,
			PluginInstance:   instanceID,
			Module:           m.Name,
			NewActiveActions: m.ActiveActions,
		})
		return Nil(), nil
	},

	"window_max": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		wid := wm.ManagedWid(numberArg(args, 0))
		w := uint16(numberArg(args, 1))
		h := uint16(numberArg(args, 2))
		margin := marginArg(args, 3)
		return Nil(), env.WM.Max(wid, w, h, margin)
	},
	"window_min": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return Nil(), env.WM.Min(wm.ManagedWid(numberArg(args, 0)))
	},
	"window_hide": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return Nil(), env.WM.Hide(wm.ManagedWid(numberArg(args, 0)))
	},
	"window_unclaim": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return Nil(), env.WM.Unclaim(wm.ManagedWid(numberArg(args, 0)))
	},
	"window_is_primary": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		return BoolValue(env.WM.IsPrimaryWindow(wm.ManagedWid(numberArg(args, 0)))), nil
	},
	"api_claim_window": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		class := stringArg(args, 0)
		opts := tableArg(args, 1)

		timeoutMs := defaultClaimTimeoutMs
		ignoreManaged := false
		if opts != nil {
			if v, ok := opts["timeout_ms"]; ok && v.Kind == KindNumber && v.Number > 0 {
				timeoutMs = int(v.Number)
			}
			if v, ok := opts["ignore_managed"]; ok && v.Kind == KindBool {
				ignoreManaged = v.Bool
			}
		}

		minGeom, err := decodeMinGeometry(ctx, env, instanceID, opts)
		if err != nil {
			return Value{}, errors.Wrap(err, "claim_window: invalid min_geometry")
		}

		deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
		wid, ok, err := env.WM.ClaimWindow(class, ignoreManaged, minGeom, deadline)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Nil(), nil
		}
		return NumberValue(float64(wid)), nil
	},
	"api_create_virtual_window": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		name := stringArg(args, 0)
		opts := tableArg(args, 1)

		setGeometryExport := optTableString(opts, "set_geometry")
		mapExport := optTableString(opts, "map")
		unmapExport := optTableString(opts, "unmap")
		if setGeometryExport == "" || mapExport == "" || unmapExport == "" {
			return Value{}, errors.New("create_virtual_window requires set_geometry, map, and unmap callback names")
		}

		eval := pluginEvaluator(env)
		cb := wm.VirtualWindowCallbacks{
			SetGeometry: func(xOff, yOff int32, w, h uint16, alignment wm.Alignment, z int) error {
				_, err := eval.InvokeCallback(ctx, CallbackHandle{ModuleInstanceID: instanceID, ExportName: setGeometryExport},
					NumberValue(float64(xOff)), NumberValue(float64(yOff)), NumberValue(float64(w)), NumberValue(float64(h)),
					StringValue(alignment.String()), NumberValue(float64(z)))
				return err
			},
			Map: func() error {
				_, err := eval.InvokeCallback(ctx, CallbackHandle{ModuleInstanceID: instanceID, ExportName: mapExport})
				return err
			},
			Unmap: func() error {
				_, err := eval.InvokeCallback(ctx, CallbackHandle{ModuleInstanceID: instanceID, ExportName: unmapExport})
				return err
			},
		}

		minGeom, err := decodeMinGeometry(ctx, env, instanceID, opts)
		if err != nil {
			return Value{}, errors.Wrap(err, "create_virtual_window: invalid min_geometry")
		}

		demotion := wm.DemoteMinimize
		if v, ok := opts["primary_demotion_action"]; ok && v.Kind == KindString {
			if parsed, ok := wm.ParseDemotionAction(v.String); ok {
				demotion = parsed
			} else {
				logger.WMWarnw("unrecognized primary_demotion_action, defaulting to minimize", "value", v.String)
			}
		}

		wid, err := env.WM.ManageVirtualWindow(name, cb, minGeom, demotion)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(wid)), nil
	},

	"api_spawn_process": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		table := tableArg(args, 0)
		cmdPath := stringArg(args, 1)
		var cmdArgs []string
		var onOutput process.OnOutput
		if table != nil {
			if v, ok := table["args"]; ok {
				for _, a := range sortedTableValues(v.Table) {
					cmdArgs = append(cmdArgs, a.String)
				}
			}
			// on_output names the guest export tailed stdout/stderr lines
			// are delivered to, one event-queue turn per line, per spec.md
			// §4.2's "tails stdout/stderr line-by-line into the event queue".
			if v, ok := table["on_output"]; ok && v.Kind == KindString && v.String != "" && env.Sink != nil {
				callback := CallbackHandle{ModuleInstanceID: instanceID, ExportName: v.String}
				onOutput = func(line string, stream process.Stream) {
					env.Sink.Dispatch(instanceID, cmdPath, line, callback)
				}
			}
		}
		h, err := env.Supervisor.Spawn(cmdPath, process.SpawnOpts{Args: cmdArgs, OnOutput: onOutput, Name: cmdPath})
		if err != nil {
			return Value{}, err
		}
		env.nextProcess++
		id := strconv.Itoa(env.nextProcess)
		env.processes[id] = h
		return StringValue(id), nil
	},
	"process_write": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		h, err := lookupProcess(env, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		return Nil(), h.Write([]byte(stringArg(args, 1)))
	},
	"process_writeln": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		h, err := lookupProcess(env, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		return Nil(), h.Writeln(stringArg(args, 1))
	},
	"process_kill": func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		h, err := lookupProcess(env, stringArg(args, 0))
		if err != nil {
			return Value{}, err
		}
		return Nil(), h.Kill()
	},
}

// publishModuleNotification fans a module state mutation out to every
// connected control-plane session. env.Bus is nil in tests that construct a
// HostEnv without one; skip rather than panic.
func publishModuleNotification(env *HostEnv, n notify.Notification) {
	if env.Bus == nil {
		return
	}
	env.Bus.Publish(n)
}

func lookupStore(env *HostEnv, instanceID, storeID string) (*Store, error) {
	inst, ok := env.Registry.Instance(instanceID)
	if !ok {
		return nil, errors.Newf("unknown plugin instance %s", instanceID)
	}
	store, ok := inst.Stores[storeID]
	if !ok {
		return nil, errors.Newf("unknown store %s", storeID)
	}
	return store, nil
}

func lookupModule(env *HostEnv, instanceID, name string) (*Module, error) {
	inst, ok := env.Registry.Instance(instanceID)
	if !ok {
		return nil, errors.Newf("unknown plugin instance %s", instanceID)
	}
	m, ok := inst.Modules[name]
	if !ok {
		return nil, errors.Newf("unknown module %s", name)
	}
	return m, nil
}

func lookupProcess(env *HostEnv, id string) (*process.Handle, error) {
	h, ok := env.processes[id]
	if !ok {
		return nil, errors.Newf("unknown process handle %s", id)
	}
	return h, nil
}

// decodeMinGeometry reads opts["min_geometry"], supporting three shapes: a
// "WxH+X+Y"-style string (fixed), a table naming a guest callback export
// under "callback" (dynamic, re-evaluated on every use), or a table with
// literal w/h/x_off/y_off/alignment fields (also fixed). A missing key
// yields the zero MinGeometry, which Manager resolves to DefaultMinGeometry.
func decodeMinGeometry(ctx context.Context, env *HostEnv, instanceID string, opts map[string]Value) (wm.MinGeometry, error) {
	if opts == nil {
		return wm.MinGeometry{}, nil
	}
	v, ok := opts["min_geometry"]
	if !ok {
		return wm.MinGeometry{}, nil
	}

	switch v.Kind {
	case KindString:
		fixed, err := wm.ParseAlignedGeometry(v.String)
		if err != nil {
			return wm.MinGeometry{}, err
		}
		return wm.MinGeometry{Kind: wm.MinGeometryFixed, Fixed: fixed}, nil
	case KindTable:
		if cb, ok := v.Table["callback"]; ok && cb.Kind == KindString && cb.String != "" {
			eval := pluginEvaluator(env)
			handle := CallbackHandle{ModuleInstanceID: instanceID, ExportName: cb.String}
			return wm.MinGeometry{
				Kind: wm.MinGeometryDynamic,
				Callback: func() (wm.AlignedGeometry, error) {
					result, err := eval.InvokeCallback(ctx, handle)
					if err != nil {
						return wm.AlignedGeometry{}, err
					}
					return decodeAlignedGeometryTable(result.Table)
				},
			}, nil
		}
		fixed, err := decodeAlignedGeometryTable(v.Table)
		if err != nil {
			return wm.MinGeometry{}, err
		}
		return wm.MinGeometry{Kind: wm.MinGeometryFixed, Fixed: fixed}, nil
	default:
		return wm.MinGeometry{}, nil
	}
}

func decodeAlignedGeometryTable(table map[string]Value) (wm.AlignedGeometry, error) {
	alignment, ok := wm.ParseAlignmentTag(table["alignment"].String)
	if !ok {
		return wm.AlignedGeometry{}, errors.Newf("invalid alignment tag %q", table["alignment"].String)
	}
	return wm.AlignedGeometry{
		W:         uint16(table["w"].Number),
		H:         uint16(table["h"].Number),
		XOff:      uint16(table["x_off"].Number),
		YOff:      uint16(table["y_off"].Number),
		Alignment: alignment,
	}, nil
}

func marginArg(args []Value, i int) wm.Margin {
	table := tableArg(args, i)
	if table == nil {
		return wm.Margin{}
	}
	return wm.Margin{
		Left:   uint16(table["left"].Number),
		Right:  uint16(table["right"].Number),
		Top:    uint16(table["top"].Number),
		Bottom: uint16(table["bottom"].Number),
	}
}

func sortedTableValues(table map[string]Value) []Value {
	out := make([]Value, 0, len(table))
	for i := 0; i < len(table); i++ {
		if v, ok := table[strconv.Itoa(i)]; ok {
			out = append(out, v)
		}
	}
	return out
}

// logFunc adapts one of logger's Sugared-logger-style variadic functions
// into a hostFn for log_debug/info/warn/error.
func logFunc(f func(msg string, keysAndValues ...interface{})) hostFn {
	return func(ctx context.Context, env *HostEnv, instanceID string, args []Value) (Value, error) {
		f(stringArg(args, 0), logger.FieldPluginInstance, instanceID)
		return Nil(), nil
	}
}

// pluginEvaluator is set by the dispatcher at startup so store_set can
// invoke subscriber callbacks; host.go itself has no Evaluator reference to
// avoid an import cycle (Evaluator implementations live alongside this
// package, not above it).
var pluginEvaluator = func(env *HostEnv) Evaluator { return globalEvaluator }

var globalEvaluator Evaluator

// SetGlobalEvaluator wires the Evaluator host functions dispatch guest
// callbacks through. Call once during daemon startup, after constructing
// the Evaluator that will load plugin modules.
func SetGlobalEvaluator(eval Evaluator) {
	globalEvaluator = eval
}
