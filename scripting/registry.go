package scripting

import (
	"context"
	"sort"
	"sync"

	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/logger"
)

// expireEvery is how many event-loop turns pass between orphaned-handle
// sweeps, mirroring the original's lua.expire_registry_values() cadence.
const expireEvery = 10

// Action is one script-exported entry point a client can invoke by name.
type Action struct {
	Name        string
	DisplayName string
	Handle      CallbackHandle
}

// Module is a named unit of status/message/active-actions state plus the
// actions it exposes, owned by one plugin instance.
type Module struct {
	Name          string
	DisplayName   string
	Status        string
	Message       string
	ActiveActions []string
	Actions       map[string]*Action
}

// PluginInstance is one running instance of a loaded plugin: its WASM
// module instance, the modules/actions it has registered, and the stores
// and deferred tasks scoped to it.
type PluginInstance struct {
	ID         string
	PluginName string
	Channel    int

	Modules map[string]*Module
	Stores  map[string]*Store

	OnCleanup *CallbackHandle

	orphaned bool
}

// DeferredTask is a run_later callback awaiting its turn between event-loop
// dispatches.
type DeferredTask struct {
	Handle CallbackHandle
	Args   []Value
}

// Registry is the plugin-instance → module → action tree plus the
// per-instance store set and the deferred-task queue, generalized from
// "one plugin per process" to "many plugin instances" per the teacher's
// plugin.Registry shape.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*PluginInstance

	deferredMu sync.Mutex
	deferred   []DeferredTask

	turn int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*PluginInstance)}
}

// RegisterPluginInstance creates a new, empty plugin instance under id. id
// must be unique.
func (r *Registry) RegisterPluginInstance(id, pluginName string, channel int) (*PluginInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[id]; exists {
		return nil, errors.Newf("plugin instance already registered: %s", id)
	}
	inst := &PluginInstance{
		ID:         id,
		PluginName: pluginName,
		Channel:    channel,
		Modules:    make(map[string]*Module),
		Stores:     make(map[string]*Store),
	}
	r.instances[id] = inst
	return inst, nil
}

// Instance looks up a plugin instance by id.
func (r *Registry) Instance(id string) (*PluginInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Instances returns every instance, sorted by id, for deterministic
// iteration (status listings, shutdown order).
func (r *Registry) Instances() []*PluginInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*PluginInstance, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.instances[id])
	}
	return out
}

// MarkOrphaned flags an instance for removal on the next ExpireOrphaned
// sweep, rather than deleting it immediately — guest callbacks already
// queued against it (e.g. in-flight store notifications) still resolve.
func (r *Registry) MarkOrphaned(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.orphaned = true
	}
}

// ExpireOrphaned removes every instance marked orphaned, closing its guest
// module via eval. Called every expireEvery turns by the event dispatcher.
func (r *Registry) ExpireOrphaned(ctx context.Context, eval Evaluator) {
	r.mu.Lock()
	var toRemove []string
	for id, inst := range r.instances {
		if inst.orphaned {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(r.instances, id)
	}
	r.mu.Unlock()

	for _, id := range toRemove {
		if err := eval.Close(ctx, id); err != nil {
			logger.ScriptingWarnw("failed to close orphaned plugin instance", "instance", id, "error", err)
		}
	}
}

// ShutdownAll runs every live plugin instance's on_cleanup callback, in id
// order, then releases its guest module via eval. Called once at process
// shutdown, after the event dispatcher has stopped accepting new events, so
// no cleanup callback races a concurrent action call.
func (r *Registry) ShutdownAll(ctx context.Context, eval Evaluator) {
	for _, inst := range r.Instances() {
		if inst.OnCleanup != nil {
			if _, err := eval.InvokeCallback(ctx, *inst.OnCleanup); err != nil {
				logger.ScriptingWarnw("on_cleanup callback failed", "instance", inst.ID, "error", err)
			}
		}
		if err := eval.Close(ctx, inst.ID); err != nil {
			logger.ScriptingWarnw("failed to close plugin instance", "instance", inst.ID, "error", err)
		}
	}
}

// Tick advances the turn counter and reports whether this turn should run
// an ExpireOrphaned sweep.
func (r *Registry) Tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turn++
	return r.turn%expireEvery == 0
}

// RunLater enqueues a deferred task, drained FIFO before the next event is
// dispatched.
func (r *Registry) RunLater(handle CallbackHandle, args ...Value) {
	r.deferredMu.Lock()
	defer r.deferredMu.Unlock()
	r.deferred = append(r.deferred, DeferredTask{Handle: handle, Args: args})
}

// DrainDeferred invokes every deferred task in enqueue order, including
// tasks newly enqueued by a task while draining, until the queue is empty.
func (r *Registry) DrainDeferred(ctx context.Context, eval Evaluator) {
	for {
		r.deferredMu.Lock()
		if len(r.deferred) == 0 {
			r.deferredMu.Unlock()
			return
		}
		task := r.deferred[0]
		r.deferred = r.deferred[1:]
		r.deferredMu.Unlock()

		if _, err := eval.InvokeCallback(ctx, task.Handle, task.Args...); err != nil {
			logger.ScriptingWarnw("deferred task failed", "export", task.Handle.ExportName, "error", err)
		}
	}
}

// RegisterModule adds a module to a plugin instance, defaulting its
// status/actions to empty. displayName is the optional human-readable name
// a client surfaces instead of name; pass "" when the script didn't provide
// one.
func (inst *PluginInstance) RegisterModule(name, displayName string) (*Module, error) {
	if _, exists := inst.Modules[name]; exists {
		return nil, errors.Newf("module already registered: %s", name)
	}
	m := &Module{Name: name, DisplayName: displayName, Actions: make(map[string]*Action)}
	inst.Modules[name] = m
	return m, nil
}

// RegisterAction adds an action to a module. displayName is the optional
// human-readable name a client surfaces instead of name; pass "" when the
// script didn't provide one.
func (m *Module) RegisterAction(name, displayName string, handle CallbackHandle) (*Action, error) {
	if _, exists := m.Actions[name]; exists {
		return nil, errors.Newf("action already registered: %s", name)
	}
	a := &Action{Name: name, DisplayName: displayName, Handle: handle}
	m.Actions[name] = a
	return a, nil
}

// CreateStore allocates a new store scoped to this plugin instance, keyed
// by id (the WASM guest's own choice of identifier for its store handle).
func (inst *PluginInstance) CreateStore(id string, initial Value) *Store {
	s := NewStore(initial)
	inst.Stores[id] = s
	return s
}
