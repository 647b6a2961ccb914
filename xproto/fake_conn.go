package xproto

import (
	"fmt"
	"strings"
	"sync"
)

// FakeConn is an in-memory Conn used by wm's tests. It models just enough
// of X11 + RandR to exercise the window manager's call sequences without a
// real display.
type FakeConn struct {
	mu sync.Mutex

	root       WindowID
	outputName string
	screen     Size
	minSize    Size
	maxSize    Size

	nextAtom uint32
	atoms    map[string]AtomID

	children []WindowID
	wmClass  map[WindowID]string
	props    map[WindowID]map[AtomID]string
	geometry map[WindowID]Rect

	modes    map[OutputModeID]Size
	nextMode OutputModeID

	Closed bool

	// Configured records every ConfigureWindow call, in order, for
	// assertions about geometry and stacking.
	Configured []ConfiguredCall
}

// ConfiguredCall records one ConfigureWindow invocation.
type ConfiguredCall struct {
	Window WindowID
	Rect   Rect
	Stack  StackMode
}

// NewFakeConn creates a fake connection with the given screen size and a
// VNC-prefixed output name.
func NewFakeConn(screen Size) *FakeConn {
	return &FakeConn{
		root:       1,
		outputName: "VNC-0",
		screen:     screen,
		minSize:    Size{W: 16, H: 16},
		maxSize:    Size{W: 8192, H: 8192},
		nextAtom:   100,
		atoms:      make(map[string]AtomID),
		wmClass:    make(map[WindowID]string),
		props:      make(map[WindowID]map[AtomID]string),
		geometry:   make(map[WindowID]Rect),
		modes:      make(map[OutputModeID]Size),
		nextMode:   1,
	}
}

// SetOutputName overrides the simulated RandR output name, for exercising
// the "not a VNC output" rejection path.
func (c *FakeConn) SetOutputName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputName = name
}

// AddWindow registers a top-level window with a WM_CLASS and initial
// geometry, as if created by some X client.
func (c *FakeConn) AddWindow(id WindowID, class string, geom Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, id)
	c.wmClass[id] = class
	c.geometry[id] = geom
}

func (c *FakeConn) Root() WindowID     { return c.root }
func (c *FakeConn) OutputName() string { return c.outputName }

func (c *FakeConn) ScreenSize() (Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen, nil
}

func (c *FakeConn) ScreenSizeRange() (Size, Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minSize, c.maxSize, nil
}

func (c *FakeConn) InternAtom(name string) (AtomID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.atoms[name]; ok {
		return id, nil
	}
	id := AtomID(c.nextAtom)
	c.nextAtom++
	c.atoms[name] = id
	return id, nil
}

func (c *FakeConn) QueryTree() ([]WindowID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WindowID, len(c.children))
	copy(out, c.children)
	return out, nil
}

func (c *FakeConn) WMClass(w WindowID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wmClass[w], nil
}

func (c *FakeConn) GetProperty(w WindowID, atom AtomID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.props[w]; ok {
		return m[atom], nil
	}
	return "", nil
}

func (c *FakeConn) SetProperty(w WindowID, atom AtomID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.props[w] == nil {
		c.props[w] = make(map[AtomID]string)
	}
	c.props[w][atom] = value
	return nil
}

func (c *FakeConn) PrependProperty(w WindowID, atom AtomID, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.props[w] == nil {
		c.props[w] = make(map[AtomID]string)
	}
	c.props[w][atom] = prefix + c.props[w][atom]
	return nil
}

func (c *FakeConn) GetGeometry(w WindowID) (Rect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.geometry[w], nil
}

func (c *FakeConn) ConfigureWindow(w WindowID, rect Rect, stack StackMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.geometry[w] = rect
	c.Configured = append(c.Configured, ConfiguredCall{Window: w, Rect: rect, Stack: stack})
	return nil
}

func (c *FakeConn) FindMode(size Size) (OutputModeID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.modes {
		if s == size {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (c *FakeConn) CreateMode(name string, size Size) (OutputModeID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextMode
	c.nextMode++
	c.modes[id] = size
	return id, nil
}

func (c *FakeConn) SetScreenSize(size Size) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.screen = size
	return nil
}

func (c *FakeConn) SetCrtcMode(mode OutputModeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	size, ok := c.modes[mode]
	if !ok {
		return fmt.Errorf("unknown mode %d", mode)
	}
	c.screen = size
	return nil
}

func (c *FakeConn) Close() error {
	c.Closed = true
	return nil
}

// PropertyString is a small test helper returning the managed-atom value in
// a form tests can assert against directly.
func (c *FakeConn) PropertyString(w WindowID, atom AtomID) string {
	value, _ := c.GetProperty(w, atom)
	return strings.TrimSpace(value)
}
