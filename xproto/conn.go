// Package xproto narrows the X11 + RandR wire protocol down to the handful
// of calls the window manager needs, so the rest of the codebase depends on
// a small interface instead of the raw xgb cookie/reply protocol.
package xproto

import "github.com/neopult/neopult/errors"

// WindowID identifies an X window.
type WindowID uint32

// AtomID identifies an interned X atom.
type AtomID uint32

// Size is a screen or window extent in pixels.
type Size struct {
	W, H uint16
}

// Rect is an absolute window geometry.
type Rect struct {
	X, Y int16
	W, H uint16
}

// StackMode mirrors the X ConfigureWindow stacking modes this package uses.
type StackMode int

const (
	StackAbove StackMode = iota
)

// OutputModeID identifies a RandR output mode.
type OutputModeID uint32

// ErrNotVNCOutput is returned by Connect when the first RandR output's name
// does not begin with "VNC".
var ErrNotVNCOutput = errors.New("primary output is not a VNC output")

// Conn is everything the window manager needs from an X11 display: root
// window enumeration, WM_CLASS/atom property access, geometry configuration,
// and RandR screen/output/mode control. RealConn backs it with jezek/xgb;
// FakeConn backs it with an in-memory model for tests.
type Conn interface {
	// Root returns the root window of the screen neopult manages.
	Root() WindowID
	// OutputName returns the name of the first RandR output on the first
	// CRTC, e.g. "VNC-0".
	OutputName() string
	// ScreenSize returns the current screen extent.
	ScreenSize() (Size, error)
	// ScreenSizeRange returns RandR's reported minimum and maximum screen
	// size.
	ScreenSizeRange() (min, max Size, err error)
	// InternAtom interns (creating if necessary) the named atom.
	InternAtom(name string) (AtomID, error)

	// QueryTree returns the root window's direct children.
	QueryTree() ([]WindowID, error)
	// WMClass returns the WM_CLASS property of a window, or "" if unset.
	WMClass(w WindowID) (string, error)
	// GetProperty returns the named atom's string value on a window, or ""
	// if unset.
	GetProperty(w WindowID, atom AtomID) (string, error)
	// SetProperty sets the named atom's string value on a window.
	SetProperty(w WindowID, atom AtomID, value string) error
	// PrependProperty prepends a string to an existing (possibly absent)
	// property value.
	PrependProperty(w WindowID, atom AtomID, prefix string) error

	// GetGeometry returns a window's current geometry.
	GetGeometry(w WindowID) (Rect, error)
	// ConfigureWindow moves, resizes and restacks a window in one request.
	ConfigureWindow(w WindowID, rect Rect, stack StackMode) error

	// FindMode returns an existing RandR mode matching (w,h), if any.
	FindMode(size Size) (OutputModeID, bool, error)
	// CreateMode creates a new RandR mode and adds it to the managed
	// output, returning its id.
	CreateMode(name string, size Size) (OutputModeID, error)
	// SetScreenSize sets the root window's reported screen size (in pixels
	// and millimeters, the latter derived at a nominal 96 DPI).
	SetScreenSize(size Size) error
	// SetCrtcMode configures the managed CRTC to the given mode at origin
	// (0,0), rotation 0.
	SetCrtcMode(mode OutputModeID) error

	// Close releases the connection.
	Close() error
}
