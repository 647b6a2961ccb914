package wm

import "github.com/neopult/neopult/xproto"

// Size is a screen or window extent in pixels.
type Size = xproto.Size

// ManagedWid identifies a window under neopult's management, real or
// virtual.
type ManagedWid uint64

// Mode is a managed window's current display mode.
type Mode int

const (
	ModeMin Mode = iota
	ModeMax
	ModeHidden
)

func (m Mode) String() string {
	switch m {
	case ModeMin:
		return "min"
	case ModeMax:
		return "max"
	case ModeHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// DemotionAction governs what happens to a primary window when a different
// window becomes primary in its place.
type DemotionAction int

const (
	// DemoteMinimize returns the window to Min mode (the default).
	DemoteMinimize DemotionAction = iota
	// DemoteHide moves the window to Hidden mode, the end state Manager.Hide
	// leaves it in (a virtual window's unmap callback is invoked).
	DemoteHide
)

// ParseDemotionAction parses the primary_demotion_action script option.
// Unrecognized values default to DemoteMinimize with the caller expected to
// warn.
func ParseDemotionAction(s string) (DemotionAction, bool) {
	switch s {
	case "minimize":
		return DemoteMinimize, true
	case "hide":
		return DemoteHide, true
	default:
		return DemoteMinimize, false
	}
}

// MinGeometryKind distinguishes a fixed min-geometry from one computed by a
// script callback at each use.
type MinGeometryKind int

const (
	MinGeometryFixed MinGeometryKind = iota
	MinGeometryDynamic
)

// MinGeometry is the placement a window takes in Min mode.
type MinGeometry struct {
	Kind MinGeometryKind
	// Fixed is used when Kind == MinGeometryFixed.
	Fixed AlignedGeometry
	// Callback is used when Kind == MinGeometryDynamic; it must return an
	// AlignedGeometry.
	Callback MinGeometryCallback
}

// MinGeometryCallback computes a dynamic min-geometry on demand.
type MinGeometryCallback func() (AlignedGeometry, error)

// DefaultMinGeometry is applied when a script omits min_geometry: a 320x180
// window in the bottom-right corner, a reasonable default for a
// picture-in-picture style overlay.
var DefaultMinGeometry = AlignedGeometry{W: 320, H: 180, XOff: 0, YOff: 0, Alignment: BottomRight}

// VirtualWindowCallbacks are the three script-provided functions a virtual
// window must implement.
type VirtualWindowCallbacks struct {
	SetGeometry func(xOff, yOff int32, w, h uint16, alignment Alignment, z int) error
	Map         func() error
	Unmap       func() error
}

// kind distinguishes a real X window from a script-backed virtual one.
type kind int

const (
	kindX kind = iota
	kindVirtual
)

// managedWindow is the internal record for a single managed window, real or
// virtual.
type managedWindow struct {
	id   ManagedWid
	kind kind
	mode Mode

	// X-backed fields.
	xwindow xproto.WindowID

	// Virtual fields.
	virtual VirtualWindowCallbacks
	name    string

	minGeometry MinGeometry
	demotion    DemotionAction

	// maxSize/maxMargin are only meaningful while mode == ModeMax.
	maxSize   Size
	maxMargin Margin
}

// Margin is the screen-edge inset applied to an X-backed primary window's
// max placement; (top, right, bottom, left) pixels.
type Margin struct {
	Top, Right, Bottom, Left uint16
}
