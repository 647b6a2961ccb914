// Package wm manages the lifecycle and geometry of windows — real X windows
// and script-backed virtual ones alike — on a single VNC-hosted X screen.
package wm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/logger"
	"github.com/neopult/neopult/xproto"
)

// Z-order constants. Lower raises above higher; the primary window always
// sits above every minimized one.
const (
	MaxZ = 0
	MinZ = 1
)

const managedAtomName = "_NEOPULT_MANAGED"
const managedAtomValue = "MANAGED"
const managedHintPrefix = "(managed by neopult) "

// Manager owns every window neopult currently manages on one X screen.
// Mutation (register, mode transitions) always runs on the scripting
// thread; reads (listing, is-primary) take the shared lock so they never
// block behind another read.
type Manager struct {
	mu   sync.RWMutex
	conn xproto.Conn

	managedAtom xproto.AtomID

	windows map[ManagedWid]*managedWindow
	order   []ManagedWid // registration order, for deterministic primary reselection
	nextID  ManagedWid

	primary   ManagedWid
	hasPrimary bool
}

// New validates the connection is fronted by a VNC output and interns the
// managed-window atom.
func New(conn xproto.Conn) (*Manager, error) {
	if !strings.HasPrefix(conn.OutputName(), "VNC") {
		return nil, errors.Wrapf(xproto.ErrNotVNCOutput, "output name is %q", conn.OutputName())
	}

	atom, err := conn.InternAtom(managedAtomName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to intern managed-window atom")
	}

	return &Manager{
		conn:        conn,
		managedAtom: atom,
		windows:     make(map[ManagedWid]*managedWindow),
	}, nil
}

// GetWindowByClass enumerates the root window's children and returns the
// first whose WM_CLASS contains class as a substring and, unless
// ignoreManaged is set, is not already managed. WM_CLASS and the managed
// atom are fetched child by child, each lookup waiting for its reply; the
// requests are not batched.
func (m *Manager) GetWindowByClass(class string, ignoreManaged bool) (xproto.WindowID, bool, error) {
	children, err := m.conn.QueryTree()
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to query window tree")
	}

	type pending struct {
		w       xproto.WindowID
		wmClass string
		managed string
	}
	results := make([]pending, len(children))
	for i, w := range children {
		wmClass, err := m.conn.WMClass(w)
		if err != nil {
			return 0, false, errors.Wrapf(err, "failed to get WM_CLASS for window %d", w)
		}
		managed, err := m.conn.GetProperty(w, m.managedAtom)
		if err != nil {
			return 0, false, errors.Wrapf(err, "failed to get managed atom for window %d", w)
		}
		results[i] = pending{w: w, wmClass: wmClass, managed: managed}
	}

	for _, r := range results {
		if !strings.Contains(r.wmClass, class) {
			continue
		}
		if !ignoreManaged && r.managed == managedAtomValue {
			continue
		}
		return r.w, true, nil
	}
	return 0, false, nil
}

// ManageXWindow tags window w as managed, assigns it a ManagedWid in Min
// mode, and applies its min-geometry.
func (m *Manager) ManageXWindow(w xproto.WindowID, minGeom MinGeometry) (ManagedWid, error) {
	if err := m.conn.SetProperty(w, m.managedAtom, managedAtomValue); err != nil {
		return 0, errors.Wrapf(err, "failed to mark window %d managed", w)
	}
	nameAtom, err := m.conn.InternAtom("WM_NAME")
	if err == nil {
		err = m.conn.PrependProperty(w, nameAtom, managedHintPrefix)
	}
	if err != nil {
		logger.WMWarnw("failed to set managed-hint name prefix", "window", w, "error", err)
	}

	m.mu.Lock()
	id := m.nextID + 1
	m.nextID = id
	win := &managedWindow{
		id:          id,
		kind:        kindX,
		mode:        ModeMin,
		xwindow:     w,
		minGeometry: minGeom,
	}
	m.windows[id] = win
	m.order = append(m.order, id)
	m.mu.Unlock()

	if err := m.applyMinGeometry(win); err != nil {
		return id, err
	}
	logger.WMInfow("managed X window", "window_id", id, "xwindow", w)
	return id, nil
}

// ManageVirtualWindow registers a script-backed window. cb's three fields
// must all be set.
func (m *Manager) ManageVirtualWindow(name string, cb VirtualWindowCallbacks, minGeom MinGeometry, demotion DemotionAction) (ManagedWid, error) {
	if cb.SetGeometry == nil || cb.Map == nil || cb.Unmap == nil {
		return 0, errors.Newf("virtual window %q is missing set_geometry, map, or unmap", name)
	}

	m.mu.Lock()
	id := m.nextID + 1
	m.nextID = id
	win := &managedWindow{
		id:          id,
		kind:        kindVirtual,
		mode:        ModeMin,
		name:        name,
		virtual:     cb,
		minGeometry: minGeom,
		demotion:    demotion,
	}
	m.windows[id] = win
	m.order = append(m.order, id)
	m.mu.Unlock()

	if err := m.applyMinGeometry(win); err != nil {
		return id, err
	}
	logger.WMInfow("registered virtual window", "window_id", id, "name", name)
	return id, nil
}

func (m *Manager) resolveMinGeometry(win *managedWindow) (AlignedGeometry, error) {
	switch win.minGeometry.Kind {
	case MinGeometryDynamic:
		if win.minGeometry.Callback == nil {
			return DefaultMinGeometry, nil
		}
		return win.minGeometry.Callback()
	default:
		if win.minGeometry.Fixed == (AlignedGeometry{}) {
			return DefaultMinGeometry, nil
		}
		return win.minGeometry.Fixed, nil
	}
}

func (m *Manager) applyMinGeometry(win *managedWindow) error {
	geom, err := m.resolveMinGeometry(win)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve min geometry for window %d", win.id)
	}

	screen, err := m.conn.ScreenSize()
	if err != nil {
		return errors.Wrap(err, "failed to get screen size")
	}
	x, y := geom.Resolve(screen)

	return m.placeWindow(win, x, y, geom.W, geom.H, geom.Alignment, MinZ)
}

func (m *Manager) placeWindow(win *managedWindow, x, y int32, w, h uint16, alignment Alignment, z int) error {
	switch win.kind {
	case kindX:
		rect := xproto.Rect{X: int16(x), Y: int16(y), W: w, H: h}
		if err := m.conn.ConfigureWindow(win.xwindow, rect, xproto.StackAbove); err != nil {
			return errors.Wrapf(err, "failed to configure window %d", win.id)
		}
	case kindVirtual:
		if err := win.virtual.SetGeometry(x, y, w, h, alignment, z); err != nil {
			return errors.Wrapf(err, "virtual window %q set_geometry failed", win.name)
		}
	}
	return nil
}

// lookup returns the window or a not-found error.
func (m *Manager) lookup(wid ManagedWid) (*managedWindow, error) {
	win, ok := m.windows[wid]
	if !ok {
		return nil, errors.Newf("unknown managed window %d", wid)
	}
	return win, nil
}

// Max promotes wid to primary in Max mode at size (w,h) with the given
// margin (ignored for virtual windows). The prior primary, if any, is
// demoted per its own demotion action.
func (m *Manager) Max(wid ManagedWid, w, h uint16, margin Margin) error {
	m.mu.Lock()
	win, err := m.lookup(wid)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	var hidden *managedWindow
	if m.hasPrimary && m.primary != wid {
		prior := m.windows[m.primary]
		m.demote(prior)
		if prior != nil && prior.mode == ModeHidden && prior.kind == kindVirtual {
			hidden = prior
		}
	}

	win.mode = ModeMax
	win.maxSize = Size{W: w, H: h}
	win.maxMargin = margin
	m.primary = wid
	m.hasPrimary = true
	m.mu.Unlock()

	if hidden != nil {
		if err := hidden.virtual.Unmap(); err != nil {
			logger.WMWarnw("virtual window unmap failed", "window_id", hidden.id, "error", err)
		}
	}

	return m.repositionWindows()
}

// demote applies prior's own demotion action; caller holds m.mu.
func (m *Manager) demote(win *managedWindow) {
	if win == nil {
		return
	}
	switch win.demotion {
	case DemoteHide:
		win.mode = ModeHidden
	default:
		win.mode = ModeMin
	}
}

// Min transitions wid to Min mode. If wid was primary, a new primary is
// selected (the first window, by registration order, currently in Max
// mode), and the screen is repositioned.
func (m *Manager) Min(wid ManagedWid) error {
	m.mu.Lock()
	win, err := m.lookup(wid)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	win.mode = ModeMin
	m.clearPrimaryIfSelf(wid)
	m.mu.Unlock()

	return m.repositionWindows()
}

// Hide transitions wid to Hidden mode. A virtual window's unmap callback is
// invoked; an X window is not unmapped and keeps its last geometry.
func (m *Manager) Hide(wid ManagedWid) error {
	m.mu.Lock()
	win, err := m.lookup(wid)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	win.mode = ModeHidden
	m.clearPrimaryIfSelf(wid)
	m.mu.Unlock()

	if win.kind == kindVirtual {
		if err := win.virtual.Unmap(); err != nil {
			logger.WMWarnw("virtual window unmap failed", "window_id", wid, "error", err)
		}
	}
	return m.repositionWindows()
}

// Unclaim removes wid from management entirely.
func (m *Manager) Unclaim(wid ManagedWid) error {
	m.mu.Lock()
	if _, err := m.lookup(wid); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.windows, wid)
	for i, id := range m.order {
		if id == wid {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.clearPrimaryIfSelf(wid)
	m.mu.Unlock()

	return m.repositionWindows()
}

// clearPrimaryIfSelf clears and reselects the primary if wid was primary.
// Caller holds m.mu.
func (m *Manager) clearPrimaryIfSelf(wid ManagedWid) {
	if !m.hasPrimary || m.primary != wid {
		return
	}
	m.hasPrimary = false
	for _, id := range m.order {
		if win, ok := m.windows[id]; ok && win.mode == ModeMax {
			m.primary = id
			m.hasPrimary = true
			break
		}
	}
}

// IsPrimaryWindow reports whether wid is the current primary window.
func (m *Manager) IsPrimaryWindow(wid ManagedWid) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasPrimary && m.primary == wid
}

// Reposition re-applies every window's geometry: the primary (if Max) at
// full placement with a screen resize, and every Min window at its
// min-geometry. Hidden windows are not repositioned. This is also invoked
// implicitly by every mode transition.
func (m *Manager) Reposition() error {
	return m.repositionWindows()
}

func (m *Manager) repositionWindows() error {
	m.mu.Lock()
	var primary *managedWindow
	if m.hasPrimary {
		primary = m.windows[m.primary]
	}
	others := make([]*managedWindow, 0, len(m.windows))
	for _, id := range m.order {
		win, ok := m.windows[id]
		if !ok || (primary != nil && id == m.primary) {
			continue
		}
		others = append(others, win)
	}
	m.mu.Unlock()

	if primary != nil && primary.mode == ModeMax {
		if err := m.positionPrimary(primary); err != nil {
			return err
		}
	}

	for _, win := range others {
		if win.mode != ModeMin {
			continue
		}
		if err := m.applyMinGeometry(win); err != nil {
			logger.WMWarnw("failed to reposition min window", "window_id", win.id, "error", err)
		}
	}
	return nil
}

// positionPrimary applies the primary window's Max placement, resizing the
// real X screen for X-backed primaries. Virtual primaries are placed at
// (0,0) with no margin inflation and no screen resize — the script owns its
// own layout surface.
func (m *Manager) positionPrimary(win *managedWindow) error {
	switch win.kind {
	case kindVirtual:
		return m.placeWindow(win, 0, 0, win.maxSize.W, win.maxSize.H, TopLeft, MaxZ)
	default:
		margin := win.maxMargin
		screenW := win.maxSize.W + margin.Left + margin.Right
		screenH := win.maxSize.H + margin.Top + margin.Bottom

		if err := m.ResizeScreen(Size{W: screenW, H: screenH}); err != nil {
			return errors.Wrap(err, "failed to resize screen for new primary")
		}
		return m.placeWindow(win, int32(margin.Left), int32(margin.Top), win.maxSize.W, win.maxSize.H, TopLeft, MaxZ)
	}
}

// ResizeScreen implements the two-phase resize algorithm: grow the screen
// in whichever dimensions expand before shrinking the output mode, so the
// intermediate state never asks for a smaller screen than a window
// currently occupies.
func (m *Manager) ResizeScreen(target Size) error {
	min, max, err := m.conn.ScreenSizeRange()
	if err != nil {
		return errors.Wrap(err, "failed to get screen size range")
	}
	if target.W < min.W || target.W > max.W {
		return errors.Newf("target width %d out of RandR range [%d, %d]", target.W, min.W, max.W)
	}
	if target.H < min.H || target.H > max.H {
		return errors.Newf("target height %d out of RandR range [%d, %d]", target.H, min.H, max.H)
	}

	current, err := m.conn.ScreenSize()
	if err != nil {
		return errors.Wrap(err, "failed to get current screen size")
	}
	if current == target {
		return nil
	}

	if target.W > current.W || target.H > current.H {
		intermediate := Size{W: maxU16(current.W, target.W), H: maxU16(current.H, target.H)}
		if err := m.conn.SetScreenSize(intermediate); err != nil {
			return errors.Wrap(err, "failed to grow screen before mode switch")
		}
	}

	if target.W < current.W || target.H < current.H {
		if err := m.setOutputMode(target); err != nil {
			return err
		}
	}

	if err := m.conn.SetScreenSize(target); err != nil {
		return errors.Wrap(err, "failed to set final screen size")
	}
	return m.setOutputMode(target)
}

func (m *Manager) setOutputMode(size Size) error {
	mode, ok, err := m.conn.FindMode(size)
	if err != nil {
		return errors.Wrap(err, "failed to look up output mode")
	}
	if !ok {
		mode, err = m.conn.CreateMode(modeName(size), size)
		if err != nil {
			return errors.Wrapf(err, "failed to create output mode for %dx%d", size.W, size.H)
		}
	}
	if err := m.conn.SetCrtcMode(mode); err != nil {
		return errors.Wrap(err, "failed to set CRTC mode")
	}
	return nil
}

func modeName(size Size) string {
	return fmt.Sprintf("%dx%d", size.W, size.H)
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// claimPollInterval is the polling period used by ClaimWindow while no
// matching window exists yet.
const claimPollInterval = 50 * time.Millisecond

// ClaimWindow polls GetWindowByClass until a matching window appears or
// deadline elapses, then hands it off to ManageXWindow. Returns ok=false
// (with a logged warning, no error) if the deadline expires.
func (m *Manager) ClaimWindow(class string, ignoreManaged bool, minGeom MinGeometry, deadline time.Time) (ManagedWid, bool, error) {
	for {
		w, found, err := m.GetWindowByClass(class, ignoreManaged)
		if err != nil {
			return 0, false, errors.Wrapf(err, "failed to look up window with class %q", class)
		}
		if found {
			id, err := m.ManageXWindow(w, minGeom)
			if err != nil {
				return 0, false, err
			}
			return id, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.WMWarnw("claim_window timed out", "class", class)
			return 0, false, nil
		}

		wait := claimPollInterval
		if remaining < wait {
			wait = remaining
		}
		time.Sleep(wait)
	}
}
