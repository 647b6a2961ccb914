package xproto

import (
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"

	"github.com/neopult/neopult/errors"
)

// RealConn is a Conn backed by a live X11 connection via jezek/xgb, the Go
// analogue of the xcb crate the original daemon used.
type RealConn struct {
	conn *xgb.Conn
	root xproto.Window

	outputName string
	crtc       randr.Crtc
	output     randr.Output

	managedAtom xproto.Atom
	wmClassAtom xproto.Atom
}

// Connect opens the X display (honoring $DISPLAY), validates it is fronted
// by a VNC output, and interns the atoms the window manager uses.
func Connect() (*RealConn, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "RandR extension unavailable")
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)
	root := screen.Root

	resources, err := randr.GetScreenResourcesCurrent(conn, root).Reply()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to get RandR screen resources")
	}
	if len(resources.Crtcs) == 0 {
		conn.Close()
		return nil, errors.New("RandR reports no CRTCs")
	}
	crtc := resources.Crtcs[0]

	crtcInfo, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to get CRTC info")
	}
	if len(crtcInfo.Outputs) == 0 {
		conn.Close()
		return nil, errors.New("RandR CRTC has no outputs")
	}
	output := crtcInfo.Outputs[0]

	outputInfo, err := randr.GetOutputInfo(conn, output, resources.ConfigTimestamp).Reply()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to get output info")
	}
	outputName := string(outputInfo.Name)
	if !strings.HasPrefix(outputName, "VNC") {
		conn.Close()
		return nil, errors.Wrapf(ErrNotVNCOutput, "output name is %q", outputName)
	}

	managedAtomReply, err := xproto.InternAtom(conn, false, uint16(len("_NEOPULT_MANAGED")), "_NEOPULT_MANAGED").Reply()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to intern _NEOPULT_MANAGED atom")
	}
	wmClassAtomReply, err := xproto.InternAtom(conn, true, uint16(len("WM_CLASS")), "WM_CLASS").Reply()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to intern WM_CLASS atom")
	}

	return &RealConn{
		conn:        conn,
		root:        root,
		outputName:  outputName,
		crtc:        crtc,
		output:      output,
		managedAtom: managedAtomReply.Atom,
		wmClassAtom: wmClassAtomReply.Atom,
	}, nil
}

func (c *RealConn) Root() WindowID    { return WindowID(c.root) }
func (c *RealConn) OutputName() string { return c.outputName }

func (c *RealConn) ScreenSize() (Size, error) {
	geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(c.root)).Reply()
	if err != nil {
		return Size{}, errors.Wrap(err, "failed to get root geometry")
	}
	return Size{W: geom.Width, H: geom.Height}, nil
}

func (c *RealConn) ScreenSizeRange() (min, max Size, err error) {
	reply, err := randr.GetScreenSizeRange(c.conn, c.root).Reply()
	if err != nil {
		return Size{}, Size{}, errors.Wrap(err, "failed to get RandR screen size range")
	}
	return Size{W: reply.MinWidth, H: reply.MinHeight}, Size{W: reply.MaxWidth, H: reply.MaxHeight}, nil
}

func (c *RealConn) InternAtom(name string) (AtomID, error) {
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to intern atom %q", name)
	}
	return AtomID(reply.Atom), nil
}

func (c *RealConn) QueryTree() ([]WindowID, error) {
	reply, err := xproto.QueryTree(c.conn, c.root).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query window tree")
	}
	children := make([]WindowID, 0, len(reply.Children))
	for _, w := range reply.Children {
		children = append(children, WindowID(w))
	}
	return children, nil
}

func (c *RealConn) WMClass(w WindowID) (string, error) {
	reply, err := xproto.GetProperty(c.conn, false, xproto.Window(w), c.wmClassAtom, xproto.GetPropertyTypeAny, 0, 1024).Reply()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get WM_CLASS for window %d", w)
	}
	if reply == nil || reply.ValueLen == 0 {
		return "", nil
	}
	return strings.Trim(string(reply.Value), "\x00"), nil
}

func (c *RealConn) GetProperty(w WindowID, atom AtomID) (string, error) {
	reply, err := xproto.GetProperty(c.conn, false, xproto.Window(w), xproto.Atom(atom), xproto.GetPropertyTypeAny, 0, 1024).Reply()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get property %d on window %d", atom, w)
	}
	if reply == nil || reply.ValueLen == 0 {
		return "", nil
	}
	return string(reply.Value), nil
}

func (c *RealConn) SetProperty(w WindowID, atom AtomID, value string) error {
	err := xproto.ChangePropertyChecked(
		c.conn, xproto.PropModeReplace, xproto.Window(w), xproto.Atom(atom),
		xproto.AtomString, 8, uint32(len(value)), []byte(value),
	).Check()
	if err != nil {
		return errors.Wrapf(err, "failed to set property %d on window %d", atom, w)
	}
	return nil
}

func (c *RealConn) PrependProperty(w WindowID, atom AtomID, prefix string) error {
	err := xproto.ChangePropertyChecked(
		c.conn, xproto.PropModePrepend, xproto.Window(w), xproto.Atom(atom),
		xproto.AtomString, 8, uint32(len(prefix)), []byte(prefix),
	).Check()
	if err != nil {
		return errors.Wrapf(err, "failed to prepend property %d on window %d", atom, w)
	}
	return nil
}

func (c *RealConn) GetGeometry(w WindowID) (Rect, error) {
	geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(w)).Reply()
	if err != nil {
		return Rect{}, errors.Wrapf(err, "failed to get geometry of window %d", w)
	}
	return Rect{X: geom.X, Y: geom.Y, W: geom.Width, H: geom.Height}, nil
}

func (c *RealConn) ConfigureWindow(w WindowID, rect Rect, stack StackMode) error {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth |
		xproto.ConfigWindowHeight | xproto.ConfigWindowStackMode)
	values := []uint32{
		uint32(rect.X), uint32(rect.Y), uint32(rect.W), uint32(rect.H), uint32(xproto.StackModeAbove),
	}
	err := xproto.ConfigureWindowChecked(c.conn, xproto.Window(w), mask, values).Check()
	if err != nil {
		return errors.Wrapf(err, "failed to configure window %d", w)
	}
	return nil
}

func (c *RealConn) FindMode(size Size) (OutputModeID, bool, error) {
	resources, err := randr.GetScreenResourcesCurrent(c.conn, c.root).Reply()
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to get screen resources")
	}
	for _, mode := range resources.Modes {
		if mode.Width == size.W && mode.Height == size.H {
			return OutputModeID(mode.Id), true, nil
		}
	}
	return 0, false, nil
}

func (c *RealConn) CreateMode(name string, size Size) (OutputModeID, error) {
	modeInfo := randr.ModeInfo{
		Width:      size.W,
		Height:     size.H,
		DotClock:   uint32(60) * uint32(size.W) * uint32(size.H),
		HTotal:     size.W,
		VTotal:     size.H,
		ModeFlags:  0,
		NameLen:    uint16(len(name)),
	}
	reply, err := randr.CreateMode(c.conn, xproto.Window(c.root), modeInfo, name).Reply()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create RandR mode %q", name)
	}
	if err := randr.AddOutputModeChecked(c.conn, c.output, reply.Mode).Check(); err != nil {
		return 0, errors.Wrapf(err, "failed to add mode %q to output", name)
	}
	return OutputModeID(reply.Mode), nil
}

func (c *RealConn) SetScreenSize(size Size) error {
	const dpi = 96
	mmW := uint32(size.W) * 254 / (dpi * 10)
	mmH := uint32(size.H) * 254 / (dpi * 10)
	err := randr.SetScreenSizeChecked(c.conn, c.root, size.W, size.H, mmW, mmH).Check()
	if err != nil {
		return errors.Wrap(err, "failed to set screen size")
	}
	return nil
}

func (c *RealConn) SetCrtcMode(mode OutputModeID) error {
	_, err := randr.SetCrtcConfig(
		c.conn, c.crtc, xproto.TimeCurrentTime, xproto.TimeCurrentTime,
		0, 0, randr.Mode(mode), randr.RotationRotate0, []randr.Output{c.output},
	).Reply()
	if err != nil {
		return errors.Wrap(err, "failed to set CRTC config")
	}
	return nil
}

func (c *RealConn) Close() error {
	c.conn.Close()
	return nil
}
