package wm

import (
	"testing"
	"time"

	"github.com/neopult/neopult/xproto"
)

func newTestManager(t *testing.T, screen Size) (*Manager, *xproto.FakeConn) {
	t.Helper()
	conn := xproto.NewFakeConn(screen)
	mgr, err := New(conn)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return mgr, conn
}

func TestNew_RejectsNonVNCOutput(t *testing.T) {
	conn := xproto.NewFakeConn(Size{W: 1920, H: 1080})
	conn.SetOutputName("HDMI-1")

	if _, err := New(conn); err == nil {
		t.Error("expected error for non-VNC output, got nil")
	}
}

func TestNew_AcceptsVNCOutput(t *testing.T) {
	conn := xproto.NewFakeConn(Size{W: 1920, H: 1080})
	if _, err := New(conn); err != nil {
		t.Fatalf("New() with VNC output should succeed, got %v", err)
	}
}

func newVirtualCallbacks() (*VirtualWindowCallbacks, *[]string) {
	var calls []string
	cb := &VirtualWindowCallbacks{
		SetGeometry: func(x, y int32, w, h uint16, a Alignment, z int) error {
			calls = append(calls, "set_geometry")
			return nil
		},
		Map:   func() error { calls = append(calls, "map"); return nil },
		Unmap: func() error { calls = append(calls, "unmap"); return nil },
	}
	return cb, &calls
}

// TestPrimarySingleTenancy exercises spec scenario B: two virtual windows,
// A.max() then B.max(); afterwards B is primary, A is not, and A received a
// further set_geometry call (its min placement) once demoted.
func TestPrimarySingleTenancy(t *testing.T) {
	mgr, _ := newTestManager(t, Size{W: 1920, H: 1080})

	cbA, callsA := newVirtualCallbacks()
	idA, err := mgr.ManageVirtualWindow("A", *cbA, MinGeometry{}, DemoteMinimize)
	if err != nil {
		t.Fatalf("ManageVirtualWindow(A) error = %v", err)
	}
	cbB, _ := newVirtualCallbacks()
	idB, err := mgr.ManageVirtualWindow("B", *cbB, MinGeometry{}, DemoteMinimize)
	if err != nil {
		t.Fatalf("ManageVirtualWindow(B) error = %v", err)
	}

	callsBeforeA := len(*callsA)

	if err := mgr.Max(idA, 1280, 720, Margin{}); err != nil {
		t.Fatalf("Max(A) error = %v", err)
	}
	if !mgr.IsPrimaryWindow(idA) {
		t.Error("A should be primary after A.max()")
	}

	if err := mgr.Max(idB, 1920, 1080, Margin{}); err != nil {
		t.Fatalf("Max(B) error = %v", err)
	}

	if mgr.IsPrimaryWindow(idA) {
		t.Error("A should no longer be primary")
	}
	if !mgr.IsPrimaryWindow(idB) {
		t.Error("B should be primary")
	}
	if len(*callsA) <= callsBeforeA {
		t.Error("A should have received a further set_geometry call after being demoted to min")
	}
}

func TestModeTransitions_AtMostOnePrimary(t *testing.T) {
	mgr, _ := newTestManager(t, Size{W: 1920, H: 1080})

	cbA, _ := newVirtualCallbacks()
	idA, _ := mgr.ManageVirtualWindow("A", *cbA, MinGeometry{}, DemoteMinimize)
	cbB, _ := newVirtualCallbacks()
	idB, _ := mgr.ManageVirtualWindow("B", *cbB, MinGeometry{}, DemoteMinimize)

	mgr.Max(idA, 100, 100, Margin{})
	mgr.Max(idB, 100, 100, Margin{})
	mgr.Min(idB)

	primaryCount := 0
	for _, id := range []ManagedWid{idA, idB} {
		if mgr.IsPrimaryWindow(id) {
			primaryCount++
		}
	}
	if primaryCount > 1 {
		t.Errorf("at most one window should be primary, found %d", primaryCount)
	}
}

func TestManageXWindow_SetsManagedAtom(t *testing.T) {
	mgr, conn := newTestManager(t, Size{W: 1920, H: 1080})
	conn.AddWindow(42, "firefox", xproto.Rect{X: 0, Y: 0, W: 800, H: 600})

	id, err := mgr.ManageXWindow(42, MinGeometry{})
	if err != nil {
		t.Fatalf("ManageXWindow() error = %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero ManagedWid")
	}

	managed, _ := conn.GetProperty(42, connManagedAtom(t, conn))
	if managed == "" {
		t.Error("expected managed atom to be set")
	}
}

// connManagedAtom re-interns the same atom name FakeConn uses internally
// to read back what Manager wrote.
func connManagedAtom(t *testing.T, conn *xproto.FakeConn) xproto.AtomID {
	t.Helper()
	atom, err := conn.InternAtom("_NEOPULT_MANAGED")
	if err != nil {
		t.Fatalf("InternAtom() error = %v", err)
	}
	return atom
}

func TestGetWindowByClass_SkipsManaged(t *testing.T) {
	mgr, conn := newTestManager(t, Size{W: 1920, H: 1080})
	conn.AddWindow(1, "firefox-browser", xproto.Rect{W: 800, H: 600})

	id, err := mgr.ManageXWindow(1, MinGeometry{})
	if err != nil {
		t.Fatalf("ManageXWindow() error = %v", err)
	}
	_ = id

	_, found, err := mgr.GetWindowByClass("firefox", false)
	if err != nil {
		t.Fatalf("GetWindowByClass() error = %v", err)
	}
	if found {
		t.Error("expected managed window to be skipped")
	}

	_, found, err = mgr.GetWindowByClass("firefox", true)
	if err != nil {
		t.Fatalf("GetWindowByClass() error = %v", err)
	}
	if !found {
		t.Error("expected managed window to be found with ignoreManaged=true")
	}
}

func TestClaimWindow_TimesOutWhenAbsent(t *testing.T) {
	mgr, _ := newTestManager(t, Size{W: 1920, H: 1080})

	start := time.Now()
	_, found, err := mgr.ClaimWindow("nonexistent", false, MinGeometry{}, start.Add(60*time.Millisecond))
	if err != nil {
		t.Fatalf("ClaimWindow() error = %v", err)
	}
	if found {
		t.Error("expected ClaimWindow to time out")
	}
}

func TestResizeScreen_XBackedPrimary(t *testing.T) {
	mgr, conn := newTestManager(t, Size{W: 1024, H: 768})
	conn.AddWindow(7, "vlc", xproto.Rect{W: 640, H: 480})

	id, err := mgr.ManageXWindow(7, MinGeometry{})
	if err != nil {
		t.Fatalf("ManageXWindow() error = %v", err)
	}

	if err := mgr.Max(id, 1920, 1080, Margin{}); err != nil {
		t.Fatalf("Max() error = %v", err)
	}

	size, err := conn.ScreenSize()
	if err != nil {
		t.Fatalf("ScreenSize() error = %v", err)
	}
	if size.W != 1920 || size.H != 1080 {
		t.Errorf("screen size = %+v, want 1920x1080", size)
	}
}

func TestResizeScreen_OutOfRandrRange(t *testing.T) {
	mgr, _ := newTestManager(t, Size{W: 1024, H: 768})
	err := mgr.ResizeScreen(Size{W: 20000, H: 20000})
	if err == nil {
		t.Error("expected error resizing beyond RandR max, got nil")
	}
}

func TestManageVirtualWindow_RequiresAllCallbacks(t *testing.T) {
	mgr, _ := newTestManager(t, Size{W: 1920, H: 1080})
	_, err := mgr.ManageVirtualWindow("broken", VirtualWindowCallbacks{}, MinGeometry{}, DemoteMinimize)
	if err == nil {
		t.Error("expected error for virtual window missing callbacks")
	}
}
