package wsserver

import (
	"crypto/sha256"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neopult/neopult/config"
	"github.com/neopult/neopult/eventqueue"
	"github.com/neopult/neopult/notify"
)

func testHostConfig() *config.HostConfig {
	return &config.HostConfig{
		HeartbeatSeconds:   5,
		ClientTimeoutSecs:  10,
		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
	}
}

func dialTestServer(t *testing.T, srv *Server) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	return conn, ts
}

// runEventLoop replies to every FetchSystemInfo and ClientCommand sent on
// events with a canned answer, standing in for eventqueue.Dispatcher so
// these tests exercise only the wsserver protocol.
func runEventLoop(t *testing.T, events chan eventqueue.Event, result eventqueue.CallActionResult) {
	t.Helper()
	go func() {
		for ev := range events {
			switch e := ev.(type) {
			case eventqueue.FetchSystemInfo:
				e.Reply <- eventqueue.SystemInfo{}
			case eventqueue.ClientCommand:
				e.CallAction.Reply <- result
			}
		}
	}()
}

func TestSession_AuthSuccessReceivesSystemInfo(t *testing.T) {
	events := make(chan eventqueue.Event, 8)
	runEventLoop(t, events, eventqueue.CallActionResult{Success: true})

	srv := NewServer(events, notify.NewBus(), "", "admin", testHostConfig())
	conn, ts := dialTestServer(t, srv)
	defer ts.Close()
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("Password admin")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var frame fromServer
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if frame.SystemInfo == nil {
		t.Fatalf("first frame = %s, want a system_info frame", data)
	}
}

func TestSession_AuthWrongPasswordClosesWithAuthCode(t *testing.T) {
	events := make(chan eventqueue.Event, 8)
	srv := NewServer(events, notify.NewBus(), "", "admin", testHostConfig())
	conn, ts := dialTestServer(t, srv)
	defer ts.Close()
	defer conn.Close()

	var closeCode int
	conn.SetCloseHandler(func(code int, text string) error {
		closeCode = code
		return nil
	})

	if err := conn.WriteMessage(websocket.TextMessage, []byte("Password wrong")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = conn.ReadMessage()

	if closeCode != closeCodeAuth {
		t.Errorf("close code = %d, want %d", closeCode, closeCodeAuth)
	}
}

func TestSession_AuthTimeoutClosesWithTimeoutCode(t *testing.T) {
	events := make(chan eventqueue.Event, 8)
	hc := testHostConfig()
	srv := NewServer(events, notify.NewBus(), "", "admin", hc)

	// authTimeout is a package constant (5s); this test only checks the
	// close code is distinguishable from a wrong-password close, so it
	// writes nothing and waits slightly past it rather than redefining it.
	conn, ts := dialTestServer(t, srv)
	defer ts.Close()
	defer conn.Close()

	var closeCode int
	conn.SetCloseHandler(func(code int, text string) error {
		closeCode = code
		return nil
	})

	conn.SetReadDeadline(time.Now().Add(authTimeout + 2*time.Second))
	_, _, _ = conn.ReadMessage()

	if closeCode != closeCodeAuthTimeout {
		t.Errorf("close code = %d, want %d", closeCode, closeCodeAuthTimeout)
	}
}

func TestSession_CallActionRoundTrip(t *testing.T) {
	events := make(chan eventqueue.Event, 8)
	runEventLoop(t, events, eventqueue.CallActionResult{Success: true})

	srv := NewServer(events, notify.NewBus(), "", "admin", testHostConfig())
	conn, ts := dialTestServer(t, srv)
	defer ts.Close()
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("Password admin")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil { // system_info
		t.Fatalf("ReadMessage() error = %v", err)
	}

	req := `{"request":{"request_id":"req-1","body":{"call_action":{"plugin_instance":"clock-1","module":"display","action":"tick"}}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var frame fromServer
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if frame.Response == nil || frame.Response.RequestID != "req-1" || !frame.Response.Success {
		t.Errorf("response = %+v, want success for req-1", frame.Response)
	}
}

func TestSession_NotificationIsForwardedAfterAuth(t *testing.T) {
	events := make(chan eventqueue.Event, 8)
	runEventLoop(t, events, eventqueue.CallActionResult{Success: true})
	bus := notify.NewBus()

	srv := NewServer(events, bus, "", "admin", testHostConfig())
	conn, ts := dialTestServer(t, srv)
	defer ts.Close()
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("Password admin")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil { // system_info
		t.Fatalf("ReadMessage() error = %v", err)
	}

	// The subscriber is registered synchronously before system_info is
	// sent, but Publish has no way to know the subscriber goroutine has
	// reached its select yet; retry briefly rather than sleeping a fixed
	// guess.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(notify.Notification{Kind: notify.KindModuleStatusUpdate, PluginInstance: "clock-1", Module: "display"})

		conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err != nil {
			continue
		}
		var frame fromServer
		if err := json.Unmarshal(data, &frame); err == nil && frame.Notification != nil {
			if frame.Notification.Kind != notify.KindModuleStatusUpdate {
				t.Errorf("notification kind = %q, want %q", frame.Notification.Kind, notify.KindModuleStatusUpdate)
			}
			return
		}
	}
	t.Fatal("timed out waiting for notification frame")
}

func TestServer_UpdateConfigRetunesPasswordAndTimeouts(t *testing.T) {
	events := make(chan eventqueue.Event, 8)
	srv := NewServer(events, notify.NewBus(), "", "admin", testHostConfig())

	hc := testHostConfig()
	hc.WebSocketPassword = "rotated"
	hc.ClientTimeoutSecs = 99
	srv.UpdateConfig(hc)

	passwordHash, _, clientTimeout, _, _ := srv.tunables()
	wantHash := sha256.Sum256([]byte("rotated"))
	if passwordHash != wantHash {
		t.Error("UpdateConfig() did not rotate the password hash")
	}
	if clientTimeout != 99*time.Second {
		t.Errorf("clientTimeout = %v, want 99s", clientTimeout)
	}

	conn, ts := dialTestServer(t, srv)
	defer ts.Close()
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("Password admin")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var closeCode int
	conn.SetCloseHandler(func(code int, text string) error {
		closeCode = code
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = conn.ReadMessage()
	if closeCode != closeCodeAuth {
		t.Errorf("close code = %d, want %d for the now-stale password", closeCode, closeCodeAuth)
	}
}

func TestListenAddr(t *testing.T) {
	got := ListenAddr("0.0.0.0", 3)
	if got != "0.0.0.0:4203" {
		t.Errorf("ListenAddr() = %q, want 0.0.0.0:4203", got)
	}
}
