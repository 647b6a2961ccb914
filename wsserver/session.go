// Package wsserver is the per-channel HTTP + WebSocket control plane:
// password auth, heartbeat policing, call_action request/response, and
// notification fan-out. Grounded on the teacher's readPump/writePump
// session shape (server/client.go) and original neopult/src/server.rs's
// per-connection protocol.
package wsserver

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/neopult/neopult/config"
	"github.com/neopult/neopult/eventqueue"
	"github.com/neopult/neopult/logger"
	"github.com/neopult/neopult/notify"
)

// authTimeout is fixed by spec.md §4.5 and isn't one of HostConfig's tunable
// knobs. writeWait/maxMessageSize are ambient WebSocket plumbing, grounded on
// server/client.go's writeWait/maxMessageSize constants.
const (
	authTimeout    = 5 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // 1MB: control-plane frames are small JSON, unlike QNTX's graph payloads
)

// Close codes, per spec.md §6.
const (
	closeCodeAuth        = 4001
	closeCodeAuthTimeout = 4002
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Server owns the event queue sender and a notification bus subscriber
// source; it never touches the scripting registry directly, per spec §4.5.
//
// The tunables below are guarded by tuneMu rather than set once at
// construction: config.Watcher calls UpdateConfig on a file-watcher
// goroutine whenever config.toml changes on disk, concurrently with
// sessions reading them on their own goroutines.
type Server struct {
	Events chan eventqueue.Event
	Notify *notify.Bus
	Addr   string

	tuneMu          sync.RWMutex
	passwordHash    [32]byte
	heartbeatPeriod time.Duration
	clientTimeout   time.Duration
	rateLimit       rate.Limit
	rateBurst       int
}

// NewServer hashes password once at construction, following server.rs's
// websocket_password_hash(). Heartbeat/timeout/rate-limit knobs come from
// the channel's HostConfig so operators can retune them without a rebuild.
func NewServer(events chan eventqueue.Event, bus *notify.Bus, addr, password string, hc *config.HostConfig) *Server {
	return &Server{
		Events:          events,
		Notify:          bus,
		Addr:            addr,
		passwordHash:    sha256.Sum256([]byte(password)),
		heartbeatPeriod: time.Duration(hc.HeartbeatSeconds) * time.Second,
		clientTimeout:   time.Duration(hc.ClientTimeoutSecs) * time.Second,
		rateLimit:       rate.Limit(hc.RateLimitPerSecond),
		rateBurst:       hc.RateLimitBurst,
	}
}

// UpdateConfig retunes the server's password, heartbeat, timeout, and rate
// limit from a freshly reloaded HostConfig. Intended as a config.Watcher
// ReloadCallback: the plugin search path and database paths it also carries
// only take effect on the next restart. The client timeout applies to live
// sessions from their next heartbeat tick; the password, heartbeat period
// and rate limit apply to sessions that connect afterwards.
func (s *Server) UpdateConfig(hc *config.HostConfig) {
	s.tuneMu.Lock()
	defer s.tuneMu.Unlock()
	s.passwordHash = sha256.Sum256([]byte(hc.WebSocketPassword))
	s.heartbeatPeriod = time.Duration(hc.HeartbeatSeconds) * time.Second
	s.clientTimeout = time.Duration(hc.ClientTimeoutSecs) * time.Second
	s.rateLimit = rate.Limit(hc.RateLimitPerSecond)
	s.rateBurst = hc.RateLimitBurst
}

func (s *Server) tunables() (passwordHash [32]byte, heartbeatPeriod, clientTimeout time.Duration, rateLimit rate.Limit, rateBurst int) {
	s.tuneMu.RLock()
	defer s.tuneMu.RUnlock()
	return s.passwordHash, s.heartbeatPeriod, s.clientTimeout, s.rateLimit, s.rateBurst
}

// Handler returns the HTTP handler serving /ws; callers mount static file
// serving (out of scope) alongside it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WSWarnw("websocket upgrade failed", "error", err)
		return
	}

	_, _, _, rateLimit, rateBurst := s.tunables()
	sess := &session{
		server:  s,
		conn:    conn,
		limiter: rate.NewLimiter(rateLimit, rateBurst),
	}
	sess.run()
}

// session is one authenticated control-plane connection.
type session struct {
	server  *Server
	conn    *websocket.Conn
	limiter *rate.Limiter
	sub     *notify.Subscriber
}

func (sess *session) run() {
	defer sess.conn.Close()
	sess.conn.SetReadLimit(maxMessageSize)

	if !sess.authenticate() {
		return
	}

	sess.sub = sess.server.Notify.Subscribe()
	defer sess.server.Notify.Unsubscribe(sess.sub)

	if err := sess.sendSystemInfo(); err != nil {
		logger.WSWarnw("failed to send initial system_info", "error", err)
		return
	}

	pongCh := make(chan struct{}, 1)
	sess.conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	requests := make(chan clientRequest)
	readErrs := make(chan error, 1)
	go sess.readLoop(requests, readErrs)

	_, heartbeatPeriod, _, _, _ := sess.server.tunables()
	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()
	lastPong := time.Now()

	for {
		select {
		case err := <-readErrs:
			if err != nil {
				logger.WSInfow("session closed", "error", err)
			}
			return

		case req := <-requests:
			sess.handleRequest(req)

		case <-pongCh:
			lastPong = time.Now()

		case <-heartbeat.C:
			_, _, clientTimeout, _, _ := sess.server.tunables()
			if time.Since(lastPong) > clientTimeout {
				logger.WSWarnw("client heartbeat timeout, closing session")
				return
			}
			if err := sess.writeControl(websocket.PingMessage); err != nil {
				return
			}

		case <-sess.sub.Lagged():
			logger.WSWarnw("session lagged on notification bus, resyncing with a fresh snapshot")
			if err := sess.sendSystemInfo(); err != nil {
				return
			}

		case n := <-sess.sub.Chan():
			if err := sess.sendJSON(fromServer{Notification: &n}); err != nil {
				return
			}
		}
	}
}

func (sess *session) authenticate() bool {
	sess.conn.SetReadDeadline(time.Now().Add(authTimeout))
	_, msg, err := sess.conn.ReadMessage()
	if err != nil {
		sess.closeWithCode(closeCodeAuthTimeout, "auth_timeout")
		return false
	}

	const prefix = "Password "
	if len(msg) <= len(prefix) || string(msg[:len(prefix)]) != prefix {
		sess.closeWithCode(closeCodeAuth, "auth")
		return false
	}
	candidate := sha256.Sum256(msg[len(prefix):])
	passwordHash, _, _, _, _ := sess.server.tunables()
	if subtle.ConstantTimeCompare(candidate[:], passwordHash[:]) != 1 {
		sess.closeWithCode(closeCodeAuth, "auth")
		return false
	}

	sess.conn.SetReadDeadline(time.Time{})
	return true
}

func (sess *session) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	sess.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (sess *session) writeControl(messageType int) error {
	return sess.conn.WriteControl(messageType, nil, time.Now().Add(writeWait))
}

func (sess *session) sendSystemInfo() error {
	reply := make(chan eventqueue.SystemInfo, 1)
	sess.server.Events <- eventqueue.FetchSystemInfo{Reply: reply}
	info := <-reply
	return sess.sendJSON(fromServer{SystemInfo: &info})
}

// clientRequest is one decoded client→server frame.
type clientRequest struct {
	RequestID string
	Body      fromClientBody
}

type fromClientRaw struct {
	Request *struct {
		RequestID string         `json:"request_id"`
		Body      fromClientBody `json:"body"`
	} `json:"request,omitempty"`
}

type fromClientBody struct {
	CallAction *struct {
		PluginInstance string `json:"plugin_instance"`
		Module         string `json:"module"`
		Action         string `json:"action"`
	} `json:"call_action,omitempty"`
}

func (sess *session) readLoop(requests chan<- clientRequest, errs chan<- error) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			errs <- err
			return
		}
		if string(data) == `"ping"` {
			sess.sendJSON(json.RawMessage(`"pong"`))
			continue
		}
		if string(data) == `"pong"` {
			continue
		}

		var raw fromClientRaw
		if err := json.Unmarshal(data, &raw); err != nil || raw.Request == nil {
			sess.sendJSON(fromServer{Error: &errorFrame{ParseError: "malformed request"}})
			continue
		}
		requests <- clientRequest{RequestID: raw.Request.RequestID, Body: raw.Request.Body}
	}
}

func (sess *session) handleRequest(req clientRequest) {
	if req.Body.CallAction == nil {
		sess.sendJSON(fromServer{Error: &errorFrame{ParseError: "unrecognized request body"}})
		return
	}

	// Ambient rate limiting: fails open by waiting, never by closing or
	// dropping the request, so request/response pairing always holds.
	_ = sess.limiter.Wait(context.Background())

	reply := make(chan eventqueue.CallActionResult, 1)
	sess.server.Events <- eventqueue.ClientCommand{CallAction: eventqueue.CallAction{
		PluginInstance: req.Body.CallAction.PluginInstance,
		Module:         req.Body.CallAction.Module,
		Action:         req.Body.CallAction.Action,
		Reply:          reply,
	}}
	result := <-reply

	resp := response{RequestID: req.RequestID, Success: result.Success}
	if result.Message != "" {
		resp.Message = &result.Message
	}
	sess.sendJSON(fromServer{Response: &resp})
}

// fromServer is the tagged JSON union sent to clients, per spec §6.
type fromServer struct {
	SystemInfo   *eventqueue.SystemInfo `json:"system_info,omitempty"`
	Notification *notify.Notification   `json:"notification,omitempty"`
	Response     *response              `json:"response,omitempty"`
	Error        *errorFrame            `json:"error,omitempty"`
}

type response struct {
	RequestID string  `json:"request_id"`
	Success   bool    `json:"success"`
	Message   *string `json:"message,omitempty"`
}

type errorFrame struct {
	ParseError string `json:"parse_error"`
}

func (sess *session) sendJSON(v interface{}) error {
	sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sess.conn.WriteJSON(v)
}
