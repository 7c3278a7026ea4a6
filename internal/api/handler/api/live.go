package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/newthinker/tradeboard/internal/api/middleware"
	"github.com/newthinker/tradeboard/internal/api/response"
	"github.com/newthinker/tradeboard/internal/app"
	"github.com/newthinker/tradeboard/internal/present"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// LiveObserver counts connected live view clients.
type LiveObserver interface {
	LiveSubscriberInc()
	LiveSubscriberDec()
}

// LiveHandler streams the session's dashboard over a websocket, one message
// per store change. Bursts of changes are coalesced into a single push.
type LiveHandler struct {
	upgrader websocket.Upgrader
	observer LiveObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewLiveHandler creates a live view handler. observer may be nil.
func NewLiveHandler(observer LiveObserver, logger *zap.Logger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Serve upgrades the request and pushes the dashboard until the client goes
// away or the session is closed.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	s, err := middleware.SessionFrom(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.observer != nil {
		h.observer.LiveSubscriberInc()
		defer h.observer.LiveSubscriberDec()
	}

	changes, cancel := s.Store().Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	if err := h.push(conn, s); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case _, ok := <-changes:
			if !ok {
				// session torn down
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := h.push(conn, s); err != nil {
				h.logger.Debug("live push failed", zap.String("session", s.ID()), zap.Error(err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) push(conn *websocket.Conn, s *app.Session) error {
	s.Touch()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(present.BuildDashboard(s.Store().Snapshot(h.now())))
}

// readPump discards client messages and closes done when the connection drops.
func (h *LiveHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
