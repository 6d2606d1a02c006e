package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/match-service/internal/events"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnectionTracker — жизненный цикл соединения и ресинки; транспорт только
// сообщает сигналы, решения принимает трекер.
type ConnectionTracker interface {
	OnConnect(ctx context.Context, roomID string, userID int64, connectionID string, meta map[string]string) (string, error)
	OnDisconnect(ctx context.Context, roomID string, userID int64, connectionID string) error
	TriggerSync(ctx context.Context, roomID string, targetUserID int64, force bool) (string, error)
	TouchHeartbeat(ctx context.Context, roomID string, userID int64) error
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	tracker  ConnectionTracker

	pingEvery time.Duration
}

func NewServer(hub *Hub, tracker ConnectionTracker) *Server {
	return &Server{
		hub:     hub,
		tracker: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// Входящие клиентские сообщения; всё остальное игнорируется.
const typeSyncRequest = "sync_request"

type inboundMessage struct {
	Type string `json:"type"`
}

// WS endpoint: GET /ws/rooms/{id}?access_token=...&user_id=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accessToken := strings.TrimSpace(q.Get("access_token"))
	userIDStr := strings.TrimSpace(q.Get("user_id"))
	if accessToken == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	uid, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || uid <= 0 {
		http.Error(w, "invalid user_id", http.StatusUnauthorized)
		return
	}
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	connectionID := uuid.NewString()
	c := newWsConn(conn, roomID, uid, connectionID)
	s.hub.Add(c)

	meta := map[string]string{"remote_addr": r.RemoteAddr}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		meta["user_agent"] = ua
	}
	if _, err := s.tracker.OnConnect(r.Context(), roomID, uid, connectionID, meta); err != nil {
		slog.Warn("ws connect tracking failed", "room", roomID, "user", uid, "err", err)
	}

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	s.hub.Remove(c)

	if err := s.tracker.OnDisconnect(r.Context(), roomID, uid, connectionID); err != nil {
		slog.Debug("ws disconnect tracking failed", "room", roomID, "user", uid, "err", err)
	}

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "room", roomID, "user", uid, "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		_ = s.tracker.TouchHeartbeat(ctx, c.roomID, c.userID)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case typeSyncRequest:
			// Дебаунсится трекером: пачка запросов схлопнется в один снапшот.
			if _, err := s.tracker.TriggerSync(ctx, c.roomID, c.userID, false); err != nil {
				slog.Warn("ws sync request failed", "room", c.roomID, "user", c.userID, "err", err)
			}
		default:
			// ignore
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

type wsConn struct {
	conn         *websocket.Conn
	roomID       string
	userID       int64
	connectionID string
	sendMu       chan struct{}
	closed       chan struct{}
	closeOnce    sync.Once
}

func newWsConn(c *websocket.Conn, roomID string, userID int64, connectionID string) *wsConn {
	return &wsConn{
		conn:         c,
		roomID:       roomID,
		userID:       userID,
		connectionID: connectionID,
		sendMu:       make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
}

func (c *wsConn) Send(ev events.Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

func (c *wsConn) UserID() int64        { return c.userID }
func (c *wsConn) RoomID() string       { return c.roomID }
func (c *wsConn) ConnectionID() string { return c.connectionID }
