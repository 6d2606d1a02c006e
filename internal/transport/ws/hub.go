package ws

import (
	"sync"

	"github.com/cwrk-planet/match-service/internal/events"
)

type Conn interface {
	Send(ev events.Event) error
	Close() error
	UserID() int64
	RoomID() string
	ConnectionID() string
}

// Hub — realtime fan-out: множества соединений по комнатам.
// Hub знает только про доставку; состояние соединений живёт в БД.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[c.RoomID()]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[c.RoomID()] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[c.RoomID()]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, c.RoomID())
		}
	}
}

// Publish — best-effort рассылка всем соединениям комнаты.
func (h *Hub) Publish(roomID string, ev events.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[roomID]; ok {
		for c := range rs {
			_ = c.Send(ev)
		}
	}
	return nil
}

// PublishTo — адресная доставка одному пользователю (все его соединения).
func (h *Hub) PublishTo(roomID string, userID int64, ev events.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[roomID]; ok {
		for c := range rs {
			if c.UserID() == userID {
				_ = c.Send(ev)
			}
		}
	}
	return nil
}
