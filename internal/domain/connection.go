package domain

import "time"

type ConnectionStatus string

const (
	ConnConnected    ConnectionStatus = "CONNECTED"
	ConnDisconnected ConnectionStatus = "DISCONNECTED"
	ConnReconnecting ConnectionStatus = "RECONNECTING"
)

// ConnectionRecord — эфемерное состояние соединения (room,user).
// ExpiresAt ставится при disconnect и чистится TTL-свипом;
// повторный connect его обнуляет.
type ConnectionRecord struct {
	RoomID               string           `db:"room_id"`
	UserID               int64            `db:"user_id"`
	ConnectionID         string           `db:"connection_id"`
	Status               ConnectionStatus `db:"status"`
	ConnectedAt          time.Time        `db:"connected_at"`
	LastSeen             time.Time        `db:"last_seen"`
	ReconnectionAttempts int64            `db:"reconnection_attempts"`
	ExpiresAt            *time.Time       `db:"expires_at"`
}
