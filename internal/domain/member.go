package domain

import "time"

type MemberRole string

const (
	RoleHost   MemberRole = "HOST"
	RoleMember MemberRole = "MEMBER"
)

// Member пишется room-service-ом при join; здесь читаем и
// мягко обновляем last_seen / connection_status.
type Member struct {
	RoomID               string           `db:"room_id"`
	UserID               int64            `db:"user_id"`
	Role                 MemberRole       `db:"role"`
	DisplayName          *string          `db:"display_name"`
	IsActive             bool             `db:"is_active"`
	ConnectionStatus     ConnectionStatus `db:"connection_status"`
	JoinedAt             time.Time        `db:"joined_at"`
	LastSeen             time.Time        `db:"last_seen"`
	ReconnectionAttempts int64            `db:"reconnection_attempts"`
}
