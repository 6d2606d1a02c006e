package postgres

import (
	"context"

	"github.com/cwrk-planet/match-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Членство пишет room-service; здесь только чтение ростера и
// мягкие обновления last_seen / connection_status.
type MemberRepository struct {
	db *pgxpool.Pool
}

func NewMemberRepository(db *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) ExistsActive(ctx context.Context, roomID string, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2 AND is_active)`,
		roomID, userID).Scan(&exists)
	return exists, err
}

func (r *MemberRepository) CountActive(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_members WHERE room_id=$1 AND is_active`, roomID).Scan(&count)
	return count, err
}

func (r *MemberRepository) ListActive(ctx context.Context, roomID string) ([]domain.Member, error) {
	rows, err := r.db.Query(ctx, `
		SELECT room_id, user_id, role, display_name, is_active, connection_status,
		       joined_at, last_seen, reconnection_attempts
		FROM room_members
		WHERE room_id=$1 AND is_active
		ORDER BY joined_at ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Role, &m.DisplayName, &m.IsActive,
			&m.ConnectionStatus, &m.JoinedAt, &m.LastSeen, &m.ReconnectionAttempts); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *MemberRepository) TouchHeartbeat(ctx context.Context, roomID string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE room_members SET last_seen=now() WHERE room_id=$1 AND user_id=$2`,
		roomID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// UpdateConnectionStatus — зеркало статуса соединения на участнике;
// чисто информационное, на право голоса не влияет. attempts < 0 — не менять.
func (r *MemberRepository) UpdateConnectionStatus(ctx context.Context, roomID string, userID int64, status domain.ConnectionStatus, attempts int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE room_members
		SET connection_status=$3,
		    reconnection_attempts = CASE WHEN $4 >= 0 THEN $4 ELSE reconnection_attempts END,
		    last_seen=now()
		WHERE room_id=$1 AND user_id=$2
	`, roomID, userID, status, attempts)
	return err
}
