package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/match-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Состояние соединений и окна дебаунса живут в той же БД, что и голоса:
// обработчики stateless, общей памяти между вызовами нет.
type ConnectionRepository struct {
	db *pgxpool.Pool
}

func NewConnectionRepository(db *pgxpool.Pool) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) Get(ctx context.Context, roomID string, userID int64) (*domain.ConnectionRecord, error) {
	var c domain.ConnectionRecord
	err := r.db.QueryRow(ctx, `
		SELECT room_id, user_id, connection_id, status, connected_at, last_seen,
		       reconnection_attempts, expires_at
		FROM room_connections WHERE room_id=$1 AND user_id=$2
	`, roomID, userID).Scan(&c.RoomID, &c.UserID, &c.ConnectionID, &c.Status,
		&c.ConnectedAt, &c.LastSeen, &c.ReconnectionAttempts, &c.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpsertConnected переводит запись в CONNECTED и снимает TTL.
// incrementAttempts=true при реконнекте (предыдущий статус DISCONNECTED).
func (r *ConnectionRepository) UpsertConnected(ctx context.Context, roomID string, userID int64, connectionID string, incrementAttempts bool) (int64, error) {
	inc := int64(0)
	if incrementAttempts {
		inc = 1
	}

	var attempts int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO room_connections
			(room_id, user_id, connection_id, status, connected_at, last_seen, reconnection_attempts, expires_at)
		VALUES ($1, $2, $3, 'CONNECTED', now(), now(), 0, NULL)
		ON CONFLICT (room_id, user_id) DO UPDATE SET
			connection_id = $3,
			status = 'CONNECTED',
			connected_at = now(),
			last_seen = now(),
			reconnection_attempts = room_connections.reconnection_attempts + $4,
			expires_at = NULL
		RETURNING reconnection_attempts
	`, roomID, userID, connectionID, inc).Scan(&attempts)
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// MarkDisconnected — только если connection_id совпадает: поздний close
// старого сокета не должен затирать уже восстановленное соединение.
func (r *ConnectionRepository) MarkDisconnected(ctx context.Context, roomID string, userID int64, connectionID string, ttl time.Duration) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE room_connections
		SET status='DISCONNECTED', last_seen=now(),
		    expires_at = now() + ($4::bigint * INTERVAL '1 second')
		WHERE room_id=$1 AND user_id=$2 AND connection_id=$3
	`, roomID, userID, connectionID, int64(ttl/time.Second))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ConnectionRepository) TouchLastSeen(ctx context.Context, roomID string, userID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE room_connections SET last_seen=now() WHERE room_id=$1 AND user_id=$2`,
		roomID, userID)
	return err
}

func (r *ConnectionRepository) CountConnected(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_connections WHERE room_id=$1 AND status='CONNECTED'`,
		roomID).Scan(&count)
	return count, err
}

// ListConnectedRooms — комнаты хотя бы с одним живым соединением (bulk resync).
func (r *ConnectionRepository) ListConnectedRooms(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT room_id FROM room_connections WHERE status='CONNECTED'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SweepExpired — TTL-замена таймеров GC: просроченные DISCONNECTED-записи
// удаляет любой воркер, когда бы он ни проснулся.
func (r *ConnectionRepository) SweepExpired(ctx context.Context) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM room_connections WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ClaimSyncWindow — дебаунс без таймеров в памяти: триггер выигрывает окно
// условным апдейтом и только тогда выполняет resync. Проигравшие внутри
// окна схлопываются в no-op. userID=0 — окно всей комнаты.
func (r *ConnectionRepository) ClaimSyncWindow(ctx context.Context, roomID string, userID int64, window time.Duration) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		INSERT INTO sync_windows (room_id, user_id, window_until)
		VALUES ($1, $2, now() + ($3::bigint * INTERVAL '1 millisecond'))
		ON CONFLICT (room_id, user_id) DO UPDATE SET
			window_until = now() + ($3::bigint * INTERVAL '1 millisecond')
		WHERE sync_windows.window_until < now()
	`, roomID, userID, window.Milliseconds())
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
