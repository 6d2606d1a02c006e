package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/match-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VoteRepository struct {
	db *pgxpool.Pool
}

func NewVoteRepository(db *pgxpool.Pool) *VoteRepository {
	return &VoteRepository{db: db}
}

// InsertVote — условная вставка. false без ошибки означает, что запись
// (room,user,movie) уже существует; запись никогда не перезаписывается.
func (r *VoteRepository) InsertVote(ctx context.Context, v *domain.VoteRecord) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		INSERT INTO room_votes (room_id, user_id, movie_id, vote_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id, movie_id) DO NOTHING
	`, v.RoomID, v.UserID, v.MovieID, v.VoteType)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *VoteRepository) GetVote(ctx context.Context, roomID string, userID int64, movieID string) (*domain.VoteRecord, error) {
	var v domain.VoteRecord
	err := r.db.QueryRow(ctx, `
		SELECT room_id, user_id, movie_id, vote_type, created_at
		FROM room_votes WHERE room_id=$1 AND user_id=$2 AND movie_id=$3
	`, roomID, userID, movieID).Scan(&v.RoomID, &v.UserID, &v.MovieID, &v.VoteType, &v.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// IncrementCounter — атомарный инкремент счётчика с ленивым созданием.
// Новое значение возвращает сама СУБД, без read-then-write.
func (r *VoteRepository) IncrementCounter(ctx context.Context, roomID, movieID string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO vote_counters (room_id, movie_id, votes)
		VALUES ($1, $2, 1)
		ON CONFLICT (room_id, movie_id)
		DO UPDATE SET votes = vote_counters.votes + 1
		RETURNING votes
	`, roomID, movieID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *VoteRepository) GetCounter(ctx context.Context, roomID, movieID string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT votes FROM vote_counters WHERE room_id=$1 AND movie_id=$2`,
		roomID, movieID).Scan(&total)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}

// MarkShown — маркер «фильм показан комнате» для дедупликации рекомендаций.
func (r *VoteRepository) MarkShown(ctx context.Context, roomID, movieID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO room_shown_movies (room_id, movie_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, movie_id) DO NOTHING
	`, roomID, movieID)
	return err
}

// ListVoters — кто уже отдал голос по фильму (любого типа).
func (r *VoteRepository) ListVoters(ctx context.Context, roomID, movieID string) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM room_votes WHERE room_id=$1 AND movie_id=$2 ORDER BY created_at ASC`,
		roomID, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListVotedMovies — фильмы, которые комната уже видела: объединение
// голосов и маркеров показа.
func (r *VoteRepository) ListVotedMovies(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT movie_id FROM room_votes WHERE room_id=$1
		UNION
		SELECT movie_id FROM room_shown_movies WHERE room_id=$1
	`, roomID)
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

// History возвращает голоса комнаты с курсорной пагинацией (created_at, movie_id DESC).
func (r *VoteRepository) History(ctx context.Context, roomID, after string, limit int) ([]domain.VoteRecord, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const baseQuery = `
		SELECT room_id, user_id, movie_id, vote_type, created_at
		FROM room_votes
		WHERE room_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND movie_id < $3)
		  )
		ORDER BY created_at DESC, movie_id DESC
		LIMIT $4
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, baseQuery, roomID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.VoteRecord
	for rows.Next() {
		var v domain.VoteRecord
		if err := rows.Scan(&v.RoomID, &v.UserID, &v.MovieID, &v.VoteType, &v.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, v)
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.MovieID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
