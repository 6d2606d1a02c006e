package postgres

import (
	"context"

	"github.com/cwrk-planet/match-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	query := `
		SELECT id, status, host_id, member_count, max_members, required_votes,
		       current_movie_id, result_movie_id, voting_started_at, matched_at,
		       created_at, updated_at
		FROM rooms WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rm.ID, &rm.Status, &rm.HostID, &rm.MemberCount, &rm.MaxMembers, &rm.RequiredVotes,
		&rm.CurrentMovieID, &rm.ResultMovieID, &rm.VotingStartedAt, &rm.MatchedAt,
		&rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// MarkMatched — охраняемый переход в MATCHED. Двое могут добить счётчик
// одновременно: выигрывает одна транзакция, проигравший получает false и
// это штатно (матч уже объявлен).
func (r *RoomRepository) MarkMatched(ctx context.Context, roomID, movieID string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE rooms
		SET status='MATCHED', result_movie_id=$2, matched_at=now(), updated_at=now()
		WHERE id=$1 AND status IN ('WAITING','ACTIVE')
	`, roomID, movieID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
