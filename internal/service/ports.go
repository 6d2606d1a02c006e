package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/match-service/internal/domain"
)

// Контракты Vote Ledger. Реализация — internal/postgres; сервисы знают
// только примитивы: условная вставка, атомарный инкремент, условный апдейт.

type RoomStore interface {
	Get(ctx context.Context, id string) (*domain.Room, error)
	MarkMatched(ctx context.Context, roomID, movieID string) (bool, error)
}

type MemberStore interface {
	ExistsActive(ctx context.Context, roomID string, userID int64) (bool, error)
	CountActive(ctx context.Context, roomID string) (int64, error)
	ListActive(ctx context.Context, roomID string) ([]domain.Member, error)
	TouchHeartbeat(ctx context.Context, roomID string, userID int64) error
	UpdateConnectionStatus(ctx context.Context, roomID string, userID int64, status domain.ConnectionStatus, attempts int64) error
}

type VoteStore interface {
	InsertVote(ctx context.Context, v *domain.VoteRecord) (bool, error)
	GetVote(ctx context.Context, roomID string, userID int64, movieID string) (*domain.VoteRecord, error)
	IncrementCounter(ctx context.Context, roomID, movieID string) (int64, error)
	GetCounter(ctx context.Context, roomID, movieID string) (int64, error)
	MarkShown(ctx context.Context, roomID, movieID string) error
	ListVoters(ctx context.Context, roomID, movieID string) ([]int64, error)
	ListVotedMovies(ctx context.Context, roomID string) ([]string, error)
	History(ctx context.Context, roomID, after string, limit int) ([]domain.VoteRecord, string, error)
}

type ConnectionStore interface {
	Get(ctx context.Context, roomID string, userID int64) (*domain.ConnectionRecord, error)
	UpsertConnected(ctx context.Context, roomID string, userID int64, connectionID string, incrementAttempts bool) (int64, error)
	MarkDisconnected(ctx context.Context, roomID string, userID int64, connectionID string, ttl time.Duration) (bool, error)
	TouchLastSeen(ctx context.Context, roomID string, userID int64) error
	CountConnected(ctx context.Context, roomID string) (int64, error)
	ListConnectedRooms(ctx context.Context) ([]string, error)
	SweepExpired(ctx context.Context) (int64, error)
	ClaimSyncWindow(ctx context.Context, roomID string, userID int64, window time.Duration) (bool, error)
}

type MovieStore interface {
	Get(ctx context.Context, movieID string) (*domain.MovieMeta, error)
}
