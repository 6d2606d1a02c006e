package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/retry"
)

// VoteBroadcaster — события, которые процессор голосов эмитит после фиксации
// состояния. Реализация fire-and-forget: ошибки доставки не возвращаются.
type VoteBroadcaster interface {
	VoteUpdate(ctx context.Context, room *domain.Room, userID int64, movieID string, voteType domain.VoteType, current, required int64)
	MatchFound(ctx context.Context, room *domain.Room, movieID string)
}

// VoteOutcome — снапшот комнаты после применения голоса.
type VoteOutcome struct {
	RoomID        string
	Status        domain.RoomStatus
	MovieID       string
	VoteType      domain.VoteType
	CurrentVotes  int64
	RequiredVotes int64
	Percentage    float64
	Matched       bool
	ResultMovieID *string
}

type VoteService struct {
	rooms   RoomStore
	members MemberStore
	votes   VoteStore

	broadcaster VoteBroadcaster
	store       storeCaller
}

func NewVoteService(rooms RoomStore, members MemberStore, votes VoteStore, broadcaster VoteBroadcaster, policy retry.Policy, retryable func(error) bool) *VoteService {
	return &VoteService{
		rooms:       rooms,
		members:     members,
		votes:       votes,
		broadcaster: broadcaster,
		store:       newStoreCaller(policy, retryable),
	}
}

// SubmitVote применяет один голос с эффектом exactly-once на счётчике.
// Вся координация между конкурентными вызовами — через атомарные примитивы
// ledger-а: условная вставка защищает от дублей, инкремент возвращает новый
// итог, переход в MATCHED охраняем и идемпотентен.
func (s *VoteService) SubmitVote(ctx context.Context, roomID string, userID int64, movieID string, voteType domain.VoteType) (*VoteOutcome, error) {
	if roomID == "" || movieID == "" || userID == 0 || !voteType.Valid() {
		return nil, domain.ErrInvalidVote
	}

	var room *domain.Room
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.rooms.Get(ctx, roomID)
		return err
	}); err != nil {
		return nil, err
	}
	if room.Status.Closed() {
		return nil, domain.ErrRoomClosed
	}

	var isMember bool
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		isMember, err = s.members.ExistsActive(ctx, roomID, userID)
		return err
	}); err != nil {
		return nil, err
	}
	if !isMember {
		return nil, domain.ErrNotMember
	}

	// Маркер показа — best-effort, для дедупликации рекомендаций.
	if err := s.votes.MarkShown(ctx, roomID, movieID); err != nil {
		slog.Debug("mark shown failed", "room", roomID, "movie", movieID, "err", err)
	}

	required, err := s.requiredVotes(ctx, room)
	if err != nil {
		return nil, err
	}

	// Консенсус считается только по LIKE: dislike/skip не трогают ни
	// счётчик, ни записи голосов.
	if !voteType.Counting() {
		current, err := s.currentCount(ctx, roomID, movieID)
		if err != nil {
			return nil, err
		}
		return s.outcome(room, movieID, voteType, current, required, false), nil
	}

	var inserted bool
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		inserted, err = s.votes.InsertVote(ctx, &domain.VoteRecord{
			RoomID:   roomID,
			UserID:   userID,
			MovieID:  movieID,
			VoteType: voteType,
		})
		return err
	}); err != nil {
		return nil, err
	}
	if !inserted {
		// Нулевая вставка не различает «дубль» и «проигранную гонку
		// вставки» — перечитываем один раз, прежде чем отдать ошибку.
		existing, err := s.votes.GetVote(ctx, roomID, userID, movieID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
		}
		if existing != nil {
			return nil, domain.ErrDuplicateVote
		}
		return nil, domain.ErrServiceUnavailable
	}

	var total int64
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.votes.IncrementCounter(ctx, roomID, movieID)
		return err
	}); err != nil {
		return nil, err
	}

	if total >= required {
		var won bool
		if err := s.store.call(ctx, func(ctx context.Context) error {
			var err error
			won, err = s.rooms.MarkMatched(ctx, roomID, movieID)
			return err
		}); err != nil {
			return nil, err
		}
		if won && s.broadcaster != nil {
			// Проигравший конкурентный переход — штатный no-op:
			// MatchFound рассылает только победитель.
			s.broadcaster.MatchFound(ctx, room, movieID)
		}
		return s.outcome(room, movieID, voteType, total, required, true), nil
	}

	if s.broadcaster != nil {
		s.broadcaster.VoteUpdate(ctx, room, userID, movieID, voteType, total, required)
	}
	return s.outcome(room, movieID, voteType, total, required, false), nil
}

// VoteHistory — журнал голосов комнаты с курсорной пагинацией.
func (s *VoteService) VoteHistory(ctx context.Context, roomID, after string, limit int) ([]domain.VoteRecord, string, error) {
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return nil, "", err
	}
	return s.votes.History(ctx, roomID, after, limit)
}

// requiredVotes — стабильный порог раунда, снятый room-service-ом при старте.
// Для комнат, активированных до появления required_votes, порог — текущее
// число активных участников.
func (s *VoteService) requiredVotes(ctx context.Context, room *domain.Room) (int64, error) {
	if room.RequiredVotes > 0 {
		return room.RequiredVotes, nil
	}
	var count int64
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.members.CountActive(ctx, room.ID)
		return err
	}); err != nil {
		return 0, err
	}
	if count < 1 {
		count = 1
	}
	return count, nil
}

func (s *VoteService) currentCount(ctx context.Context, roomID, movieID string) (int64, error) {
	var total int64
	err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.votes.GetCounter(ctx, roomID, movieID)
		return err
	})
	return total, err
}

func (s *VoteService) outcome(room *domain.Room, movieID string, voteType domain.VoteType, current, required int64, matched bool) *VoteOutcome {
	out := &VoteOutcome{
		RoomID:        room.ID,
		Status:        room.Status,
		MovieID:       movieID,
		VoteType:      voteType,
		CurrentVotes:  current,
		RequiredVotes: required,
		Percentage:    progressPercent(current, required),
		Matched:       matched,
	}
	if matched {
		out.Status = domain.RoomMatched
		id := movieID
		out.ResultMovieID = &id
	} else {
		out.ResultMovieID = room.ResultMovieID
	}
	return out
}

// progressPercent — процент с точностью до десятых (2/3 -> 66.7).
func progressPercent(current, required int64) float64 {
	if required <= 0 {
		return 0
	}
	p := float64(current) / float64(required) * 100
	if p > 100 {
		p = 100
	}
	return math.Round(p*10) / 10
}
