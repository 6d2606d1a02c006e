package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/events"
	"github.com/cwrk-planet/match-service/internal/retry"
)

// StateService — чистое чтение: пересобирает авторитетный снапшот комнаты
// из ledger-а по требованию. Единственная ошибка наружу — RoomNotFound;
// отсутствие метаданных и прочая необязательная обвязка деградируют мягко.
type StateService struct {
	rooms       RoomStore
	members     MemberStore
	votes       VoteStore
	connections ConnectionStore
	movies      MovieStore

	store storeCaller
}

func NewStateService(rooms RoomStore, members MemberStore, votes VoteStore, connections ConnectionStore, movies MovieStore, policy retry.Policy, retryable func(error) bool) *StateService {
	return &StateService{
		rooms:       rooms,
		members:     members,
		votes:       votes,
		connections: connections,
		movies:      movies,
		store:       newStoreCaller(policy, retryable),
	}
}

func (s *StateService) BuildState(ctx context.Context, roomID string) (*events.RoomState, error) {
	var room *domain.Room
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.rooms.Get(ctx, roomID)
		return err
	}); err != nil {
		return nil, err
	}

	members, err := s.members.ListActive(ctx, roomID)
	if err != nil {
		slog.Warn("state: list members failed", "room", roomID, "err", err)
		members = nil
	}

	state := &events.RoomState{
		RoomID:      room.ID,
		Status:      string(room.Status),
		MemberCount: int64(len(members)),
	}

	if connected, err := s.connections.CountConnected(ctx, roomID); err == nil {
		state.ActiveConnections = connected
	} else {
		slog.Warn("state: count connections failed", "room", roomID, "err", err)
	}

	required := room.RequiredVotes
	if required <= 0 {
		required = int64(len(members))
		if required < 1 {
			required = 1
		}
	}

	// Прогресс считается по текущему фильму раунда; после матча — по
	// выигравшему, чтобы снапшот показывал 100%.
	progressMovie := room.CurrentMovieID
	if room.Status == domain.RoomMatched && room.ResultMovieID != nil {
		progressMovie = room.ResultMovieID
	}

	progress := events.VotingProgress{
		RequiredVotes: required,
		VotedUsers:    []string{},
		PendingUsers:  []string{},
	}
	if progressMovie != nil {
		count, err := s.votes.GetCounter(ctx, roomID, *progressMovie)
		if err != nil {
			slog.Warn("state: read counter failed", "room", roomID, "err", err)
		}
		progress.CurrentVotes = count
		progress.Percentage = progressPercent(count, required)

		voters, err := s.votes.ListVoters(ctx, roomID, *progressMovie)
		if err != nil {
			slog.Warn("state: list voters failed", "room", roomID, "err", err)
		}
		progress.VotedUsers, progress.PendingUsers = splitVoters(members, voters)
	}
	state.Progress = progress

	if room.CurrentMovieID != nil {
		state.CurrentMovie = s.movieSummary(ctx, *room.CurrentMovieID)
	}
	if room.ResultMovieID != nil {
		state.MatchedMovie = s.movieSummary(ctx, *room.ResultMovieID)
	}

	voted, err := s.votes.ListVotedMovies(ctx, roomID)
	if err != nil {
		slog.Warn("state: list voted movies failed", "room", roomID, "err", err)
	}
	if voted == nil {
		voted = []string{}
	}
	state.VotedMovies = voted

	return state, nil
}

// movieSummary — метаданные с fallback-ом: промах кэша не валит снапшот.
func (s *StateService) movieSummary(ctx context.Context, movieID string) *events.MovieSummary {
	meta, err := s.movies.Get(ctx, movieID)
	if err != nil || meta == nil {
		meta = domain.FallbackMovie(movieID)
	}
	sum := &events.MovieSummary{
		MovieID: meta.MovieID,
		Title:   meta.Title,
		Genres:  meta.Genres,
	}
	if meta.PosterURL != nil {
		sum.PosterURL = *meta.PosterURL
	}
	return sum
}

// splitVoters делит активных участников на проголосовавших и ожидаемых.
// В списках — отображаемые имена, либо id, если имени нет.
func splitVoters(members []domain.Member, voters []int64) (voted, pending []string) {
	votedSet := make(map[int64]struct{}, len(voters))
	for _, id := range voters {
		votedSet[id] = struct{}{}
	}

	voted = []string{}
	pending = []string{}
	for _, m := range members {
		name := displayName(m)
		if _, ok := votedSet[m.UserID]; ok {
			voted = append(voted, name)
		} else {
			pending = append(pending, name)
		}
	}
	return voted, pending
}

func displayName(m domain.Member) string {
	if m.DisplayName != nil && *m.DisplayName != "" {
		return *m.DisplayName
	}
	return strconv.FormatInt(m.UserID, 10)
}
