package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/events"

	"github.com/google/uuid"
)

// EventService собирает обогащённые события из сырых дельт состояния и
// публикует их в realtime-канал. Все публикации fire-and-forget: сбой
// доставки логируется и никогда не доходит до вызывающего — зафиксированное
// в ledger-е состояние из-за него не откатывается.
type EventService struct {
	publisher events.Publisher
	members   MemberStore
	votes     VoteStore
	movies    MovieStore

	perVoteETA time.Duration
}

func NewEventService(publisher events.Publisher, members MemberStore, votes VoteStore, movies MovieStore) *EventService {
	return &EventService{
		publisher:  publisher,
		members:    members,
		votes:      votes,
		movies:     movies,
		perVoteETA: 30 * time.Second,
	}
}

func (s *EventService) SetPerVoteETA(d time.Duration) {
	if d > 0 {
		s.perVoteETA = d
	}
}

func newEvent(eventType, roomID string, payload any) events.Event {
	return events.Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// VoteUpdate — прогресс голосования: проценты, остаток, списки
// проголосовавших/ожидаемых, наивный ETA и метаданные фильма с fallback-ом.
func (s *EventService) VoteUpdate(ctx context.Context, room *domain.Room, userID int64, movieID string, voteType domain.VoteType, current, required int64) {
	remaining := required - current
	if remaining < 0 {
		remaining = 0
	}

	payload := events.VoteUpdatePayload{
		RoomID:         room.ID,
		UserID:         strconv.FormatInt(userID, 10),
		MovieID:        movieID,
		VoteType:       string(voteType),
		CurrentVotes:   current,
		RequiredVotes:  required,
		Percentage:     progressPercent(current, required),
		RemainingVotes: remaining,
		VotedUsers:     []string{},
		PendingUsers:   []string{},
		ETASeconds:     remaining * int64(s.perVoteETA/time.Second),
		Movie:          s.movieOrFallback(ctx, movieID),
	}

	// Обогащение best-effort: событие уходит и с пустыми списками.
	members, err := s.members.ListActive(ctx, room.ID)
	if err != nil {
		slog.Warn("vote update: list members failed", "room", room.ID, "err", err)
	}
	voters, err := s.votes.ListVoters(ctx, room.ID, movieID)
	if err != nil {
		slog.Warn("vote update: list voters failed", "room", room.ID, "err", err)
	}
	payload.VotedUsers, payload.PendingUsers = splitVoters(members, voters)

	s.publish(room.ID, newEvent(events.TypeVoteUpdate, room.ID, payload))
}

// MatchFound — единогласный матч; рассылается немедленно и один раз.
func (s *EventService) MatchFound(ctx context.Context, room *domain.Room, movieID string) {
	movie := s.movieOrFallback(ctx, movieID)

	payload := events.MatchFoundPayload{
		RoomID:       room.ID,
		MovieID:      movieID,
		MovieTitle:   movie.Title,
		Movie:        movie,
		Participants: []events.MatchParticipant{},
	}

	members, err := s.members.ListActive(ctx, room.ID)
	if err != nil {
		slog.Warn("match found: list members failed", "room", room.ID, "err", err)
	}
	for _, m := range members {
		payload.Participants = append(payload.Participants, events.MatchParticipant{
			UserID:           strconv.FormatInt(m.UserID, 10),
			DisplayName:      displayName(m),
			IsHost:           m.Role == domain.RoleHost,
			ConnectionStatus: string(m.ConnectionStatus),
		})
	}

	if room.VotingStartedAt != nil {
		payload.VotingDurationS = int64(time.Since(*room.VotingStartedAt) / time.Second)
	}

	s.publish(room.ID, newEvent(events.TypeMatchFound, room.ID, payload))
}

// ConnectionStatus — тонкий passthrough без обогащения.
func (s *EventService) ConnectionStatus(roomID string, userID int64, status domain.ConnectionStatus, connectionID string, meta map[string]string) {
	payload := events.ConnectionStatusPayload{
		RoomID:       roomID,
		UserID:       strconv.FormatInt(userID, 10),
		Status:       string(status),
		ConnectionID: connectionID,
		Meta:         meta,
	}
	s.publish(roomID, newEvent(events.TypeConnectionStatus, roomID, payload))
}

// RoomStateSync — снапшот агрегатора; адресный, если задан targetUserID.
func (s *EventService) RoomStateSync(roomID string, targetUserID int64, syncID string, state *events.RoomState) {
	payload := events.RoomStateSyncPayload{
		SyncID: syncID,
		State:  state,
	}
	ev := newEvent(events.TypeRoomStateSync, roomID, payload)

	if targetUserID != 0 {
		payload.TargetUserID = strconv.FormatInt(targetUserID, 10)
		ev.Payload = payload
		if err := s.publisher.PublishTo(roomID, targetUserID, ev); err != nil {
			slog.Warn("publish failed", "type", ev.Type, "room", roomID, "user", targetUserID, "err", err)
		}
		return
	}
	s.publish(roomID, ev)
}

func (s *EventService) publish(roomID string, ev events.Event) {
	if err := s.publisher.Publish(roomID, ev); err != nil {
		slog.Warn("publish failed", "type", ev.Type, "room", roomID, "err", err)
	}
}

func (s *EventService) movieOrFallback(ctx context.Context, movieID string) events.MovieSummary {
	meta, err := s.movies.Get(ctx, movieID)
	if err != nil || meta == nil {
		meta = domain.FallbackMovie(movieID)
	}
	sum := events.MovieSummary{
		MovieID: meta.MovieID,
		Title:   meta.Title,
		Genres:  meta.Genres,
	}
	if meta.PosterURL != nil {
		sum.PosterURL = *meta.PosterURL
	}
	return sum
}
