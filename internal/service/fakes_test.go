package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/events"
)

// In-memory ledger c той же семантикой атомарных примитивов, что и Postgres:
// условная вставка, инкремент под мьютексом, охраняемый переход статуса.

type fakeRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room

	getErrs int // сколько ближайших Get завершить ошибкой
	getErr  error
}

func newFakeRoomStore(rooms ...*domain.Room) *fakeRoomStore {
	s := &fakeRoomStore{rooms: make(map[string]*domain.Room)}
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	return s
}

func (s *fakeRoomStore) Get(ctx context.Context, id string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErrs > 0 {
		s.getErrs--
		return nil, s.getErr
	}
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRoomStore) MarkMatched(ctx context.Context, roomID, movieID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return false, domain.ErrRoomNotFound
	}
	if r.Status.Closed() {
		return false, nil
	}
	r.Status = domain.RoomMatched
	id := movieID
	r.ResultMovieID = &id
	now := time.Now()
	r.MatchedAt = &now
	return true, nil
}

type fakeMemberStore struct {
	mu      sync.Mutex
	members map[string][]domain.Member // roomID -> active members
	mirror  map[string]domain.ConnectionStatus
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{
		members: make(map[string][]domain.Member),
		mirror:  make(map[string]domain.ConnectionStatus),
	}
}

func (s *fakeMemberStore) add(roomID string, userID int64, name string, role domain.MemberRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := name
	s.members[roomID] = append(s.members[roomID], domain.Member{
		RoomID:           roomID,
		UserID:           userID,
		Role:             role,
		DisplayName:      &n,
		IsActive:         true,
		ConnectionStatus: domain.ConnConnected,
		JoinedAt:         time.Now(),
		LastSeen:         time.Now(),
	})
}

func (s *fakeMemberStore) ExistsActive(ctx context.Context, roomID string, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[roomID] {
		if m.UserID == userID && m.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeMemberStore) CountActive(ctx context.Context, roomID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.members[roomID])), nil
}

func (s *fakeMemberStore) ListActive(ctx context.Context, roomID string) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Member(nil), s.members[roomID]...), nil
}

func (s *fakeMemberStore) TouchHeartbeat(ctx context.Context, roomID string, userID int64) error {
	return nil
}

func (s *fakeMemberStore) UpdateConnectionStatus(ctx context.Context, roomID string, userID int64, status domain.ConnectionStatus, attempts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror[fmt.Sprintf("%s/%d", roomID, userID)] = status
	return nil
}

type fakeVoteStore struct {
	mu       sync.Mutex
	votes    map[string]domain.VoteRecord // room/user/movie
	counters map[string]int64             // room/movie
	shown    map[string]struct{}

	insertDropNext bool // симуляция проигранной гонки вставки: 0 строк и записи нет
}

func newFakeVoteStore() *fakeVoteStore {
	return &fakeVoteStore{
		votes:    make(map[string]domain.VoteRecord),
		counters: make(map[string]int64),
		shown:    make(map[string]struct{}),
	}
}

func voteKey(roomID string, userID int64, movieID string) string {
	return fmt.Sprintf("%s/%d/%s", roomID, userID, movieID)
}

func (s *fakeVoteStore) InsertVote(ctx context.Context, v *domain.VoteRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertDropNext {
		s.insertDropNext = false
		return false, nil
	}
	key := voteKey(v.RoomID, v.UserID, v.MovieID)
	if _, ok := s.votes[key]; ok {
		return false, nil
	}
	rec := *v
	rec.CreatedAt = time.Now()
	s.votes[key] = rec
	return true, nil
}

func (s *fakeVoteStore) GetVote(ctx context.Context, roomID string, userID int64, movieID string) (*domain.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.votes[voteKey(roomID, userID, movieID)]; ok {
		cp := rec
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeVoteStore) IncrementCounter(ctx context.Context, roomID, movieID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roomID + "/" + movieID
	s.counters[key]++
	return s.counters[key], nil
}

func (s *fakeVoteStore) GetCounter(ctx context.Context, roomID, movieID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[roomID+"/"+movieID], nil
}

func (s *fakeVoteStore) MarkShown(ctx context.Context, roomID, movieID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown[roomID+"/"+movieID] = struct{}{}
	return nil
}

func (s *fakeVoteStore) ListVoters(ctx context.Context, roomID, movieID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, rec := range s.votes {
		if rec.RoomID == roomID && rec.MovieID == movieID {
			out = append(out, rec.UserID)
		}
	}
	return out, nil
}

func (s *fakeVoteStore) ListVotedMovies(ctx context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, rec := range s.votes {
		if rec.RoomID == roomID {
			seen[rec.MovieID] = struct{}{}
		}
	}
	prefix := roomID + "/"
	for key := range s.shown {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			seen[key[len(prefix):]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakeVoteStore) History(ctx context.Context, roomID, after string, limit int) ([]domain.VoteRecord, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VoteRecord
	for _, rec := range s.votes {
		if rec.RoomID == roomID {
			out = append(out, rec)
		}
	}
	return out, "", nil
}

type fakeConnectionStore struct {
	mu      sync.Mutex
	records map[string]*domain.ConnectionRecord // room/user
	windows map[string]time.Time                // room/user -> window_until
}

func newFakeConnectionStore() *fakeConnectionStore {
	return &fakeConnectionStore{
		records: make(map[string]*domain.ConnectionRecord),
		windows: make(map[string]time.Time),
	}
}

func connKey(roomID string, userID int64) string {
	return fmt.Sprintf("%s/%d", roomID, userID)
}

func (s *fakeConnectionStore) Get(ctx context.Context, roomID string, userID int64) (*domain.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[connKey(roomID, userID)]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeConnectionStore) UpsertConnected(ctx context.Context, roomID string, userID int64, connectionID string, incrementAttempts bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := connKey(roomID, userID)
	rec, ok := s.records[key]
	if !ok {
		rec = &domain.ConnectionRecord{RoomID: roomID, UserID: userID}
		s.records[key] = rec
	}
	if incrementAttempts {
		rec.ReconnectionAttempts++
	}
	rec.ConnectionID = connectionID
	rec.Status = domain.ConnConnected
	rec.ConnectedAt = time.Now()
	rec.LastSeen = time.Now()
	rec.ExpiresAt = nil
	return rec.ReconnectionAttempts, nil
}

func (s *fakeConnectionStore) MarkDisconnected(ctx context.Context, roomID string, userID int64, connectionID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[connKey(roomID, userID)]
	if !ok || rec.ConnectionID != connectionID {
		return false, nil
	}
	rec.Status = domain.ConnDisconnected
	rec.LastSeen = time.Now()
	exp := time.Now().Add(ttl)
	rec.ExpiresAt = &exp
	return true, nil
}

func (s *fakeConnectionStore) TouchLastSeen(ctx context.Context, roomID string, userID int64) error {
	return nil
}

func (s *fakeConnectionStore) CountConnected(ctx context.Context, roomID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.records {
		if rec.RoomID == roomID && rec.Status == domain.ConnConnected {
			n++
		}
	}
	return n, nil
}

func (s *fakeConnectionStore) ListConnectedRooms(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, rec := range s.records {
		if rec.Status == domain.ConnConnected {
			seen[rec.RoomID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakeConnectionStore) SweepExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for key, rec := range s.records {
		if rec.ExpiresAt != nil && rec.ExpiresAt.Before(now) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

func (s *fakeConnectionStore) ClaimSyncWindow(ctx context.Context, roomID string, userID int64, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := connKey(roomID, userID)
	now := time.Now()
	if until, ok := s.windows[key]; ok && now.Before(until) {
		return false, nil
	}
	s.windows[key] = now.Add(window)
	return true, nil
}

type fakeMovieStore struct {
	mu     sync.Mutex
	movies map[string]*domain.MovieMeta
}

func newFakeMovieStore() *fakeMovieStore {
	return &fakeMovieStore{movies: make(map[string]*domain.MovieMeta)}
}

func (s *fakeMovieStore) add(m *domain.MovieMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.MovieID] = m
}

func (s *fakeMovieStore) Get(ctx context.Context, movieID string) (*domain.MovieMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.movies[movieID]; ok {
		cp := *m
		return &cp, nil
	}
	return domain.FallbackMovie(movieID), nil
}

// fakePublisher пишет события в память; failErr имитирует сбой транспорта.
type fakePublisher struct {
	mu       sync.Mutex
	events   []events.Event
	targeted map[int64][]events.Event
	failErr  error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{targeted: make(map[int64][]events.Event)}
}

func (p *fakePublisher) Publish(roomID string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) PublishTo(roomID string, userID int64, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.targeted[userID] = append(p.targeted[userID], ev)
	return nil
}

func (p *fakePublisher) byType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
