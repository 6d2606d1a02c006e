package service

import (
	"context"
	"testing"
	"time"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/events"
)

type connFixture struct {
	rooms       *fakeRoomStore
	members     *fakeMemberStore
	votes       *fakeVoteStore
	connections *fakeConnectionStore
	publisher   *fakePublisher
	svc         *ConnectionService
}

func newConnFixture(t *testing.T) *connFixture {
	t.Helper()

	current := "M1"
	rooms := newFakeRoomStore(&domain.Room{
		ID:             "room-1",
		Status:         domain.RoomActive,
		RequiredVotes:  2,
		CurrentMovieID: &current,
	})
	members := newFakeMemberStore()
	members.add("room-1", 1, "A", domain.RoleHost)
	members.add("room-1", 2, "B", domain.RoleMember)

	votes := newFakeVoteStore()
	connections := newFakeConnectionStore()
	movies := newFakeMovieStore()
	publisher := newFakePublisher()

	state := NewStateService(rooms, members, votes, connections, movies, fastPolicy(), isTransient)
	broadcaster := NewEventService(publisher, members, votes, movies)
	svc := NewConnectionService(connections, members, state, broadcaster, fastPolicy(), isTransient)

	return &connFixture{
		rooms:       rooms,
		members:     members,
		votes:       votes,
		connections: connections,
		publisher:   publisher,
		svc:         svc,
	}
}

func TestOnConnect_FirstConnection(t *testing.T) {
	f := newConnFixture(t)
	ctx := context.Background()

	connID, err := f.svc.OnConnect(ctx, "room-1", 1, "conn-1", map[string]string{"user_agent": "test"})
	if err != nil {
		t.Fatal(err)
	}
	if connID != "conn-1" {
		t.Fatalf("connection id = %q, want conn-1", connID)
	}

	info, err := f.svc.Status(ctx, "room-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Connected || info.Status != domain.ConnConnected {
		t.Errorf("status = %+v, want connected", info)
	}
	if info.ReconnectionAttempts != 0 {
		t.Errorf("attempts = %d, want 0 on first connect", info.ReconnectionAttempts)
	}

	evs := f.publisher.byType(events.TypeConnectionStatus)
	if len(evs) != 1 {
		t.Fatalf("connection_status events = %d, want 1", len(evs))
	}
	payload := evs[0].Payload.(events.ConnectionStatusPayload)
	if payload.Status != string(domain.ConnConnected) || payload.UserID != "1" {
		t.Errorf("payload = %+v", payload)
	}
	// первое подключение — не реконнект, ресинка нет
	if got := len(f.publisher.byType(events.TypeRoomStateSync)); got != 0 {
		t.Errorf("room_state_sync events = %d, want 0", got)
	}
}

func TestOnConnect_GeneratesConnectionID(t *testing.T) {
	f := newConnFixture(t)

	connID, err := f.svc.OnConnect(context.Background(), "room-1", 1, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if connID == "" {
		t.Fatal("empty generated connection id")
	}
}

func TestReconnect_IncrementsAttemptsAndResyncs(t *testing.T) {
	f := newConnFixture(t)
	ctx := context.Background()

	if _, err := f.svc.OnConnect(ctx, "room-1", 1, "conn-1", nil); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.OnDisconnect(ctx, "room-1", 1, "conn-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.OnConnect(ctx, "room-1", 1, "conn-2", nil); err != nil {
		t.Fatal(err)
	}

	info, err := f.svc.Status(ctx, "room-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if info.ReconnectionAttempts != 1 {
		t.Errorf("attempts = %d, want 1", info.ReconnectionAttempts)
	}
	if info.ConnectionID != "conn-2" {
		t.Errorf("connection id = %q, want conn-2", info.ConnectionID)
	}

	// реконнект — единственный источник адресного ресинка
	syncs := f.publisher.targeted[1]
	if len(syncs) != 1 {
		t.Fatalf("targeted syncs = %d, want 1", len(syncs))
	}
	payload := syncs[0].Payload.(events.RoomStateSyncPayload)
	if payload.SyncID == "" || payload.State == nil {
		t.Fatalf("sync payload = %+v", payload)
	}
	if payload.State.RoomID != "room-1" {
		t.Errorf("state room = %s", payload.State.RoomID)
	}
}

// Шторм реконнектов внутри окна дебаунса схлопывается в один ресинк.
func TestReconnectStorm_SingleDebouncedSync(t *testing.T) {
	f := newConnFixture(t)
	f.svc.SetDebounceWindow(time.Minute)
	ctx := context.Background()

	if _, err := f.svc.OnConnect(ctx, "room-1", 1, "conn-0", nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := f.svc.OnDisconnect(ctx, "room-1", 1, f.connections.records["room-1/1"].ConnectionID); err != nil {
			t.Fatal(err)
		}
		if _, err := f.svc.OnConnect(ctx, "room-1", 1, "", nil); err != nil {
			t.Fatal(err)
		}
	}

	if got := len(f.publisher.targeted[1]); got != 1 {
		t.Errorf("targeted syncs = %d, want 1 (debounced)", got)
	}

	info, _ := f.svc.Status(ctx, "room-1", 1)
	if info.ReconnectionAttempts != 5 {
		t.Errorf("attempts = %d, want 5", info.ReconnectionAttempts)
	}
}

func TestOnDisconnect_StaleSocketIgnored(t *testing.T) {
	f := newConnFixture(t)
	ctx := context.Background()

	if _, err := f.svc.OnConnect(ctx, "room-1", 1, "conn-1", nil); err != nil {
		t.Fatal(err)
	}
	// второй сокет того же пользователя вытесняет первый
	if _, err := f.svc.OnConnect(ctx, "room-1", 1, "conn-2", nil); err != nil {
		t.Fatal(err)
	}
	// закрытие старого сокета не должно трогать актуальную запись
	if err := f.svc.OnDisconnect(ctx, "room-1", 1, "conn-1"); err != nil {
		t.Fatal(err)
	}

	info, _ := f.svc.Status(ctx, "room-1", 1)
	if !info.Connected {
		t.Fatal("stale disconnect dropped the live connection")
	}

	var disconnects int
	for _, ev := range f.publisher.byType(events.TypeConnectionStatus) {
		if ev.Payload.(events.ConnectionStatusPayload).Status == string(domain.ConnDisconnected) {
			disconnects++
		}
	}
	if disconnects != 0 {
		t.Errorf("disconnect events = %d, want 0", disconnects)
	}
}

func TestOnDisconnect_SetsTTL(t *testing.T) {
	f := newConnFixture(t)
	f.svc.SetDisconnectTTL(time.Millisecond)
	ctx := context.Background()

	if _, err := f.svc.OnConnect(ctx, "room-1", 1, "conn-1", nil); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.OnDisconnect(ctx, "room-1", 1, "conn-1"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	removed, err := f.connections.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("swept = %d, want 1", removed)
	}

	info, _ := f.svc.Status(ctx, "room-1", 1)
	if info.Connected {
		t.Error("connected after sweep")
	}
}

func TestTriggerSync_ForceSkipsDebounce(t *testing.T) {
	f := newConnFixture(t)
	f.svc.SetDebounceWindow(time.Minute)
	ctx := context.Background()

	first, err := f.svc.TriggerSync(ctx, "room-1", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("first trigger coalesced unexpectedly")
	}

	second, err := f.svc.TriggerSync(ctx, "room-1", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if second != "" {
		t.Fatal("second trigger inside window not coalesced")
	}

	forced, err := f.svc.TriggerSync(ctx, "room-1", 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if forced == "" {
		t.Fatal("forced trigger coalesced")
	}

	// room-wide ресинки уходят broadcast-ом, не адресно
	if got := len(f.publisher.byType(events.TypeRoomStateSync)); got != 2 {
		t.Errorf("broadcast syncs = %d, want 2", got)
	}
}

func TestForceSyncAll(t *testing.T) {
	f := newConnFixture(t)
	ctx := context.Background()

	f.rooms.rooms["room-2"] = &domain.Room{ID: "room-2", Status: domain.RoomWaiting, RequiredVotes: 2}
	f.members.add("room-2", 5, "E", domain.RoleHost)

	if _, err := f.svc.OnConnect(ctx, "room-1", 1, "c1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.OnConnect(ctx, "room-2", 5, "c2", nil); err != nil {
		t.Fatal(err)
	}

	synced, err := f.svc.ForceSyncAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if synced != 2 {
		t.Fatalf("synced = %d, want 2", synced)
	}
	if got := len(f.publisher.byType(events.TypeRoomStateSync)); got != 2 {
		t.Errorf("room_state_sync events = %d, want 2", got)
	}
}

func TestStatus_UnknownUser(t *testing.T) {
	f := newConnFixture(t)

	info, err := f.svc.Status(context.Background(), "room-1", 42)
	if err != nil {
		t.Fatal(err)
	}
	if info.Connected || info.Status != domain.ConnDisconnected {
		t.Errorf("info = %+v, want disconnected default", info)
	}
	if info.RoomMembers != 2 {
		t.Errorf("room members = %d, want 2", info.RoomMembers)
	}
}
