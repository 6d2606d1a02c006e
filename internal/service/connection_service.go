package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/events"
	"github.com/cwrk-planet/match-service/internal/retry"

	"github.com/google/uuid"
)

// SyncBroadcaster — события трекера соединений.
type SyncBroadcaster interface {
	ConnectionStatus(roomID string, userID int64, status domain.ConnectionStatus, connectionID string, meta map[string]string)
	RoomStateSync(roomID string, targetUserID int64, syncID string, state *events.RoomState)
}

// ConnectionService отслеживает жизненный цикл соединений (room,user) и
// запускает ресинки через агрегатор. Всё состояние — в БД: дебаунс работает
// через условный захват окна, GC — через TTL; любой воркер может обработать
// любой сигнал. Статус соединения чисто информационный и на право голоса
// не влияет.
type ConnectionService struct {
	connections ConnectionStore
	members     MemberStore
	state       *StateService
	broadcaster SyncBroadcaster

	store          storeCaller
	debounceWindow time.Duration
	disconnectTTL  time.Duration
}

func NewConnectionService(connections ConnectionStore, members MemberStore, state *StateService, broadcaster SyncBroadcaster, policy retry.Policy, retryable func(error) bool) *ConnectionService {
	return &ConnectionService{
		connections:    connections,
		members:        members,
		state:          state,
		broadcaster:    broadcaster,
		store:          newStoreCaller(policy, retryable),
		debounceWindow: time.Second,
		disconnectTTL:  30 * time.Second,
	}
}

func (s *ConnectionService) SetDebounceWindow(d time.Duration) {
	if d > 0 {
		s.debounceWindow = d
	}
}

func (s *ConnectionService) SetDisconnectTTL(d time.Duration) {
	if d > 0 {
		s.disconnectTTL = d
	}
}

// OnConnect регистрирует соединение. Если по (room,user) висела
// DISCONNECTED-запись — это реконнект: инкремент счётчика попыток и
// дебаунс-ресинк для этого пользователя. ConnectionStatus(CONNECTED)
// эмитится всегда.
func (s *ConnectionService) OnConnect(ctx context.Context, roomID string, userID int64, connectionID string, meta map[string]string) (string, error) {
	if connectionID == "" {
		connectionID = uuid.NewString()
	}

	prior, err := s.connections.Get(ctx, roomID, userID)
	if err != nil {
		slog.Warn("connect: read prior record failed", "room", roomID, "user", userID, "err", err)
	}
	reconnected := prior != nil && prior.Status == domain.ConnDisconnected

	var attempts int64
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		attempts, err = s.connections.UpsertConnected(ctx, roomID, userID, connectionID, reconnected)
		return err
	}); err != nil {
		// Запись соединения — advisory: канал уже открыт, событие шлём всё равно.
		slog.Warn("connect: persist failed", "room", roomID, "user", userID, "err", err)
	}

	if err := s.members.UpdateConnectionStatus(ctx, roomID, userID, domain.ConnConnected, attempts); err != nil {
		slog.Debug("connect: member mirror failed", "room", roomID, "user", userID, "err", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.ConnectionStatus(roomID, userID, domain.ConnConnected, connectionID, meta)
	}

	if reconnected {
		if _, err := s.TriggerSync(ctx, roomID, userID, false); err != nil {
			slog.Warn("connect: resync failed", "room", roomID, "user", userID, "err", err)
		}
	}

	return connectionID, nil
}

// OnDisconnect помечает соединение DISCONNECTED и ставит TTL; более поздний
// реконнект просто перезапишет статус и снимет TTL.
func (s *ConnectionService) OnDisconnect(ctx context.Context, roomID string, userID int64, connectionID string) error {
	var marked bool
	if err := s.store.call(ctx, func(ctx context.Context) error {
		var err error
		marked, err = s.connections.MarkDisconnected(ctx, roomID, userID, connectionID, s.disconnectTTL)
		return err
	}); err != nil {
		slog.Warn("disconnect: persist failed", "room", roomID, "user", userID, "err", err)
	}
	if !marked {
		// Закрылся устаревший сокет — актуальное соединение уже новее.
		return nil
	}

	if err := s.members.UpdateConnectionStatus(ctx, roomID, userID, domain.ConnDisconnected, -1); err != nil {
		slog.Debug("disconnect: member mirror failed", "room", roomID, "user", userID, "err", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.ConnectionStatus(roomID, userID, domain.ConnDisconnected, connectionID, nil)
	}
	return nil
}

// TriggerSync — дебаунс по (room) либо (room,user): из пачки триггеров
// внутри окна агрегирует и публикует только выигравший захват окна.
// force пропускает дебаунс. Пустой syncID без ошибки — триггер схлопнут.
func (s *ConnectionService) TriggerSync(ctx context.Context, roomID string, targetUserID int64, force bool) (string, error) {
	if !force {
		claimed, err := s.connections.ClaimSyncWindow(ctx, roomID, targetUserID, s.debounceWindow)
		if err != nil {
			return "", err
		}
		if !claimed {
			return "", nil
		}
	}

	state, err := s.state.BuildState(ctx, roomID)
	if err != nil {
		return "", err
	}

	syncID := uuid.NewString()
	if s.broadcaster != nil {
		s.broadcaster.RoomStateSync(roomID, targetUserID, syncID, state)
	}
	return syncID, nil
}

// ForceSyncAll — массовое восстановление: ресинк всех комнат, где есть хотя
// бы одно живое соединение.
func (s *ConnectionService) ForceSyncAll(ctx context.Context) (int, error) {
	rooms, err := s.connections.ListConnectedRooms(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, roomID := range rooms {
		if _, err := s.TriggerSync(ctx, roomID, 0, true); err != nil {
			slog.Warn("force sync failed", "room", roomID, "err", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// ConnectionInfo — ответ getConnectionStatus.
type ConnectionInfo struct {
	Connected            bool
	Status               domain.ConnectionStatus
	ConnectionID         string
	LastSeen             time.Time
	ReconnectionAttempts int64
	RoomMembers          int64
	RoomConnections      int64
}

func (s *ConnectionService) Status(ctx context.Context, roomID string, userID int64) (*ConnectionInfo, error) {
	rec, err := s.connections.Get(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	info := &ConnectionInfo{Status: domain.ConnDisconnected}
	if rec != nil {
		info.Connected = rec.Status == domain.ConnConnected
		info.Status = rec.Status
		info.ConnectionID = rec.ConnectionID
		info.LastSeen = rec.LastSeen
		info.ReconnectionAttempts = rec.ReconnectionAttempts
	}

	if count, err := s.members.CountActive(ctx, roomID); err == nil {
		info.RoomMembers = count
	}
	if count, err := s.connections.CountConnected(ctx, roomID); err == nil {
		info.RoomConnections = count
	}
	return info, nil
}

// TouchHeartbeat — last_seen соединения и участника (ping/pong, HTTP-активность).
func (s *ConnectionService) TouchHeartbeat(ctx context.Context, roomID string, userID int64) error {
	if err := s.connections.TouchLastSeen(ctx, roomID, userID); err != nil {
		return err
	}
	return s.members.TouchHeartbeat(ctx, roomID, userID)
}

// RunSweeper периодически удаляет просроченные DISCONNECTED-записи.
// Корректность не зависит от этого процесса: TTL проверяется значением
// expires_at, свип — только уборка.
func (s *ConnectionService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.connections.SweepExpired(ctx); err != nil {
				slog.Debug("connection sweep failed", "err", err)
			} else if n > 0 {
				slog.Debug("connection sweep", "removed", n)
			}
		}
	}
}
