package events

import "time"

// Типы событий, уходящих в realtime-канал
const (
	TypeVoteUpdate       = "vote_update"       // прогресс голосования по фильму
	TypeMatchFound       = "match_found"       // единогласный матч, раунд окончен
	TypeConnectionStatus = "connection_status" // connect/disconnect участника
	TypeRoomStateSync    = "room_state_sync"   // полный снапшот состояния комнаты
)

// Event — конверт; Payload всегда один из *Payload-типов этого пакета.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type MovieSummary struct {
	MovieID   string   `json:"movie_id"`
	Title     string   `json:"title"`
	PosterURL string   `json:"poster_url,omitempty"`
	Genres    []string `json:"genres,omitempty"`
}

type VoteUpdatePayload struct {
	RoomID         string       `json:"room_id"`
	UserID         string       `json:"user_id"`
	MovieID        string       `json:"movie_id"`
	VoteType       string       `json:"vote_type"`
	CurrentVotes   int64        `json:"current_votes"`
	RequiredVotes  int64        `json:"required_votes"`
	Percentage     float64      `json:"percentage"`
	RemainingVotes int64        `json:"remaining_votes"`
	VotedUsers     []string     `json:"voted_users"`
	PendingUsers   []string     `json:"pending_users"`
	ETASeconds     int64        `json:"eta_seconds"`
	Movie          MovieSummary `json:"movie"`
}

type MatchParticipant struct {
	UserID           string `json:"user_id"`
	DisplayName      string `json:"display_name"`
	IsHost           bool   `json:"is_host"`
	ConnectionStatus string `json:"connection_status"`
}

type MatchFoundPayload struct {
	RoomID          string             `json:"room_id"`
	MovieID         string             `json:"movie_id"`
	MovieTitle      string             `json:"movie_title"`
	Movie           MovieSummary       `json:"movie"`
	Participants    []MatchParticipant `json:"participants"`
	VotingDurationS int64              `json:"voting_duration_seconds,omitempty"`
}

type ConnectionStatusPayload struct {
	RoomID       string            `json:"room_id"`
	UserID       string            `json:"user_id"`
	Status       string            `json:"status"`
	ConnectionID string            `json:"connection_id"`
	Meta         map[string]string `json:"meta,omitempty"`
}

type RoomStateSyncPayload struct {
	SyncID       string     `json:"sync_id"`
	TargetUserID string     `json:"target_user_id,omitempty"`
	State        *RoomState `json:"state"`
}

// RoomState — снапшот RoomStateAggregator-а, единственный
// авторитетный источник для клиентов (порядок доставки событий не гарантирован).
type VotingProgress struct {
	CurrentVotes  int64    `json:"current_votes"`
	RequiredVotes int64    `json:"required_votes"`
	Percentage    float64  `json:"percentage"`
	VotedUsers    []string `json:"voted_users"`
	PendingUsers  []string `json:"pending_users"`
}

type RoomState struct {
	RoomID            string         `json:"room_id"`
	Status            string         `json:"status"`
	CurrentMovie      *MovieSummary  `json:"current_movie,omitempty"`
	MemberCount       int64          `json:"member_count"`
	ActiveConnections int64          `json:"active_connections"`
	Progress          VotingProgress `json:"voting_progress"`
	MatchedMovie      *MovieSummary  `json:"matched_movie,omitempty"`
	VotedMovies       []string       `json:"voted_movies"`
}
