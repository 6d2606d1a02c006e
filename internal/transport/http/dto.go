package http

import (
	"time"

	"github.com/cwrk-planet/match-service/internal/events"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SubmitVoteRequest struct {
	MovieID  string `json:"movie_id"`
	VoteType string `json:"vote_type"`
}

type SubmitVoteResponse struct {
	RoomID        string  `json:"room_id"`
	Status        string  `json:"status"`
	MovieID       string  `json:"movie_id"`
	VoteType      string  `json:"vote_type"`
	CurrentVotes  int64   `json:"current_votes"`
	RequiredVotes int64   `json:"required_votes"`
	Percentage    float64 `json:"percentage"`
	Matched       bool    `json:"matched"`
	ResultMovieID *string `json:"result_movie_id,omitempty"`
}

type SyncRequest struct {
	Force bool `json:"force"`
}

type SyncResponse struct {
	Success bool   `json:"success"`
	SyncID  string `json:"sync_id,omitempty"`
}

type ConnectionStatusResponse struct {
	Connected            bool      `json:"connected"`
	Status               string    `json:"status"`
	ConnectionID         string    `json:"connection_id,omitempty"`
	LastSeen             time.Time `json:"last_seen"`
	ReconnectionAttempts int64     `json:"reconnection_attempts"`
	RoomMembers          int64     `json:"room_members"`
	RoomConnections      int64     `json:"room_connections"`
}

type RoomStateResponse struct {
	State *events.RoomState `json:"state"`
}

type VoteHistoryItem struct {
	UserID    string    `json:"user_id"`
	MovieID   string    `json:"movie_id"`
	VoteType  string    `json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
}

type VoteHistoryResponse struct {
	Items      []VoteHistoryItem `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}
