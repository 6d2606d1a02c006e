package domain

import "time"

type RoomStatus string

const (
	RoomWaiting   RoomStatus = "WAITING"
	RoomActive    RoomStatus = "ACTIVE"
	RoomMatched   RoomStatus = "MATCHED"
	RoomCompleted RoomStatus = "COMPLETED"
)

// Closed — комната больше не принимает голоса.
func (s RoomStatus) Closed() bool {
	return s == RoomMatched || s == RoomCompleted
}

type Room struct {
	ID              string     `db:"id"`
	Status          RoomStatus `db:"status"`
	HostID          int64      `db:"host_id"`
	MemberCount     int64      `db:"member_count"`
	MaxMembers      int64      `db:"max_members"`
	RequiredVotes   int64      `db:"required_votes"`
	CurrentMovieID  *string    `db:"current_movie_id"`
	ResultMovieID   *string    `db:"result_movie_id"`
	VotingStartedAt *time.Time `db:"voting_started_at"`
	MatchedAt       *time.Time `db:"matched_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}
