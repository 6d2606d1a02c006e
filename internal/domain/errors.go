package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomClosed         = errors.New("room no longer accepts votes")
	ErrNotMember          = errors.New("user is not an active member of the room")
	ErrDuplicateVote      = errors.New("user already voted for this movie")
	ErrInvalidVote        = errors.New("invalid vote input")
	ErrServiceUnavailable = errors.New("store temporarily unavailable")
)
