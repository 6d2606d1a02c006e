package domain

import "time"

type VoteType string

const (
	VoteLike    VoteType = "LIKE"
	VoteDislike VoteType = "DISLIKE"
	VoteSkip    VoteType = "SKIP"
)

func (t VoteType) Valid() bool {
	return t == VoteLike || t == VoteDislike || t == VoteSkip
}

// Counting — только LIKE двигает счётчик консенсуса.
func (t VoteType) Counting() bool { return t == VoteLike }

// VoteRecord — факт «пользователь проголосовал за фильм в комнате».
// Создаётся один раз условной вставкой, далее неизменяем.
type VoteRecord struct {
	RoomID    string    `db:"room_id"`
	UserID    int64     `db:"user_id"`
	MovieID   string    `db:"movie_id"`
	VoteType  VoteType  `db:"vote_type"`
	CreatedAt time.Time `db:"created_at"`
}
