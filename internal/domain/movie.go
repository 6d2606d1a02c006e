package domain

// MovieMeta — строка из кэша метаданных фильмов. Кэш может отставать,
// поэтому на промах всегда есть fallback (см. FallbackMovie).
type MovieMeta struct {
	MovieID   string   `db:"movie_id"`
	Title     string   `db:"title"`
	PosterURL *string  `db:"poster_url"`
	Genres    []string `db:"genres"`
	Year      *int     `db:"year"`
	Rating    *float64 `db:"rating"`
}

func FallbackMovie(movieID string) *MovieMeta {
	return &MovieMeta{
		MovieID: movieID,
		Title:   "Unknown movie",
	}
}
