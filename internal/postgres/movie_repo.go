package postgres

import (
	"context"

	"github.com/cwrk-planet/match-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MovieRepository struct {
	db *pgxpool.Pool
}

func NewMovieRepository(db *pgxpool.Pool) *MovieRepository {
	return &MovieRepository{db: db}
}

// Get — метаданные из кэша фильмов. Кэш наполняется снаружи и может
// отставать, поэтому промах — это fallback, а не ошибка.
func (r *MovieRepository) Get(ctx context.Context, movieID string) (*domain.MovieMeta, error) {
	var m domain.MovieMeta
	err := r.db.QueryRow(ctx, `
		SELECT movie_id, title, poster_url, genres, year, rating
		FROM movies_cache WHERE movie_id=$1
	`, movieID).Scan(&m.MovieID, &m.Title, &m.PosterURL, &m.Genres, &m.Year, &m.Rating)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.FallbackMovie(movieID), nil
		}
		return nil, err
	}
	return &m, nil
}
