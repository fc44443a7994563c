package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/pkg/models"
)

// RatingService stores user ratings. One row per (user, movie); repeated
// submissions overwrite, never append.
// matrixInvalidator lets the rating service drop the collaborative matrix
// memo without depending on the whole engine.
type matrixInvalidator interface {
	InvalidateMatrix()
}

type RatingService struct {
	db            DatabaseQuerier
	movies        movieSource
	collaborative matrixInvalidator
	logger        *logrus.Logger
}

func NewRatingService(
	db DatabaseQuerier,
	movies movieSource,
	collaborative matrixInvalidator,
	logger *logrus.Logger,
) *RatingService {
	return &RatingService{
		db:            db,
		movies:        movies,
		collaborative: collaborative,
		logger:        logger,
	}
}

// Upsert records a rating for a movie by external id. The movie is resolved
// through the cache store first, which doubles as an opportunistic cache
// write; a stale entry is good enough to rate against. The rating matrix is
// invalidated so the next collaborative read sees the write.
func (s *RatingService) Upsert(ctx context.Context, userID, tmdbID int64, value float64) (*models.Rating, error) {
	if value < 1 || value > 10 {
		return nil, models.ErrInvalidRating
	}

	movie, err := s.movies.GetOrRefresh(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve movie %d: %w", tmdbID, err)
	}

	rating := &models.Rating{
		UserID:  userID,
		MovieID: movie.ID,
		TMDBID:  movie.TMDBID,
		Value:   value,
	}

	query := `
		INSERT INTO ratings (user_id, movie_id, rating, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, movie_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRow(ctx, query, userID, movie.ID, value).
		Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert rating: %w", err)
	}

	s.collaborative.InvalidateMatrix()

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"tmdb_id": tmdbID,
		"rating":  value,
	}).Debug("Rating stored")

	return rating, nil
}

// UserRatings returns a user's ratings joined with the cached movie's
// external id, best rated first.
func (s *RatingService) UserRatings(ctx context.Context, userID int64) ([]models.Rating, error) {
	query := `
		SELECT r.id, r.user_id, r.movie_id, m.tmdb_id, r.rating, r.created_at, r.updated_at
		FROM ratings r
		JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = $1
		ORDER BY r.rating DESC, r.updated_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("user ratings query failed: %w", err)
	}
	defer rows.Close()

	var ratings []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ID, &r.UserID, &r.MovieID, &r.TMDBID, &r.Value,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			s.logger.WithError(err).Error("Failed to scan rating row")
			continue
		}
		ratings = append(ratings, r)
	}
	return ratings, nil
}
