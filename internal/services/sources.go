package services

import (
	"context"

	"github.com/cinerec/cinerec/pkg/models"
)

// movieSource is the slice of MovieCacheService the engines depend on.
// Narrow on purpose: tests substitute in-memory fakes.
type movieSource interface {
	GetOrRefresh(ctx context.Context, tmdbID int64) (*models.CachedMovie, error)
	CandidatePool(ctx context.Context, excludeTMDBID int64, genreOverlap []int64,
		minVoteAverage float64, limit int) ([]models.CachedMovie, error)
}

// ratingSource yields a user's rating history, best rated first.
type ratingSource interface {
	UserRatings(ctx context.Context, userID int64) ([]models.Rating, error)
}
