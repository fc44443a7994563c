package services

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/cache"
	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *config.Config {
	return &config.Config{
		Recommendation: config.RecommendationConfig{
			CacheStaleness: 168 * time.Hour,
			ResultTTL:      15 * time.Minute,
			Vector: config.VectorConfig{
				GenreBuckets: 32, KeywordBuckets: 96, CastBuckets: 96, CrewBuckets: 32,
				GenreWeight: 0.4, KeywordWeight: 0.3, CastWeight: 0.2, CrewWeight: 0.1,
			},
			Similarity: config.SimilarityConfig{
				MinVoteAverage: 5.5,
				MaxCandidates:  1000,
				MinPoolForKNN:  30,
				DefaultLimit:   20,
			},
			Collaborative: config.CollaborativeConfig{
				MinRatings:    10,
				KNeighbors:    10,
				MinPredicted:  6.0,
				MaxCandidates: 100,
				MatrixTTL:     5 * time.Minute,
			},
			Hybrid: config.HybridConfig{
				ContentWeight:        0.7,
				CollaborativeWeight:  0.3,
				SeedMinRating:        7.0,
				FallbackHybridScore:  0.35,
				FallbackContentScore: 0.5,
			},
			Mood: config.MoodConfig{
				MinRating:       6.0,
				MaxCandidates:   800,
				BaseScoreTTL:    15 * time.Minute,
				KeywordBoost:    0.3,
				KeywordPenalty:  0.4,
				KeywordFloor:    0.1,
				CloseRatingDiff: 1.5,
				FarRatingDiff:   3.0,
				CloseBoost:      1.3,
				FarPenalty:      0.8,
				MaxPerYearGenre: 2,
				FallbackScore:   0.5,
			},
		},
	}
}

func testMemo() *cache.Cache {
	return cache.New(time.Minute, 0)
}

// fakeMovieSource serves a fixed movie set. The pool is assumed to be
// popularity-descending, like the real query's ordering.
type fakeMovieSource struct {
	movies       map[int64]*models.CachedMovie
	pool         []models.CachedMovie
	refreshCalls int
}

func (f *fakeMovieSource) GetOrRefresh(_ context.Context, tmdbID int64) (*models.CachedMovie, error) {
	f.refreshCalls++
	m, ok := f.movies[tmdbID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return m, nil
}

func (f *fakeMovieSource) CandidatePool(
	_ context.Context,
	excludeTMDBID int64,
	genreOverlap []int64,
	minVoteAverage float64,
	limit int,
) ([]models.CachedMovie, error) {
	var result []models.CachedMovie
	for _, m := range f.pool {
		if len(result) == limit {
			break
		}
		if m.TMDBID == excludeTMDBID || m.VoteAverage < minVoteAverage || !m.HasGenres() {
			continue
		}
		if len(genreOverlap) > 0 && genreOverlapCount(genreOverlap, m.Genres) == 0 {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

type fakeRatingSource struct {
	ratings map[int64][]models.Rating
}

func (f *fakeRatingSource) UserRatings(_ context.Context, userID int64) ([]models.Rating, error) {
	return f.ratings[userID], nil
}

func movieWith(tmdbID int64, genres []int64, vote, popularity float64) models.CachedMovie {
	return models.CachedMovie{
		ID:          tmdbID,
		TMDBID:      tmdbID,
		Title:       "movie",
		ReleaseDate: "2020-01-01",
		VoteAverage: vote,
		Popularity:  popularity,
		Genres:      genres,
		CachedAt:    time.Now(),
	}
}
