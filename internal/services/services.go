package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/cache"
	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/internal/database"
	"github.com/cinerec/cinerec/internal/metadata"
)

type Services struct {
	Health        *HealthService
	Memo          *cache.Cache
	MovieCache    *MovieCacheService
	Vectorizer    *FeatureVectorizer
	Similarity    *SimilarityService
	Collaborative *CollaborativeService
	Ratings       *RatingService
	Hybrid        *HybridService
	Mood          *MoodService
	Housekeeping  *HousekeepingService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	healthService := NewHealthService(cfg, logger, db)

	// One shared memo holds feature vectors, the rating matrix, and mood base
	// scores; each entry carries its own TTL.
	memo := cache.New(cfg.Recommendation.ResultTTL, 5*time.Minute)

	provider := metadata.NewClient(cfg.TMDB, logger)

	movieCache := NewMovieCacheService(db.PG, provider, memo, cfg, logger)
	vectorizer := NewFeatureVectorizer(memo, &cfg.Recommendation.Vector)
	similarity := NewSimilarityService(movieCache, vectorizer, cfg, logger)
	collaborative := NewCollaborativeService(db.PG, movieCache, memo, cfg, logger)
	ratings := NewRatingService(db.PG, movieCache, collaborative, logger)
	hybrid := NewHybridService(similarity, collaborative, ratings, movieCache, db.Redis, cfg, logger)
	mood := NewMoodService(movieCache, ratings, memo, cfg, logger)
	housekeeping := NewHousekeepingService(movieCache, db.Redis, &cfg.Housekeeping, logger)

	return &Services{
		Health:        healthService,
		Memo:          memo,
		MovieCache:    movieCache,
		Vectorizer:    vectorizer,
		Similarity:    similarity,
		Collaborative: collaborative,
		Ratings:       ratings,
		Hybrid:        hybrid,
		Mood:          mood,
		Housekeeping:  housekeeping,
	}, nil
}
