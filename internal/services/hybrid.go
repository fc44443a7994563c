package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/pkg/models"
)

// HybridService fuses content similarity and collaborative predictions into
// one ranking. Both components are normalized per request before weighting,
// so neither scale dominates the other.
// contentRecommender is the content-based half of the fusion.
type contentRecommender interface {
	FindSimilar(ctx context.Context, targetTMDBID int64, limit int, useKNN bool) ([]models.SimilarMovie, error)
}

// collabRecommender is the collaborative half.
type collabRecommender interface {
	Recommendations(ctx context.Context, userID int64, limit int) ([]models.CollaborativeRecommendation, error)
}

type HybridService struct {
	similarity    contentRecommender
	collaborative collabRecommender
	ratings       ratingSource
	movies        movieSource
	redis         *redis.Client
	config        *config.Config
	logger        *logrus.Logger
}

func NewHybridService(
	similarity contentRecommender,
	collaborative collabRecommender,
	ratings ratingSource,
	movies movieSource,
	redisClient *redis.Client,
	cfg *config.Config,
	logger *logrus.Logger,
) *HybridService {
	return &HybridService{
		similarity:    similarity,
		collaborative: collaborative,
		ratings:       ratings,
		movies:        movies,
		redis:         redisClient,
		config:        cfg,
		logger:        logger,
	}
}

type fusedEntry struct {
	movie        models.CachedMovie
	contentScore float64
	collabScore  float64
}

// Recommend produces hybrid recommendations for a user. seedTMDBID of 0 means
// no explicit seed: the user's best-rated movie anchors the content component
// instead, falling back to popular well-rated movies for users with no
// history. Rated movies never appear in the output.
func (s *HybridService) Recommend(
	ctx context.Context,
	userID int64,
	seedTMDBID int64,
	limit int,
) ([]models.HybridRecommendation, error) {
	recommendationRequests.WithLabelValues("hybrid").Inc()

	if limit <= 0 {
		limit = s.config.Recommendation.Similarity.DefaultLimit
	}

	cacheKey := fmt.Sprintf("hybrid:%d:%d:%d", userID, seedTMDBID, limit)
	if cached := s.getCachedResults(ctx, cacheKey); cached != nil {
		s.logger.WithField("user_id", userID).Debug("Hybrid cache hit")
		return cached, nil
	}

	userRatings, err := s.ratings.UserRatings(ctx, userID)
	if err != nil {
		return nil, err
	}

	ratedTMDBIDs := make(map[int64]bool, len(userRatings))
	for _, r := range userRatings {
		ratedTMDBIDs[r.TMDBID] = true
	}

	contentRecs, err := s.contentComponent(ctx, seedTMDBID, userRatings, limit)
	if err != nil {
		return nil, err
	}

	collabRecs, err := s.collaborative.Recommendations(ctx, userID, limit*2)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("Collaborative component failed, continuing content-only")
		collabRecs = nil
	}

	hybridCfg := s.config.Recommendation.Hybrid
	entries := make(map[int64]*fusedEntry)

	maxContent := 0.0
	for _, rec := range contentRecs {
		if rec.SimilarityScore > maxContent {
			maxContent = rec.SimilarityScore
		}
	}
	for _, rec := range contentRecs {
		normalized := 0.0
		if maxContent > 0 {
			normalized = rec.SimilarityScore / maxContent
		}
		// First entry wins on duplicate ids within a component.
		if _, ok := entries[rec.Movie.TMDBID]; ok {
			continue
		}
		entries[rec.Movie.TMDBID] = &fusedEntry{movie: rec.Movie, contentScore: normalized}
	}

	maxCollab := 0.0
	for _, rec := range collabRecs {
		if rec.PredictedRating > maxCollab {
			maxCollab = rec.PredictedRating
		}
	}
	for _, rec := range collabRecs {
		normalized := 0.0
		if maxCollab > 0 {
			normalized = rec.PredictedRating / maxCollab
		}
		if entry, ok := entries[rec.Movie.TMDBID]; ok {
			if entry.collabScore == 0 {
				entry.collabScore = normalized
			}
			continue
		}
		entries[rec.Movie.TMDBID] = &fusedEntry{movie: rec.Movie, collabScore: normalized}
	}

	var results []models.HybridRecommendation
	for tmdbID, entry := range entries {
		if ratedTMDBIDs[tmdbID] || tmdbID == seedTMDBID {
			continue
		}
		results = append(results, models.HybridRecommendation{
			Movie:        entry.movie,
			ContentScore: entry.contentScore,
			CollabScore:  entry.collabScore,
			HybridScore: hybridCfg.ContentWeight*entry.contentScore +
				hybridCfg.CollaborativeWeight*entry.collabScore,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].HybridScore != results[j].HybridScore {
			return results[i].HybridScore > results[j].HybridScore
		}
		return results[i].Movie.Popularity > results[j].Movie.Popularity
	})

	if len(results) > limit {
		results = results[:limit]
	}

	if len(results) < limit {
		results = s.backfillPopular(ctx, results, ratedTMDBIDs, limit)
	}

	s.cacheResults(ctx, cacheKey, results)
	return results, nil
}

// contentComponent picks the similarity anchor: explicit seed, then the
// user's best-rated movie (threshold relaxed to the top rating when nothing
// clears it), then popular well-rated movies at full content score.
func (s *HybridService) contentComponent(
	ctx context.Context,
	seedTMDBID int64,
	userRatings []models.Rating,
	limit int,
) ([]models.SimilarMovie, error) {
	if seedTMDBID != 0 {
		return s.similarity.FindSimilar(ctx, seedTMDBID, limit*2, true)
	}

	if len(userRatings) > 0 {
		// Ratings are ordered best-first: the best-rated movie seeds the
		// content component, with the next two as alternates when it
		// yields nothing.
		seed := userRatings[0]
		recs, err := s.similarity.FindSimilar(ctx, seed.TMDBID, limit*2, true)
		if err != nil {
			s.logger.WithError(err).WithField("seed_tmdb_id", seed.TMDBID).
				Warn("Implicit-seed similarity failed, trying remaining seeds")
		} else if len(recs) > 0 {
			return recs, nil
		}

		for _, fallbackSeed := range userRatings[1:min(3, len(userRatings))] {
			recs, err := s.similarity.FindSimilar(ctx, fallbackSeed.TMDBID, limit*2, true)
			if err == nil && len(recs) > 0 {
				return recs, nil
			}
		}
	}

	// No usable history: popular well-rated movies at uniform content score.
	pool, err := s.movies.CandidatePool(ctx, 0, nil, s.config.Recommendation.Hybrid.SeedMinRating, limit*2)
	if err != nil {
		return nil, err
	}
	recs := make([]models.SimilarMovie, 0, len(pool))
	for i := range pool {
		recs = append(recs, models.SimilarMovie{Movie: pool[i], SimilarityScore: 1.0})
	}
	return recs, nil
}

// backfillPopular tops up short result sets with popular well-rated movies at
// a fixed markdown score, so the padding never outranks real signal.
func (s *HybridService) backfillPopular(
	ctx context.Context,
	results []models.HybridRecommendation,
	ratedTMDBIDs map[int64]bool,
	limit int,
) []models.HybridRecommendation {
	hybridCfg := s.config.Recommendation.Hybrid

	seen := make(map[int64]bool, len(results))
	for _, r := range results {
		seen[r.Movie.TMDBID] = true
	}

	pool, err := s.movies.CandidatePool(ctx, 0, nil, hybridCfg.SeedMinRating, limit*2)
	if err != nil {
		s.logger.WithError(err).Warn("Popular backfill query failed")
		return results
	}

	for i := range pool {
		if len(results) >= limit {
			break
		}
		movie := &pool[i]
		if seen[movie.TMDBID] || ratedTMDBIDs[movie.TMDBID] {
			continue
		}
		seen[movie.TMDBID] = true
		results = append(results, models.HybridRecommendation{
			Movie:        *movie,
			ContentScore: hybridCfg.FallbackContentScore,
			CollabScore:  0,
			HybridScore:  hybridCfg.FallbackHybridScore,
		})
	}
	return results
}

// Redis result caching is best-effort: failures log and fall through.

func (s *HybridService) getCachedResults(ctx context.Context, key string) []models.HybridRecommendation {
	if s.redis == nil {
		return nil
	}
	cached, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}
	var results []models.HybridRecommendation
	if err := json.Unmarshal([]byte(cached), &results); err != nil {
		return nil
	}
	return results
}

func (s *HybridService) cacheResults(ctx context.Context, key string, results []models.HybridRecommendation) {
	if s.redis == nil || len(results) == 0 {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.config.Recommendation.ResultTTL).Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to cache hybrid results")
	}
}
