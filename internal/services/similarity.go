package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/pkg/models"
)

// SimilarityService produces content-based recommendations: vector k-NN over
// the candidate pool when it is large enough, genre-overlap scoring otherwise.
type SimilarityService struct {
	movies     movieSource
	vectorizer *FeatureVectorizer
	config     *config.Config
	logger     *logrus.Logger
}

func NewSimilarityService(
	movies movieSource,
	vectorizer *FeatureVectorizer,
	cfg *config.Config,
	logger *logrus.Logger,
) *SimilarityService {
	return &SimilarityService{
		movies:     movies,
		vectorizer: vectorizer,
		config:     cfg,
		logger:     logger,
	}
}

// FindSimilar returns movies similar to the target. The target is refreshed
// through the cache store first, so a never-seen movie is fetched upstream
// before scoring. An empty result is not an error.
func (s *SimilarityService) FindSimilar(
	ctx context.Context,
	targetTMDBID int64,
	limit int,
	useKNN bool,
) ([]models.SimilarMovie, error) {
	recommendationRequests.WithLabelValues("similarity").Inc()

	if limit <= 0 {
		limit = s.config.Recommendation.Similarity.DefaultLimit
	}

	target, err := s.movies.GetOrRefresh(ctx, targetTMDBID)
	if err != nil {
		return nil, err
	}

	simCfg := s.config.Recommendation.Similarity
	pool, err := s.movies.CandidatePool(ctx, targetTMDBID, target.Genres,
		simCfg.MinVoteAverage, simCfg.MaxCandidates)
	if err != nil {
		return nil, err
	}

	if len(pool) == 0 {
		return nil, nil
	}

	// Vector k-NN needs a populated pool to be meaningful; small pools score
	// by genre overlap instead. A target without genres cannot anchor a
	// vector comparison either.
	if useKNN && target.HasGenres() && len(pool) >= simCfg.MinPoolForKNN {
		return s.knnSimilar(target, pool, limit), nil
	}
	return s.genreOverlapSimilar(target, pool, limit), nil
}

// knnSimilar ranks the pool by cosine similarity between feature vectors.
// Ties keep pool order, which is popularity-descending.
func (s *SimilarityService) knnSimilar(
	target *models.CachedMovie,
	pool []models.CachedMovie,
	limit int,
) []models.SimilarMovie {
	targetVec := s.vectorizer.Vectorize(target)

	results := make([]models.SimilarMovie, 0, len(pool))
	for i := range pool {
		candidate := &pool[i]
		similarity := cosineSimilarity(targetVec, s.vectorizer.Vectorize(candidate))
		results = append(results, models.SimilarMovie{
			Movie:           *candidate,
			SimilarityScore: similarity,
			GenreOverlap:    genreOverlapCount(target.Genres, candidate.Genres),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// genreOverlapSimilar scores candidates by genre Jaccard blended with vote
// average and capped popularity. Candidates sharing no genre are dropped.
func (s *SimilarityService) genreOverlapSimilar(
	target *models.CachedMovie,
	pool []models.CachedMovie,
	limit int,
) []models.SimilarMovie {
	var results []models.SimilarMovie
	for i := range pool {
		candidate := &pool[i]
		overlap := genreOverlapCount(target.Genres, candidate.Genres)
		if overlap == 0 {
			continue
		}

		score := 0.7*jaccard(target.Genres, candidate.Genres) +
			0.2*(candidate.VoteAverage/10.0) +
			0.1*(math.Min(candidate.Popularity, 100)/100.0)

		results = append(results, models.SimilarMovie{
			Movie:           *candidate,
			SimilarityScore: score,
			GenreOverlap:    overlap,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// ByGenres recommends cached movies matching a caller-supplied genre set,
// weighting genre coverage over quality signals.
func (s *SimilarityService) ByGenres(
	ctx context.Context,
	genreIDs []int64,
	limit int,
	minRating float64,
) ([]models.SimilarMovie, error) {
	recommendationRequests.WithLabelValues("by_genre").Inc()

	if len(genreIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.config.Recommendation.Similarity.DefaultLimit
	}

	pool, err := s.movies.CandidatePool(ctx, 0, genreIDs, minRating,
		s.config.Recommendation.Similarity.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("genre candidate query failed: %w", err)
	}

	var results []models.SimilarMovie
	for i := range pool {
		candidate := &pool[i]
		overlap := genreOverlapCount(genreIDs, candidate.Genres)
		if overlap == 0 {
			continue
		}

		coverage := float64(overlap) / float64(len(genreIDs))
		quality := 0.5*(candidate.VoteAverage/10.0) +
			0.5*(math.Min(candidate.Popularity, 100)/100.0)

		results = append(results, models.SimilarMovie{
			Movie:           *candidate,
			SimilarityScore: 0.6*coverage + 0.4*quality,
			GenreOverlap:    overlap,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// cosineSimilarity over non-negative feature vectors; zero-norm inputs score 0.
func cosineSimilarity(a, b []float64) float64 {
	dot := floats.Dot(a, b)
	normA := math.Sqrt(floats.Dot(a, a))
	normB := math.Sqrt(floats.Dot(b, b))
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}
