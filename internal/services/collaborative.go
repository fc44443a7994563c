package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/cinerec/cinerec/internal/cache"
	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/pkg/models"
)

const matrixCacheKey = "cf:user_item_matrix"

// CollaborativeService predicts ratings from the user-item rating matrix
// using cosine-similar neighbor averaging.
type CollaborativeService struct {
	db     DatabaseQuerier
	movies movieSource
	memo   *cache.Cache
	config *config.Config
	logger *logrus.Logger
}

func NewCollaborativeService(
	db DatabaseQuerier,
	movies movieSource,
	memo *cache.Cache,
	cfg *config.Config,
	logger *logrus.Logger,
) *CollaborativeService {
	return &CollaborativeService{
		db:     db,
		movies: movies,
		memo:   memo,
		config: cfg,
		logger: logger,
	}
}

// ratingMatrix is a dense users x movies snapshot of all ratings. A zero cell
// means unrated; the rating domain is [1,10] so the encoding is unambiguous.
type ratingMatrix struct {
	data       *mat.Dense
	userIndex  map[int64]int
	movieIndex map[int64]int
	total      int
}

func (m *ratingMatrix) sufficient(minRatings int) bool {
	return m != nil && m.data != nil && m.total >= minRatings
}

// matrix returns the memoized rating matrix, rebuilding at most once per TTL.
// Concurrent callers during a rebuild share the result, so nobody observes a
// half-built matrix.
func (s *CollaborativeService) matrix(ctx context.Context) (*ratingMatrix, error) {
	cached, err := s.memo.GetOrBuild(matrixCacheKey, s.config.Recommendation.Collaborative.MatrixTTL,
		func() (interface{}, error) {
			return s.buildMatrix(ctx)
		})
	if err != nil {
		return nil, err
	}
	return cached.(*ratingMatrix), nil
}

// InvalidateMatrix drops the memoized matrix so the next read rebuilds it.
// Called on rating writes.
func (s *CollaborativeService) InvalidateMatrix() {
	s.memo.Invalidate(matrixCacheKey)
}

func (s *CollaborativeService) buildMatrix(ctx context.Context) (*ratingMatrix, error) {
	matrixRebuilds.Inc()

	rows, err := s.db.Query(ctx, `SELECT user_id, movie_id, rating FROM ratings`)
	if err != nil {
		return nil, fmt.Errorf("ratings query failed: %w", err)
	}
	defer rows.Close()

	type cell struct {
		userID  int64
		movieID int64
		rating  float64
	}

	var cells []cell
	for rows.Next() {
		var c cell
		if err := rows.Scan(&c.userID, &c.movieID, &c.rating); err != nil {
			s.logger.WithError(err).Error("Failed to scan rating row")
			continue
		}
		cells = append(cells, c)
	}

	m := &ratingMatrix{
		userIndex:  make(map[int64]int),
		movieIndex: make(map[int64]int),
		total:      len(cells),
	}

	if len(cells) < s.config.Recommendation.Collaborative.MinRatings {
		s.logger.WithField("ratings", len(cells)).
			Debug("Too few ratings for collaborative filtering")
		return m, nil
	}

	for _, c := range cells {
		if _, ok := m.userIndex[c.userID]; !ok {
			m.userIndex[c.userID] = len(m.userIndex)
		}
		if _, ok := m.movieIndex[c.movieID]; !ok {
			m.movieIndex[c.movieID] = len(m.movieIndex)
		}
	}

	m.data = mat.NewDense(len(m.userIndex), len(m.movieIndex), nil)
	for _, c := range cells {
		m.data.Set(m.userIndex[c.userID], m.movieIndex[c.movieID], c.rating)
	}

	return m, nil
}

type neighbor struct {
	row        int
	similarity float64
}

// similarUsers returns the top-k users by cosine similarity of rating rows,
// excluding the target and zero-norm rows. Ties keep row order.
func (s *CollaborativeService) similarUsers(m *ratingMatrix, userRow, k int) []neighbor {
	target := m.data.RawRowView(userRow)

	var neighbors []neighbor
	rowCount, _ := m.data.Dims()
	for row := 0; row < rowCount; row++ {
		if row == userRow {
			continue
		}
		sim := cosineSimilarity(target, m.data.RawRowView(row))
		if sim <= 0 {
			continue
		}
		neighbors = append(neighbors, neighbor{row: row, similarity: sim})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].similarity > neighbors[j].similarity
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// PredictRating estimates how userID would rate a movie. An existing rating
// is returned verbatim. The second return is false when no prediction is
// possible (insufficient data, unknown user, or no neighbor rated the movie).
func (s *CollaborativeService) PredictRating(ctx context.Context, userID, movieID int64) (float64, bool, error) {
	m, err := s.matrix(ctx)
	if err != nil {
		return 0, false, err
	}
	if !m.sufficient(s.config.Recommendation.Collaborative.MinRatings) {
		return 0, false, nil
	}

	userRow, ok := m.userIndex[userID]
	if !ok {
		return 0, false, nil
	}

	neighbors := s.similarUsers(m, userRow, s.config.Recommendation.Collaborative.KNeighbors)
	rating, ok := predict(m, userRow, movieID, neighbors)
	return rating, ok, nil
}

func predict(m *ratingMatrix, userRow int, movieID int64, neighbors []neighbor) (float64, bool) {
	col, ok := m.movieIndex[movieID]
	if !ok {
		return 0, false
	}

	if existing := m.data.At(userRow, col); existing > 0 {
		return existing, true
	}

	var weightedSum, weightSum float64
	for _, n := range neighbors {
		if r := m.data.At(n.row, col); r > 0 {
			weightedSum += n.similarity * r
			weightSum += n.similarity
		}
	}
	if weightSum == 0 {
		return 0, false
	}
	return weightedSum / weightSum, true
}

// Recommendations returns unrated popular movies whose predicted rating
// clears the threshold, best first. With too little data it returns an empty
// list rather than an error so callers can fall back to content signals.
func (s *CollaborativeService) Recommendations(
	ctx context.Context,
	userID int64,
	limit int,
) ([]models.CollaborativeRecommendation, error) {
	recommendationRequests.WithLabelValues("collaborative").Inc()

	cfCfg := s.config.Recommendation.Collaborative

	m, err := s.matrix(ctx)
	if err != nil {
		return nil, err
	}
	if !m.sufficient(cfCfg.MinRatings) {
		return nil, nil
	}

	userRow, ok := m.userIndex[userID]
	if !ok {
		return nil, nil
	}

	neighbors := s.similarUsers(m, userRow, cfCfg.KNeighbors)
	if len(neighbors) == 0 {
		return nil, nil
	}

	candidates, err := s.movies.CandidatePool(ctx, 0, nil, 0, cfCfg.MaxCandidates)
	if err != nil {
		return nil, err
	}

	var results []models.CollaborativeRecommendation
	for i := range candidates {
		candidate := &candidates[i]

		col, known := m.movieIndex[candidate.ID]
		if known && m.data.At(userRow, col) > 0 {
			continue // already rated
		}

		predicted, ok := predict(m, userRow, candidate.ID, neighbors)
		if !ok || predicted < cfCfg.MinPredicted {
			continue
		}

		results = append(results, models.CollaborativeRecommendation{
			Movie:           *candidate,
			PredictedRating: predicted,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PredictedRating > results[j].PredictedRating
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
