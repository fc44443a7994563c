package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerec/cinerec/pkg/models"
)

type fakeContent struct {
	results map[int64][]models.SimilarMovie
	err     error
	calls   []int64
}

func (f *fakeContent) FindSimilar(_ context.Context, targetTMDBID int64, _ int, _ bool) ([]models.SimilarMovie, error) {
	f.calls = append(f.calls, targetTMDBID)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[targetTMDBID], nil
}

type fakeCollab struct {
	results []models.CollaborativeRecommendation
	err     error
}

func (f *fakeCollab) Recommendations(_ context.Context, _ int64, _ int) ([]models.CollaborativeRecommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newHybridFixture(
	content *fakeContent,
	collab *fakeCollab,
	ratings map[int64][]models.Rating,
	pool []models.CachedMovie,
) *HybridService {
	if content == nil {
		content = &fakeContent{}
	}
	if collab == nil {
		collab = &fakeCollab{}
	}
	source := &fakeMovieSource{pool: pool}
	return NewHybridService(content, collab,
		&fakeRatingSource{ratings: ratings}, source, nil, testConfig(), testLogger())
}

func similarTo(m models.CachedMovie, score float64) models.SimilarMovie {
	return models.SimilarMovie{Movie: m, SimilarityScore: score}
}

func TestHybridRecommend(t *testing.T) {
	t.Run("fuses components with configured weights", func(t *testing.T) {
		m10 := movieWith(10, []int64{18}, 7.0, 90)
		m11 := movieWith(11, []int64{18}, 7.5, 80)
		m12 := movieWith(12, []int64{18}, 8.0, 70)

		content := &fakeContent{results: map[int64][]models.SimilarMovie{
			5: {similarTo(m10, 0.8), similarTo(m11, 0.4)},
		}}
		collab := &fakeCollab{results: []models.CollaborativeRecommendation{
			{Movie: m11, PredictedRating: 9.0},
			{Movie: m12, PredictedRating: 6.0},
		}}
		svc := newHybridFixture(content, collab, nil, nil)

		results, err := svc.Recommend(context.Background(), 1, 5, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		// Content normalizes against 0.8, collaborative against 9.0.
		assert.Equal(t, int64(10), results[0].Movie.TMDBID)
		assert.InDelta(t, 0.7*1.0, results[0].HybridScore, 1e-9)

		assert.Equal(t, int64(11), results[1].Movie.TMDBID)
		assert.InDelta(t, 0.7*0.5+0.3*1.0, results[1].HybridScore, 1e-9)
		assert.InDelta(t, 0.5, results[1].ContentScore, 1e-9)
		assert.InDelta(t, 1.0, results[1].CollabScore, 1e-9)

		assert.Equal(t, int64(12), results[2].Movie.TMDBID)
		assert.InDelta(t, 0.3*(6.0/9.0), results[2].HybridScore, 1e-9)
		assert.Zero(t, results[2].ContentScore)
	})

	t.Run("rated movies and the seed never appear", func(t *testing.T) {
		m10 := movieWith(10, []int64{18}, 7.0, 90)
		m11 := movieWith(11, []int64{18}, 7.5, 80)
		seed := movieWith(5, []int64{18}, 8.0, 60)

		content := &fakeContent{results: map[int64][]models.SimilarMovie{
			5: {similarTo(m10, 0.9), similarTo(m11, 0.8)},
		}}
		collab := &fakeCollab{results: []models.CollaborativeRecommendation{
			{Movie: seed, PredictedRating: 9.0},
		}}
		ratings := map[int64][]models.Rating{
			1: {{UserID: 1, TMDBID: 10, Value: 8.0}},
		}
		svc := newHybridFixture(content, collab, ratings, nil)

		results, err := svc.Recommend(context.Background(), 1, 5, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(11), results[0].Movie.TMDBID)
	})

	t.Run("collaborative failure degrades to content only", func(t *testing.T) {
		m10 := movieWith(10, []int64{18}, 7.0, 90)
		content := &fakeContent{results: map[int64][]models.SimilarMovie{
			5: {similarTo(m10, 0.8)},
		}}
		collab := &fakeCollab{err: errors.New("matrix rebuild failed")}
		svc := newHybridFixture(content, collab, nil, nil)

		results, err := svc.Recommend(context.Background(), 1, 5, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(10), results[0].Movie.TMDBID)
		assert.InDelta(t, 0.7, results[0].HybridScore, 1e-9)
		assert.Zero(t, results[0].CollabScore)
	})

	t.Run("implicit seed is the best-rated movie", func(t *testing.T) {
		m10 := movieWith(10, []int64{18}, 7.0, 90)
		content := &fakeContent{results: map[int64][]models.SimilarMovie{
			7: {similarTo(m10, 0.8)},
		}}
		ratings := map[int64][]models.Rating{
			1: {
				{UserID: 1, TMDBID: 7, Value: 9.0},
				{UserID: 1, TMDBID: 8, Value: 6.0},
			},
		}
		svc := newHybridFixture(content, nil, ratings, nil)

		results, err := svc.Recommend(context.Background(), 1, 0, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []int64{7}, content.calls)
		assert.Equal(t, int64(10), results[0].Movie.TMDBID)
	})

	t.Run("alternate seeds tried when the best yields nothing", func(t *testing.T) {
		m10 := movieWith(10, []int64{18}, 7.0, 90)
		content := &fakeContent{results: map[int64][]models.SimilarMovie{
			8: {similarTo(m10, 0.8)},
		}}
		ratings := map[int64][]models.Rating{
			1: {
				{UserID: 1, TMDBID: 7, Value: 9.0},
				{UserID: 1, TMDBID: 8, Value: 8.5},
				{UserID: 1, TMDBID: 9, Value: 8.0},
			},
		}
		svc := newHybridFixture(content, nil, ratings, nil)

		results, err := svc.Recommend(context.Background(), 1, 0, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []int64{7, 8}, content.calls)
	})

	t.Run("no history falls back to popular movies", func(t *testing.T) {
		pool := []models.CachedMovie{
			movieWith(20, []int64{18}, 8.0, 90),
			movieWith(21, []int64{35}, 7.5, 80),
		}
		svc := newHybridFixture(nil, nil, nil, pool)

		results, err := svc.Recommend(context.Background(), 1, 0, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.InDelta(t, 1.0, r.ContentScore, 1e-9)
			assert.InDelta(t, 0.7, r.HybridScore, 1e-9)
		}
		// Equal scores fall back to popularity order.
		assert.Equal(t, int64(20), results[0].Movie.TMDBID)
	})

	t.Run("short results backfilled at markdown scores", func(t *testing.T) {
		m10 := movieWith(10, []int64{18}, 7.0, 90)
		content := &fakeContent{results: map[int64][]models.SimilarMovie{
			5: {similarTo(m10, 0.8)},
		}}
		pool := []models.CachedMovie{
			m10,
			movieWith(20, []int64{18}, 8.0, 85),
			movieWith(21, []int64{35}, 7.5, 75),
		}
		svc := newHybridFixture(content, nil, nil, pool)

		results, err := svc.Recommend(context.Background(), 1, 5, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, int64(10), results[0].Movie.TMDBID)
		for _, r := range results[1:] {
			assert.InDelta(t, 0.5, r.ContentScore, 1e-9)
			assert.InDelta(t, 0.35, r.HybridScore, 1e-9)
		}
	})

	t.Run("zero component scores stay zero", func(t *testing.T) {
		m10 := movieWith(10, []int64{18}, 7.0, 90)
		content := &fakeContent{results: map[int64][]models.SimilarMovie{
			5: {similarTo(m10, 0.0)},
		}}
		svc := newHybridFixture(content, nil, nil, nil)

		results, err := svc.Recommend(context.Background(), 1, 5, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.False(t, math.IsNaN(results[0].HybridScore))
		assert.Zero(t, results[0].HybridScore)
	})
}
