package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerec/cinerec/pkg/models"
)

func TestVectorize(t *testing.T) {
	cfg := testConfig()
	v := NewFeatureVectorizer(testMemo(), &cfg.Recommendation.Vector)

	movie := &models.CachedMovie{
		TMDBID:       550,
		Genres:       []int64{18, 53},
		Keywords:     []int64{825, 851},
		KeywordNames: []string{"support group", "dual identity"},
		Cast:         []int64{819, 287},
		Crew:         []int64{7467},
	}

	t.Run("deterministic", func(t *testing.T) {
		fresh := NewFeatureVectorizer(testMemo(), &cfg.Recommendation.Vector)
		first := fresh.Vectorize(movie)
		second := fresh.Vectorize(movie)
		assert.Equal(t, first, second)
	})

	t.Run("dimensions", func(t *testing.T) {
		vec := v.Vectorize(movie)
		assert.Len(t, vec, 256)
	})

	t.Run("weights sum to category totals", func(t *testing.T) {
		vec := v.Vectorize(movie)
		var total float64
		for _, x := range vec {
			total += x
		}
		// All four categories populated, so the mass is the full weight sum.
		assert.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("empty category contributes nothing", func(t *testing.T) {
		sparse := &models.CachedMovie{TMDBID: 551, Genres: []int64{18}}
		vec := v.Vectorize(sparse)
		var total float64
		for _, x := range vec {
			total += x
		}
		assert.InDelta(t, cfg.Recommendation.Vector.GenreWeight, total, 1e-9)
	})

	t.Run("keyword names take precedence over ids", func(t *testing.T) {
		fresh := NewFeatureVectorizer(testMemo(), &cfg.Recommendation.Vector)
		withNames := &models.CachedMovie{
			TMDBID:       1,
			Keywords:     []int64{42},
			KeywordNames: []string{"heist"},
		}
		withoutNames := &models.CachedMovie{
			TMDBID:   2,
			Keywords: []int64{42},
		}
		assert.NotEqual(t, fresh.Vectorize(withNames), fresh.Vectorize(withoutNames))
	})

	t.Run("duplicate values share one slot", func(t *testing.T) {
		fresh := NewFeatureVectorizer(testMemo(), &cfg.Recommendation.Vector)
		dup := &models.CachedMovie{TMDBID: 3, Genres: []int64{18, 18}}
		single := &models.CachedMovie{TMDBID: 4, Genres: []int64{18}}
		assert.Equal(t, fresh.Vectorize(single), fresh.Vectorize(dup))
	})
}

func TestSimilarityScore(t *testing.T) {
	cfg := testConfig()
	v := NewFeatureVectorizer(testMemo(), &cfg.Recommendation.Vector)

	a := &models.CachedMovie{
		Genres:   []int64{18, 53},
		Keywords: []int64{1, 2, 3},
		Cast:     []int64{10, 20},
		Crew:     []int64{100},
	}
	b := &models.CachedMovie{
		Genres:   []int64{18, 35},
		Keywords: []int64{2, 3, 4},
		Cast:     []int64{20, 30},
		Crew:     []int64{200},
	}

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, v.SimilarityScore(a, b), v.SimilarityScore(b, a), 1e-12)
	})

	t.Run("identical movies score the full weight sum", func(t *testing.T) {
		assert.InDelta(t, 1.0, v.SimilarityScore(a, a), 1e-9)
	})

	t.Run("disjoint movies score zero", func(t *testing.T) {
		c := &models.CachedMovie{Genres: []int64{99}, Keywords: []int64{9}, Cast: []int64{9}, Crew: []int64{9}}
		d := &models.CachedMovie{Genres: []int64{1}, Keywords: []int64{1}, Cast: []int64{1}, Crew: []int64{1}}
		assert.Zero(t, v.SimilarityScore(c, d))
	})

	t.Run("expected weighted value", func(t *testing.T) {
		// genres: 1/3, keywords: 2/4, cast: 1/3, crew: 0/2
		expected := 0.4*(1.0/3.0) + 0.3*0.5 + 0.2*(1.0/3.0) + 0.1*0
		assert.InDelta(t, expected, v.SimilarityScore(a, b), 1e-9)
	})
}

func TestJaccard(t *testing.T) {
	assert.Zero(t, jaccard(nil, []int64{1}))
	assert.Zero(t, jaccard([]int64{1}, nil))
	assert.InDelta(t, 1.0, jaccard([]int64{1, 2}, []int64{2, 1}), 1e-12)
	assert.InDelta(t, 1.0/3.0, jaccard([]int64{1, 2}, []int64{2, 3}), 1e-12)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}
	zero := []float64{0, 0, 0}

	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-12)
	assert.Zero(t, cosineSimilarity(a, b))
	assert.Zero(t, cosineSimilarity(a, zero))
	require.False(t, math.IsNaN(cosineSimilarity(zero, zero)))
}
