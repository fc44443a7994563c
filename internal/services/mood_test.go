package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerec/cinerec/pkg/models"
)

func newMoodFixture(pool []models.CachedMovie, ratings map[int64][]models.Rating) *MoodService {
	source := &fakeMovieSource{pool: pool}
	return NewMoodService(source, &fakeRatingSource{ratings: ratings},
		testMemo(), testConfig(), testLogger())
}

func TestMoods(t *testing.T) {
	names := Moods()
	assert.Equal(t, []string{"excited", "happy", "relaxed", "romantic", "sad", "scared", "thoughtful"}, names)
}

func TestMoodRecommend(t *testing.T) {
	t.Run("unknown mood rejected", func(t *testing.T) {
		svc := newMoodFixture(nil, nil)
		_, err := svc.Recommend(context.Background(), 1, "hangry", 10)
		assert.ErrorIs(t, err, models.ErrInvalidMood)
	})

	t.Run("mood name is case insensitive", func(t *testing.T) {
		pool := []models.CachedMovie{movieWith(1, []int64{35}, 7.0, 50)}
		svc := newMoodFixture(pool, nil)
		results, err := svc.Recommend(context.Background(), 1, "Happy", 10)
		require.NoError(t, err)
		assert.NotEmpty(t, results)
	})

	t.Run("base score follows genre, rating and popularity", func(t *testing.T) {
		movie := movieWith(1, []int64{35, 10751}, 8.0, 100)
		svc := newMoodFixture([]models.CachedMovie{movie}, nil)

		results, err := svc.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)

		// 2 of 4 preferred genres, no keyword names, vote 8.0, popularity 100.
		expected := (2.0 / 4.0) * 1.0 * (1 + 8.0/10.0) * (1 + 100.0/1000.0*0.2)
		assert.InDelta(t, expected, results[0].MoodScore, 1e-9)
		assert.Equal(t, 2, results[0].GenreOverlap)
	})

	t.Run("excluded genre drops the movie", func(t *testing.T) {
		comedyHorror := movieWith(1, []int64{35, 27}, 7.0, 50)
		svc := newMoodFixture([]models.CachedMovie{comedyHorror}, nil)

		results, err := svc.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("romantic requires the romance genre", func(t *testing.T) {
		comedyDrama := movieWith(1, []int64{35, 18}, 7.5, 50)
		romance := movieWith(2, []int64{10749}, 7.5, 50)
		svc := newMoodFixture([]models.CachedMovie{comedyDrama, romance}, nil)

		results, err := svc.Recommend(context.Background(), 1, "romantic", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(2), results[0].Movie.TMDBID)
	})

	t.Run("keyword names shift the multiplier", func(t *testing.T) {
		plain := movieWith(1, []int64{35}, 7.0, 50)
		plain.KeywordNames = []string{"road trip"}
		boosted := movieWith(2, []int64{35}, 7.0, 50)
		boosted.KeywordNames = []string{"friendship", "hope"}
		svc := newMoodFixture([]models.CachedMovie{plain, boosted}, nil)

		results, err := svc.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, int64(2), results[0].Movie.TMDBID)
		// Two boost keywords against none: 1.6x the plain score.
		assert.InDelta(t, 1.6, results[0].MoodScore/results[1].MoodScore, 1e-9)
	})

	t.Run("penalty keywords floor at the minimum multiplier", func(t *testing.T) {
		grim := movieWith(1, []int64{35}, 7.0, 50)
		grim.KeywordNames = []string{"death", "murder", "violence", "tragedy"}
		plain := movieWith(2, []int64{35}, 7.0, 50)
		plain.KeywordNames = []string{}
		svc := newMoodFixture([]models.CachedMovie{grim, plain}, nil)

		results, err := svc.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)

		// Four penalties would drive the multiplier negative; it floors at 0.1.
		assert.Equal(t, int64(2), results[0].Movie.TMDBID)
		assert.InDelta(t, 0.1, results[1].MoodScore/results[0].MoodScore, 1e-9)
	})

	t.Run("personalization boosts movies near the user's average", func(t *testing.T) {
		movie := movieWith(1, []int64{35}, 8.0, 50)

		base := newMoodFixture([]models.CachedMovie{movie}, nil)
		baseline, err := base.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		require.Len(t, baseline, 1)

		ratings := map[int64][]models.Rating{
			1: {{UserID: 1, TMDBID: 99, Value: 8.0}},
		}
		svc := newMoodFixture([]models.CachedMovie{movie}, ratings)
		results, err := svc.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.InDelta(t, baseline[0].MoodScore*1.3, results[0].MoodScore, 1e-9)
	})

	t.Run("personalization dampens movies far from the user's average", func(t *testing.T) {
		movie := movieWith(1, []int64{35}, 6.5, 50)

		base := newMoodFixture([]models.CachedMovie{movie}, nil)
		baseline, err := base.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		require.Len(t, baseline, 1)

		ratings := map[int64][]models.Rating{
			1: {{UserID: 1, TMDBID: 99, Value: 2.0}},
		}
		svc := newMoodFixture([]models.CachedMovie{movie}, ratings)
		results, err := svc.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.InDelta(t, baseline[0].MoodScore*0.8, results[0].MoodScore, 1e-9)
	})

	t.Run("rated movies are excluded", func(t *testing.T) {
		movie := movieWith(1, []int64{35}, 7.0, 50)
		ratings := map[int64][]models.Rating{
			1: {{UserID: 1, TMDBID: 1, Value: 8.0}},
		}
		svc := newMoodFixture([]models.CachedMovie{movie}, ratings)

		results, err := svc.Recommend(context.Background(), 1, "happy", 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("year and genre diversity is capped", func(t *testing.T) {
		var pool []models.CachedMovie
		for id := int64(1); id <= 4; id++ {
			m := movieWith(id, []int64{35}, 7.0, float64(100-id))
			m.ReleaseDate = "2020-05-01"
			pool = append(pool, m)
		}
		outlier := movieWith(5, []int64{35}, 6.5, 10)
		outlier.ReleaseDate = "1999-05-01"
		pool = append(pool, outlier)

		svc := newMoodFixture(pool, nil)
		results, err := svc.Recommend(context.Background(), 1, "happy", 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		// Two from 2020, then the 1999 outlier despite its lower score.
		assert.Equal(t, int64(5), results[2].Movie.TMDBID)
	})

	t.Run("backfill fills short lists at the fallback score", func(t *testing.T) {
		scoring := movieWith(1, []int64{35}, 7.0, 90)
		// Below the mood threshold but above the relaxed backfill one.
		filler := movieWith(2, []int64{35}, 5.8, 80)
		excluded := movieWith(3, []int64{35, 27}, 5.9, 70)
		svc := newMoodFixture([]models.CachedMovie{scoring, filler, excluded}, nil)

		results, err := svc.Recommend(context.Background(), 1, "happy", 3)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, int64(1), results[0].Movie.TMDBID)
		assert.Equal(t, int64(2), results[1].Movie.TMDBID)
		assert.InDelta(t, 0.5, results[1].MoodScore, 1e-9)
	})
}
