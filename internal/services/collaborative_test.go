package services

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerec/cinerec/pkg/models"
)

func ratingRows(rows ...[3]interface{}) *pgxmock.Rows {
	r := pgxmock.NewRows([]string{"user_id", "movie_id", "rating"})
	for _, row := range rows {
		r.AddRow(row[0], row[1], row[2])
	}
	return r
}

func newCollaborativeFixture(t *testing.T, source *fakeMovieSource) (*CollaborativeService, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := testConfig()
	cfg.Recommendation.Collaborative.MinRatings = 3
	cfg.Recommendation.Collaborative.KNeighbors = 2

	if source == nil {
		source = &fakeMovieSource{}
	}
	return NewCollaborativeService(mock, source, testMemo(), cfg, testLogger()), mock
}

func TestCollaborativeRecommendations(t *testing.T) {
	t.Run("insufficient ratings yield empty result", func(t *testing.T) {
		svc, mock := newCollaborativeFixture(t, nil)
		mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
			WillReturnRows(ratingRows(
				[3]interface{}{int64(1), int64(1), 8.0},
				[3]interface{}{int64(2), int64(1), 7.0},
			))

		results, err := svc.Recommendations(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user yields empty result", func(t *testing.T) {
		svc, mock := newCollaborativeFixture(t, nil)
		mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
			WillReturnRows(ratingRows(
				[3]interface{}{int64(1), int64(1), 8.0},
				[3]interface{}{int64(2), int64(1), 7.0},
				[3]interface{}{int64(2), int64(2), 9.0},
			))

		results, err := svc.Recommendations(context.Background(), 42, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("neighbor ratings drive predictions", func(t *testing.T) {
		source := &fakeMovieSource{pool: []models.CachedMovie{
			movieWith(1, []int64{18}, 7.0, 90),
			movieWith(2, []int64{18}, 7.5, 80),
			movieWith(3, []int64{18}, 8.0, 70),
		}}
		svc, mock := newCollaborativeFixture(t, source)
		mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
			WillReturnRows(ratingRows(
				[3]interface{}{int64(1), int64(1), 9.0},
				[3]interface{}{int64(1), int64(2), 8.0},
				[3]interface{}{int64(2), int64(1), 9.0},
				[3]interface{}{int64(2), int64(2), 8.0},
				[3]interface{}{int64(2), int64(3), 9.0},
				[3]interface{}{int64(3), int64(3), 2.0},
			))

		results, err := svc.Recommendations(context.Background(), 1, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)

		// Movies 1 and 2 are already rated; movie 3 comes from the one
		// positive-similarity neighbor, whose rating passes through.
		assert.Equal(t, int64(3), results[0].Movie.ID)
		assert.InDelta(t, 9.0, results[0].PredictedRating, 1e-9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("predictions below threshold are dropped", func(t *testing.T) {
		source := &fakeMovieSource{pool: []models.CachedMovie{
			movieWith(3, []int64{18}, 8.0, 70),
		}}
		svc, mock := newCollaborativeFixture(t, source)
		mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
			WillReturnRows(ratingRows(
				[3]interface{}{int64(1), int64(1), 9.0},
				[3]interface{}{int64(2), int64(1), 9.0},
				[3]interface{}{int64(2), int64(3), 4.0},
			))

		results, err := svc.Recommendations(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestPredictRating(t *testing.T) {
	t.Run("existing rating returned verbatim", func(t *testing.T) {
		svc, mock := newCollaborativeFixture(t, nil)
		mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
			WillReturnRows(ratingRows(
				[3]interface{}{int64(1), int64(1), 7.5},
				[3]interface{}{int64(2), int64(1), 9.0},
				[3]interface{}{int64(2), int64(2), 8.0},
			))

		rating, ok, err := svc.PredictRating(context.Background(), 1, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 7.5, rating, 1e-9)
	})

	t.Run("no neighbor rated the movie", func(t *testing.T) {
		svc, mock := newCollaborativeFixture(t, nil)
		mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
			WillReturnRows(ratingRows(
				[3]interface{}{int64(1), int64(1), 7.5},
				[3]interface{}{int64(2), int64(1), 9.0},
				[3]interface{}{int64(3), int64(2), 8.0},
			))

		_, ok, err := svc.PredictRating(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMatrixMemoization(t *testing.T) {
	svc, mock := newCollaborativeFixture(t, nil)

	// One expectation serves both calls: the second read hits the memo.
	mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
		WillReturnRows(ratingRows(
			[3]interface{}{int64(1), int64(1), 7.5},
			[3]interface{}{int64(2), int64(1), 9.0},
			[3]interface{}{int64(2), int64(2), 8.0},
		))

	_, _, err := svc.PredictRating(context.Background(), 1, 1)
	require.NoError(t, err)
	_, _, err = svc.PredictRating(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Invalidation forces a rebuild on the next read.
	svc.InvalidateMatrix()
	mock.ExpectQuery("SELECT user_id, movie_id, rating FROM ratings").
		WillReturnRows(ratingRows(
			[3]interface{}{int64(1), int64(1), 7.5},
			[3]interface{}{int64(2), int64(1), 9.0},
			[3]interface{}{int64(2), int64(2), 8.0},
		))

	_, _, err = svc.PredictRating(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
