package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/cinerec/cinerec/internal/cache"
	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/internal/metadata"
	"github.com/cinerec/cinerec/pkg/models"
)

// DatabaseQuerier interface for database operations
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Feature extraction caps. Attributes beyond these contribute noise, not
// signal, and blow up vector sparsity.
const (
	maxKeywordFeatures = 20
	maxCastFeatures    = 10
	maxCrewFeatures    = 5
)

// Crew jobs that carry recommendation signal.
var featureCrewJobs = map[string]bool{
	"Director":   true,
	"Writer":     true,
	"Screenplay": true,
	"Producer":   true,
}

const movieColumns = `id, tmdb_id, title, overview, release_date, poster_path, backdrop_path,
	vote_average, popularity, genres, keywords, keyword_names, cast_ids, crew_ids, cached_at`

// MovieCacheService owns the local movie cache: staleness-aware reads that
// refresh from the metadata provider, candidate pool queries for the
// recommendation engines, and the admin population/stats/purge surface.
type MovieCacheService struct {
	db       DatabaseQuerier
	provider metadata.Provider
	memo     *cache.Cache
	config   *config.Config
	logger   *logrus.Logger
}

func NewMovieCacheService(
	db DatabaseQuerier,
	provider metadata.Provider,
	memo *cache.Cache,
	cfg *config.Config,
	logger *logrus.Logger,
) *MovieCacheService {
	return &MovieCacheService{
		db:       db,
		provider: provider,
		memo:     memo,
		config:   cfg,
		logger:   logger,
	}
}

// GetOrRefresh returns the cached movie, refreshing from the provider when
// the entry is missing or older than the staleness threshold. Provider
// failure with a stale entry on hand serves the stale entry; with nothing
// cached it propagates the error.
func (s *MovieCacheService) GetOrRefresh(ctx context.Context, tmdbID int64) (*models.CachedMovie, error) {
	existing, err := s.getByTMDBID(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	if existing != nil && time.Since(existing.CachedAt) < s.config.Recommendation.CacheStaleness {
		movieCacheLookups.WithLabelValues("hit").Inc()
		return existing, nil
	}

	refreshed, err := s.refresh(ctx, tmdbID)
	if err != nil {
		if existing != nil {
			movieCacheLookups.WithLabelValues("stale").Inc()
			s.logger.WithError(err).WithField("tmdb_id", tmdbID).
				Warn("Refresh failed, serving stale cache entry")
			return existing, nil
		}
		movieCacheLookups.WithLabelValues("error").Inc()
		return nil, err
	}

	movieCacheLookups.WithLabelValues("miss").Inc()
	return refreshed, nil
}

// refresh fetches details and keywords upstream, extracts features, and
// upserts the row in a single statement so the write is atomic and
// last-writer-wins under concurrent refreshes.
func (s *MovieCacheService) refresh(ctx context.Context, tmdbID int64) (*models.CachedMovie, error) {
	details, err := s.provider.GetDetails(ctx, tmdbID)
	if err != nil {
		upstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch movie %d: %w", tmdbID, err)
	}
	upstreamRequests.WithLabelValues("ok").Inc()

	// Keyword fetch failure is non-fatal: nil names mark the row as not
	// backfilled so the vectorizer falls back to keyword ids.
	var keywordIDs []int64
	var keywordNames []string
	if keywords, err := s.provider.GetKeywords(ctx, tmdbID); err != nil {
		upstreamRequests.WithLabelValues("error").Inc()
		s.logger.WithError(err).WithField("tmdb_id", tmdbID).
			Warn("Keyword fetch failed, caching without keyword names")
	} else {
		upstreamRequests.WithLabelValues("ok").Inc()
		if len(keywords) > maxKeywordFeatures {
			keywords = keywords[:maxKeywordFeatures]
		}
		keywordNames = make([]string, 0, len(keywords))
		keywordIDs = make([]int64, 0, len(keywords))
		for _, kw := range keywords {
			keywordIDs = append(keywordIDs, kw.ID)
			keywordNames = append(keywordNames, normalizeKeyword(kw.Name))
		}
	}

	movie := &models.CachedMovie{
		TMDBID:       details.ID,
		Title:        details.Title,
		Overview:     details.Overview,
		ReleaseDate:  details.ReleaseDate,
		PosterPath:   details.PosterPath,
		BackdropPath: details.BackdropPath,
		VoteAverage:  details.VoteAverage,
		Popularity:   details.Popularity,
		Genres:       extractGenreIDs(details.Genres),
		Keywords:     keywordIDs,
		KeywordNames: keywordNames,
		Cast:         extractCastIDs(details.Credits.Cast),
		Crew:         extractCrewIDs(details.Credits.Crew),
	}

	query := `
		INSERT INTO movies (tmdb_id, title, overview, release_date, poster_path, backdrop_path,
			vote_average, popularity, genres, keywords, keyword_names, cast_ids, crew_ids, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (tmdb_id) DO UPDATE SET
			title = EXCLUDED.title,
			overview = EXCLUDED.overview,
			release_date = EXCLUDED.release_date,
			poster_path = EXCLUDED.poster_path,
			backdrop_path = EXCLUDED.backdrop_path,
			vote_average = EXCLUDED.vote_average,
			popularity = EXCLUDED.popularity,
			genres = EXCLUDED.genres,
			keywords = EXCLUDED.keywords,
			keyword_names = EXCLUDED.keyword_names,
			cast_ids = EXCLUDED.cast_ids,
			crew_ids = EXCLUDED.crew_ids,
			cached_at = NOW()
		RETURNING id, cached_at`

	err = s.db.QueryRow(ctx, query,
		movie.TMDBID, movie.Title, movie.Overview, movie.ReleaseDate,
		movie.PosterPath, movie.BackdropPath, movie.VoteAverage, movie.Popularity,
		movie.Genres, movie.Keywords, movie.KeywordNames, movie.Cast, movie.Crew,
	).Scan(&movie.ID, &movie.CachedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert movie %d: %w", tmdbID, err)
	}

	// The old vector no longer describes the row.
	s.memo.Invalidate(vectorCacheKey(tmdbID))

	return movie, nil
}

// CandidatePool returns cached movies eligible for similarity scoring:
// popularity-ordered, minimum vote average, non-empty genres. A non-empty
// genreOverlap restricts the pool to movies sharing at least one of those
// genres; excludeTMDBID of 0 excludes nothing.
func (s *MovieCacheService) CandidatePool(
	ctx context.Context,
	excludeTMDBID int64,
	genreOverlap []int64,
	minVoteAverage float64,
	limit int,
) ([]models.CachedMovie, error) {
	query := `
		SELECT ` + movieColumns + `
		FROM movies
		WHERE tmdb_id <> $1
			AND vote_average >= $2
			AND COALESCE(array_length(genres, 1), 0) > 0`

	args := []interface{}{excludeTMDBID, minVoteAverage}
	argIndex := 3

	if len(genreOverlap) > 0 {
		query += fmt.Sprintf(" AND genres && $%d", argIndex)
		args = append(args, genreOverlap)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY popularity DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("candidate pool query failed: %w", err)
	}
	defer rows.Close()

	return s.scanMovies(rows), nil
}

// PopulateFromPopular walks the provider's popular listing and caches every
// movie that is missing or stale. Already-fresh entries are counted as
// skipped, not re-fetched.
func (s *MovieCacheService) PopulateFromPopular(ctx context.Context, pages int) (*models.PopulateResult, error) {
	result := &models.PopulateResult{}

	for page := 1; page <= pages; page++ {
		summaries, err := s.provider.GetPopular(ctx, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("failed to list popular movies: %w", err)
			}
			s.logger.WithError(err).WithField("page", page).
				Warn("Popular page fetch failed, stopping population early")
			break
		}

		for _, summary := range summaries {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			existing, err := s.getByTMDBID(ctx, summary.ID)
			if err == nil && existing != nil &&
				time.Since(existing.CachedAt) < s.config.Recommendation.CacheStaleness {
				result.Skipped++
				continue
			}

			if _, err := s.refresh(ctx, summary.ID); err != nil {
				s.logger.WithError(err).WithField("tmdb_id", summary.ID).
					Warn("Failed to cache movie during population")
				result.Errors++
				continue
			}
			result.Success++
		}
	}

	total, err := s.countMovies(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to count cached movies after population")
	}
	result.TotalCached = total

	return result, nil
}

// Stats summarizes the cache for the admin surface.
func (s *MovieCacheService) Stats(ctx context.Context) (*models.CacheStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(vote_average), 0),
			COALESCE(AVG(popularity), 0),
			COUNT(*) FILTER (WHERE cached_at > NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE cached_at > NOW() - INTERVAL '7 days')
		FROM movies`

	stats := &models.CacheStats{}
	var within24h, within7d int64
	err := s.db.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.AvgVoteAverage, &stats.AvgPopularity, &within24h, &within7d)
	if err != nil {
		return nil, fmt.Errorf("cache stats query failed: %w", err)
	}

	stats.AgeBuckets = map[string]int64{
		"under_24h": within24h,
		"under_7d":  within7d,
		"stale":     stats.Total - within7d,
	}
	return stats, nil
}

// PurgeOlderThan deletes cache rows last refreshed before cutoff and returns
// the number of rows removed. Rated movies are kept regardless of age: the
// collaborative engine needs them and the next read refreshes them anyway.
func (s *MovieCacheService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM movies m
		WHERE m.cached_at < $1
			AND NOT EXISTS (SELECT 1 FROM ratings r WHERE r.movie_id = m.id)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache purge failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *MovieCacheService) getByTMDBID(ctx context.Context, tmdbID int64) (*models.CachedMovie, error) {
	var m models.CachedMovie
	err := s.db.QueryRow(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE tmdb_id = $1`, tmdbID).Scan(
		&m.ID, &m.TMDBID, &m.Title, &m.Overview, &m.ReleaseDate,
		&m.PosterPath, &m.BackdropPath, &m.VoteAverage, &m.Popularity,
		&m.Genres, &m.Keywords, &m.KeywordNames, &m.Cast, &m.Crew, &m.CachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MovieCacheService) countMovies(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&total)
	return total, err
}

func (s *MovieCacheService) scanMovies(rows pgx.Rows) []models.CachedMovie {
	var movies []models.CachedMovie
	for rows.Next() {
		var m models.CachedMovie
		if err := rows.Scan(
			&m.ID, &m.TMDBID, &m.Title, &m.Overview, &m.ReleaseDate,
			&m.PosterPath, &m.BackdropPath, &m.VoteAverage, &m.Popularity,
			&m.Genres, &m.Keywords, &m.KeywordNames, &m.Cast, &m.Crew, &m.CachedAt,
		); err != nil {
			s.logger.WithError(err).Error("Failed to scan movie row")
			continue
		}
		movies = append(movies, m)
	}
	return movies
}

func extractGenreIDs(genres []metadata.Genre) []int64 {
	ids := make([]int64, 0, len(genres))
	for _, g := range genres {
		ids = append(ids, g.ID)
	}
	return ids
}

func extractCastIDs(cast []metadata.CastMember) []int64 {
	sorted := make([]metadata.CastMember, len(cast))
	copy(sorted, cast)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	ids := make([]int64, 0, maxCastFeatures)
	for _, c := range sorted {
		if len(ids) == maxCastFeatures {
			break
		}
		ids = append(ids, c.ID)
	}
	return ids
}

func extractCrewIDs(crew []metadata.CrewMember) []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0, maxCrewFeatures)
	for _, c := range crew {
		if len(ids) == maxCrewFeatures {
			break
		}
		if !featureCrewJobs[c.Job] || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
	}
	return ids
}

// normalizeKeyword canonicalizes a keyword name so hashing is stable across
// provider spelling variants.
func normalizeKeyword(name string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(name))
}
