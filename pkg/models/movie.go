package models

import (
	"time"
)

// CachedMovie is a locally persisted snapshot of a movie's attributes from
// the upstream metadata provider. TMDBID is the external identifier; ID is
// the local primary key used by the ratings schema.
type CachedMovie struct {
	ID           int64     `json:"id" db:"id"`
	TMDBID       int64     `json:"tmdb_id" db:"tmdb_id"`
	Title        string    `json:"title" db:"title"`
	Overview     string    `json:"overview" db:"overview"`
	ReleaseDate  string    `json:"release_date" db:"release_date"`
	PosterPath   *string   `json:"poster_path,omitempty" db:"poster_path"`
	BackdropPath *string   `json:"backdrop_path,omitempty" db:"backdrop_path"`
	VoteAverage  float64   `json:"vote_average" db:"vote_average"`
	Popularity   float64   `json:"popularity" db:"popularity"`
	Genres       []int64   `json:"genres" db:"genres"`
	Keywords     []int64   `json:"keywords" db:"keywords"`
	// KeywordNames is nil when the row predates keyword-name backfill and an
	// empty non-nil slice when the provider confirmed the movie has none.
	KeywordNames []string  `json:"keyword_names,omitempty" db:"keyword_names"`
	Cast         []int64   `json:"cast" db:"cast_ids"`
	Crew         []int64   `json:"crew" db:"crew_ids"`
	CachedAt     time.Time `json:"cached_at" db:"cached_at"`
}

// HasGenres reports whether the movie can participate in similarity
// computations. Movies without genres are excluded from candidate pools.
func (m *CachedMovie) HasGenres() bool {
	return len(m.Genres) > 0
}

// ReleaseYear returns the four-digit year prefix of the release date, or
// "unknown" when the date is absent.
func (m *CachedMovie) ReleaseYear() string {
	if len(m.ReleaseDate) >= 4 {
		return m.ReleaseDate[:4]
	}
	return "unknown"
}

// PrimaryGenre returns the first genre in billing order.
func (m *CachedMovie) PrimaryGenre() (int64, bool) {
	if len(m.Genres) == 0 {
		return 0, false
	}
	return m.Genres[0], true
}

// Rating is a single user's rating of a movie. One row per (user, movie);
// writes are upserts, never appends.
type Rating struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	MovieID   int64      `json:"movie_id" db:"movie_id"`
	TMDBID    int64      `json:"tmdb_id" db:"tmdb_id"`
	Value     float64    `json:"rating" db:"rating"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// CacheStats summarizes the movie cache for the admin surface.
type CacheStats struct {
	Total          int64            `json:"total"`
	AgeBuckets     map[string]int64 `json:"age_buckets"`
	AvgVoteAverage float64          `json:"avg_vote_average"`
	AvgPopularity  float64          `json:"avg_popularity"`
}

// PopulateResult reports the outcome of a cache population run.
type PopulateResult struct {
	Success     int `json:"success"`
	Errors      int `json:"errors"`
	Skipped     int `json:"skipped"`
	TotalCached int `json:"total_cached"`
}
