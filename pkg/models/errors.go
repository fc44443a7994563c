package models

import "errors"

var (
	// ErrNotFound means the movie is neither cached nor resolvable upstream.
	ErrNotFound = errors.New("movie not found")

	// ErrUpstreamUnavailable wraps metadata provider failures. Callers may
	// retry; reads soft-fail to a stale cache entry when one exists.
	ErrUpstreamUnavailable = errors.New("metadata provider unavailable")

	// ErrInvalidMood is returned for mood names outside the known set.
	ErrInvalidMood = errors.New("invalid mood")

	// ErrInvalidGenreFormat is returned when genre id input cannot be parsed.
	ErrInvalidGenreFormat = errors.New("invalid genre id format")

	// ErrInvalidRating is returned for rating values outside [1,10].
	ErrInvalidRating = errors.New("rating must be between 1 and 10")
)
