package services

import (
	"fmt"
	"hash/crc32"
	"strconv"

	"github.com/cinerec/cinerec/internal/cache"
	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/pkg/models"
)

// FeatureVectorizer encodes cached movies as fixed-width weighted multi-hot
// vectors. Each attribute family hashes into its own bucket segment, so
// vectors are comparable across movies regardless of vocabulary size.
type FeatureVectorizer struct {
	memo   *cache.Cache
	config *config.VectorConfig
}

func NewFeatureVectorizer(memo *cache.Cache, cfg *config.VectorConfig) *FeatureVectorizer {
	return &FeatureVectorizer{memo: memo, config: cfg}
}

func vectorCacheKey(tmdbID int64) string {
	return fmt.Sprintf("vector:%d", tmdbID)
}

// Vectorize returns the feature vector for a movie, memoized per external id.
// The encoding is deterministic: the same attributes always produce the same
// vector. Callers must not mutate the returned slice.
func (v *FeatureVectorizer) Vectorize(movie *models.CachedMovie) []float64 {
	cached, err := v.memo.GetOrBuild(vectorCacheKey(movie.TMDBID), 0, func() (interface{}, error) {
		return v.encode(movie), nil
	})
	if err != nil {
		// The build func never fails; keep a safe path anyway.
		return v.encode(movie)
	}
	return cached.([]float64)
}

func (v *FeatureVectorizer) encode(movie *models.CachedMovie) []float64 {
	vec := make([]float64, v.config.Dimensions())

	offset := 0
	fillSegment(vec, offset, v.config.GenreBuckets, int64Values(movie.Genres), v.config.GenreWeight)
	offset += v.config.GenreBuckets

	// Keyword names hash more stably than ids when the provider re-numbers
	// keywords; fall back to ids for rows cached before the name backfill.
	keywordValues := int64Values(movie.Keywords)
	if movie.KeywordNames != nil {
		keywordValues = movie.KeywordNames
	}
	fillSegment(vec, offset, v.config.KeywordBuckets, keywordValues, v.config.KeywordWeight)
	offset += v.config.KeywordBuckets

	fillSegment(vec, offset, v.config.CastBuckets, int64Values(movie.Cast), v.config.CastWeight)
	offset += v.config.CastBuckets

	fillSegment(vec, offset, v.config.CrewBuckets, int64Values(movie.Crew), v.config.CrewWeight)

	return vec
}

// fillSegment distributes the category weight evenly across the distinct
// values (first occurrence order) and accumulates on hash collisions.
func fillSegment(vec []float64, offset, buckets int, values []string, weight float64) {
	if buckets <= 0 || len(values) == 0 {
		return
	}

	seen := make(map[string]bool, len(values))
	distinct := make([]string, 0, len(values))
	for _, val := range values {
		if seen[val] {
			continue
		}
		seen[val] = true
		distinct = append(distinct, val)
	}

	share := weight / float64(len(distinct))
	for _, val := range distinct {
		idx := offset + int(crc32.ChecksumIEEE([]byte(val))%uint32(buckets))
		vec[idx] += share
	}
}

// SimilarityScore is the weighted Jaccard similarity across the four
// attribute families. Symmetric by construction.
func (v *FeatureVectorizer) SimilarityScore(a, b *models.CachedMovie) float64 {
	score := v.config.GenreWeight * jaccard(a.Genres, b.Genres)
	score += v.config.KeywordWeight * jaccard(a.Keywords, b.Keywords)
	score += v.config.CastWeight * jaccard(a.Cast, b.Cast)
	score += v.config.CrewWeight * jaccard(a.Crew, b.Crew)
	return score
}

// InvalidateVector drops the memoized vector for a movie.
func (v *FeatureVectorizer) InvalidateVector(tmdbID int64) {
	v.memo.Invalidate(vectorCacheKey(tmdbID))
}

func int64Values(ids []int64) []string {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = strconv.FormatInt(id, 10)
	}
	return values
}

// jaccard is |A∩B| / |A∪B| over id sets, 0 when either side is empty.
func jaccard(a, b []int64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[int64]bool, len(a))
	for _, id := range a {
		setA[id] = true
	}

	union := len(setA)
	intersection := 0
	seenB := make(map[int64]bool, len(b))
	for _, id := range b {
		if seenB[id] {
			continue
		}
		seenB[id] = true
		if setA[id] {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}

// genreOverlapCount is the intersection size of two genre id lists.
func genreOverlapCount(a, b []int64) int {
	setA := make(map[int64]bool, len(a))
	for _, id := range a {
		setA[id] = true
	}

	count := 0
	seen := make(map[int64]bool, len(b))
	for _, id := range b {
		if setA[id] && !seen[id] {
			seen[id] = true
			count++
		}
	}
	return count
}
