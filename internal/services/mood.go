package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/cache"
	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/pkg/models"
)

// TMDB genre id for Romance; the romantic mood hard-requires it.
const romanceGenreID = 10749

type moodProfile struct {
	include         []int64
	exclude         []int64
	boostKeywords   []string
	penaltyKeywords []string
	minRuntime      int
	maxRuntime      int
	stricterRating  bool
}

// moodProfiles maps each supported mood to genre preferences and keyword
// signals. Genre ids are TMDB's.
var moodProfiles = map[string]moodProfile{
	"happy": {
		include:         []int64{35, 10751, 16, 10402}, // Comedy, Family, Animation, Music
		exclude:         []int64{27, 53, 80},           // Horror, Thriller, Crime
		boostKeywords:   []string{"feel-good", "friendship", "hope", "celebration", "fun", "comedy"},
		penaltyKeywords: []string{"dark", "death", "murder", "violence", "tragedy"},
		minRuntime:      80, maxRuntime: 120,
	},
	"sad": {
		include:         []int64{18, 10749},  // Drama, Romance
		exclude:         []int64{35, 28, 27}, // Comedy, Action, Horror
		boostKeywords:   []string{"loss", "tragedy", "emotional", "tear-jerker", "heartbreak", "melancholy"},
		penaltyKeywords: []string{"comedy", "action", "superhero", "adventure"},
		minRuntime:      90, maxRuntime: 150,
		stricterRating: true,
	},
	"excited": {
		include:         []int64{28, 12, 878, 14}, // Action, Adventure, Sci-Fi, Fantasy
		exclude:         []int64{10749, 99},       // Romance, Documentary
		boostKeywords:   []string{"action", "adventure", "epic", "battle", "superhero", "chase", "explosion"},
		penaltyKeywords: []string{"slow-paced", "romantic", "quiet", "documentary"},
		minRuntime:      90, maxRuntime: 150,
	},
	"relaxed": {
		include:         []int64{35, 10751, 16}, // Comedy, Family, Animation
		exclude:         []int64{27, 53, 10752}, // Horror, Thriller, War
		boostKeywords:   []string{"light-hearted", "easy-watching", "feel-good", "gentle", "peaceful"},
		penaltyKeywords: []string{"intense", "dark", "violent", "disturbing"},
		minRuntime:      80, maxRuntime: 110,
	},
	"scared": {
		include:         []int64{27, 53},        // Horror, Thriller
		exclude:         []int64{35, 10751, 16}, // Comedy, Family, Animation
		boostKeywords:   []string{"horror", "suspense", "terror", "scary", "psychological", "thriller"},
		penaltyKeywords: []string{"comedy", "family-friendly", "light-hearted"},
		minRuntime:      80, maxRuntime: 120,
	},
	"thoughtful": {
		include:         []int64{18, 9648, 36, 99, 878}, // Drama, Mystery, History, Documentary, Sci-Fi
		exclude:         []int64{35, 27},                // Comedy, Horror
		boostKeywords:   []string{"thought-provoking", "philosophical", "complex", "intelligent", "mystery"},
		penaltyKeywords: []string{"mindless", "simple", "comedy", "slasher"},
		minRuntime:      100, maxRuntime: 180,
		stricterRating: true,
	},
	"romantic": {
		include:         []int64{10749, 35, 18}, // Romance, Comedy, Drama
		exclude:         []int64{27, 28, 10752}, // Horror, Action, War
		boostKeywords:   []string{"romance", "love", "relationship", "heartwarming", "couple"},
		penaltyKeywords: []string{"horror", "violence", "war", "action-packed"},
		minRuntime:      90, maxRuntime: 130,
		stricterRating: true,
	},
}

// MoodService ranks cached movies for a requested mood with light
// per-user personalization and a year/genre diversity pass.
type MoodService struct {
	movies  movieSource
	ratings ratingSource
	memo    *cache.Cache
	config  *config.Config
	logger  *logrus.Logger
}

func NewMoodService(
	movies movieSource,
	ratings ratingSource,
	memo *cache.Cache,
	cfg *config.Config,
	logger *logrus.Logger,
) *MoodService {
	return &MoodService{
		movies:  movies,
		ratings: ratings,
		memo:    memo,
		config:  cfg,
		logger:  logger,
	}
}

// Moods lists the supported mood names, sorted.
func Moods() []string {
	names := make([]string, 0, len(moodProfiles))
	for name := range moodProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recommend returns mood-ranked movies for a user. Unknown moods return
// ErrInvalidMood. Base scores depend only on the mood and the candidate set
// and are memoized; the personalization and diversity passes run per call.
func (s *MoodService) Recommend(
	ctx context.Context,
	userID int64,
	mood string,
	limit int,
) ([]models.MoodRecommendation, error) {
	recommendationRequests.WithLabelValues("mood").Inc()

	mood = strings.ToLower(mood)
	profile, ok := moodProfiles[mood]
	if !ok {
		return nil, fmt.Errorf("%w: %q (choose from %v)", models.ErrInvalidMood, mood, Moods())
	}

	if limit <= 0 {
		limit = s.config.Recommendation.Similarity.DefaultLimit
	}

	moodCfg := s.config.Recommendation.Mood
	minRating := moodCfg.MinRating
	if profile.stricterRating {
		minRating += 0.5
	}

	candidates, err := s.movies.CandidatePool(ctx, 0, nil, minRating, moodCfg.MaxCandidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Warn("No cached movies for mood recommendations")
		return nil, nil
	}

	baseScores, err := s.baseScores(mood, profile, candidates)
	if err != nil {
		return nil, err
	}

	userRatings, err := s.ratings.UserRatings(ctx, userID)
	if err != nil {
		return nil, err
	}

	ratedTMDBIDs := make(map[int64]bool, len(userRatings))
	userAvg := 0.0
	for _, r := range userRatings {
		ratedTMDBIDs[r.TMDBID] = true
		userAvg += r.Value
	}
	if len(userRatings) > 0 {
		userAvg /= float64(len(userRatings))
	}

	scored := make([]models.MoodRecommendation, 0, len(baseScores))
	for _, base := range baseScores {
		if ratedTMDBIDs[base.Movie.TMDBID] {
			continue
		}

		entry := base
		if len(userRatings) > 0 {
			diff := math.Abs(entry.Movie.VoteAverage - userAvg)
			switch {
			case diff < moodCfg.CloseRatingDiff:
				entry.MoodScore *= moodCfg.CloseBoost
			case diff > moodCfg.FarRatingDiff:
				entry.MoodScore *= moodCfg.FarPenalty
			}
		}
		scored = append(scored, entry)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].MoodScore > scored[j].MoodScore
	})

	results := s.diversify(scored, limit, moodCfg.MaxPerYearGenre)

	if len(results) < limit {
		results = s.backfill(ctx, results, ratedTMDBIDs, profile, minRating, limit)
	}

	s.logger.WithFields(logrus.Fields{
		"mood":    mood,
		"user_id": userID,
		"results": len(results),
	}).Debug("Mood recommendations computed")

	return results, nil
}

// baseScores computes (or retrieves) user-independent mood scores for the
// candidate set. The memo key includes a signature of the sorted candidate
// ids, so a changed pool invalidates naturally.
func (s *MoodService) baseScores(
	mood string,
	profile moodProfile,
	candidates []models.CachedMovie,
) ([]models.MoodRecommendation, error) {
	ids := make([]int64, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].TMDBID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sig strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sig, "%d,", id)
	}
	key := fmt.Sprintf("mood:%s:%08x", mood, fnvHash(sig.String()))

	cached, err := s.memo.GetOrBuild(key, s.config.Recommendation.Mood.BaseScoreTTL,
		func() (interface{}, error) {
			return s.computeBaseScores(mood, profile, candidates), nil
		})
	if err != nil {
		return nil, err
	}
	return cached.([]models.MoodRecommendation), nil
}

func (s *MoodService) computeBaseScores(
	mood string,
	profile moodProfile,
	candidates []models.CachedMovie,
) []models.MoodRecommendation {
	moodCfg := s.config.Recommendation.Mood
	includeSet := make(map[int64]bool, len(profile.include))
	for _, id := range profile.include {
		includeSet[id] = true
	}
	excludeSet := make(map[int64]bool, len(profile.exclude))
	for _, id := range profile.exclude {
		excludeSet[id] = true
	}

	var scored []models.MoodRecommendation
	for i := range candidates {
		movie := &candidates[i]
		if !movie.HasGenres() {
			continue
		}

		if mood == "romantic" && !containsGenre(movie.Genres, romanceGenreID) {
			continue
		}

		excluded := false
		overlap := 0
		for _, g := range movie.Genres {
			if excludeSet[g] {
				excluded = true
				break
			}
			if includeSet[g] {
				overlap++
			}
		}
		if excluded || overlap == 0 {
			continue
		}

		genreScore := float64(overlap) / float64(len(profile.include))

		keywordMult := 1.0
		keywords := movie.KeywordNames
		if keywords != nil {
			for _, boost := range profile.boostKeywords {
				if keywordMatch(keywords, boost) {
					keywordMult += moodCfg.KeywordBoost
				}
			}
			for _, penalty := range profile.penaltyKeywords {
				if keywordMatch(keywords, penalty) {
					keywordMult -= moodCfg.KeywordPenalty
				}
			}
			keywordMult = math.Max(moodCfg.KeywordFloor, keywordMult)
		}

		ratingBoost := 1 + movie.VoteAverage/10.0
		popularityBoost := 1 + movie.Popularity/1000.0*0.2

		scored = append(scored, models.MoodRecommendation{
			Movie:        *movie,
			MoodScore:    genreScore * keywordMult * ratingBoost * popularityBoost,
			GenreOverlap: overlap,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].MoodScore > scored[j].MoodScore
	})
	return scored
}

// diversify caps how many results share a (release year, primary genre)
// combination so one franchise or production wave cannot fill the list.
func (s *MoodService) diversify(
	scored []models.MoodRecommendation,
	limit, maxPerCombo int,
) []models.MoodRecommendation {
	comboCounts := make(map[string]int)
	results := make([]models.MoodRecommendation, 0, limit)

	for _, entry := range scored {
		if len(results) >= limit {
			break
		}

		primaryGenre, _ := entry.Movie.PrimaryGenre()
		combo := fmt.Sprintf("%s_%d", entry.Movie.ReleaseYear(), primaryGenre)
		if comboCounts[combo] >= maxPerCombo {
			continue
		}
		comboCounts[combo]++
		results = append(results, entry)
	}
	return results
}

// backfill relaxes the rating threshold to top up short result sets. Filler
// entries still honor the mood's genre constraints and carry a fixed low
// score.
func (s *MoodService) backfill(
	ctx context.Context,
	results []models.MoodRecommendation,
	ratedTMDBIDs map[int64]bool,
	profile moodProfile,
	minRating float64,
	limit int,
) []models.MoodRecommendation {
	moodCfg := s.config.Recommendation.Mood

	seen := make(map[int64]bool, len(results))
	for _, r := range results {
		seen[r.Movie.TMDBID] = true
	}

	relaxed := math.Max(5.5, minRating-0.5)
	pool, err := s.movies.CandidatePool(ctx, 0, nil, relaxed, limit*2)
	if err != nil {
		s.logger.WithError(err).Warn("Mood backfill query failed")
		return results
	}

	excludeSet := make(map[int64]bool, len(profile.exclude))
	for _, id := range profile.exclude {
		excludeSet[id] = true
	}

	for i := range pool {
		if len(results) >= limit {
			break
		}
		movie := &pool[i]
		if seen[movie.TMDBID] || ratedTMDBIDs[movie.TMDBID] {
			continue
		}

		overlap := genreOverlapCount(profile.include, movie.Genres)
		if overlap == 0 {
			continue
		}
		blocked := false
		for _, g := range movie.Genres {
			if excludeSet[g] {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		seen[movie.TMDBID] = true
		results = append(results, models.MoodRecommendation{
			Movie:        *movie,
			MoodScore:    moodCfg.FallbackScore,
			GenreOverlap: overlap,
		})
	}
	return results
}

// keywordMatch reports whether any movie keyword contains the term as a
// substring. Keyword names are stored lower-cased.
func keywordMatch(keywords []string, term string) bool {
	term = strings.ToLower(term)
	for _, kw := range keywords {
		if strings.Contains(kw, term) {
			return true
		}
	}
	return false
}

func containsGenre(genres []int64, id int64) bool {
	for _, g := range genres {
		if g == id {
			return true
		}
	}
	return false
}

func fnvHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
