package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/services"
	"github.com/cinerec/cinerec/pkg/models"
)

type RecommendationHandler struct {
	similarity *services.SimilarityService
	hybrid     *services.HybridService
	mood       *services.MoodService
	logger     *logrus.Logger
}

func NewRecommendationHandler(
	similarity *services.SimilarityService,
	hybrid *services.HybridService,
	mood *services.MoodService,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		similarity: similarity,
		hybrid:     hybrid,
		mood:       mood,
		logger:     logger,
	}
}

// Similar handles GET /api/v1/movies/:id/similar?limit=&use_knn=
func (h *RecommendationHandler) Similar(c *gin.Context) {
	tmdbID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_MOVIE_ID",
				"message": "Invalid movie ID format",
			},
		})
		return
	}

	limit := parseLimit(c, 20)
	useKNN := c.DefaultQuery("use_knn", "true") != "false"

	results, err := h.similarity.FindSimilar(c.Request.Context(), tmdbID, limit, useKNN)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "MOVIE_NOT_FOUND",
					"message": "Movie not found",
				},
			})
			return
		}
		h.logger.WithError(err).WithField("tmdb_id", tmdbID).Error("Similar movies failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "SIMILARITY_FAILED",
				"message": "Failed to compute similar movies",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_id": tmdbID,
		"results":  emptyIfNilSimilar(results),
	})
}

// ByGenre handles GET /api/v1/movies/by-genre?genre_ids=28,12&limit=&min_rating=
func (h *RecommendationHandler) ByGenre(c *gin.Context) {
	genreIDs, err := parseGenreIDs(c.Query("genre_ids"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_GENRE_IDS",
				"message": "genre_ids must be a comma-separated list of integers",
			},
		})
		return
	}

	limit := parseLimit(c, 20)
	minRating := 6.0
	if v := c.Query("min_rating"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 && parsed <= 10 {
			minRating = parsed
		}
	}

	results, err := h.similarity.ByGenres(c.Request.Context(), genreIDs, limit, minRating)
	if err != nil {
		h.logger.WithError(err).Error("Genre recommendations failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "GENRE_RECOMMENDATIONS_FAILED",
				"message": "Failed to compute genre recommendations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"genre_ids": genreIDs,
		"results":   emptyIfNilSimilar(results),
	})
}

// Hybrid handles GET /api/v1/recommendations/hybrid/:userId?seed_id=&limit=
func (h *RecommendationHandler) Hybrid(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var seedID int64
	if v := c.Query("seed_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_SEED_ID",
					"message": "Invalid seed movie ID format",
				},
			})
			return
		}
		seedID = parsed
	}

	limit := parseLimit(c, 20)

	results, err := h.hybrid.Recommend(c.Request.Context(), userID, seedID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Hybrid recommendations failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "HYBRID_RECOMMENDATIONS_FAILED",
				"message": "Failed to compute recommendations",
			},
		})
		return
	}

	if results == nil {
		results = []models.HybridRecommendation{}
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"results": results,
	})
}

// Personalized handles GET /api/v1/recommendations/personalized/:userId.
// Same engine as Hybrid without an explicit seed.
func (h *RecommendationHandler) Personalized(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	limit := parseLimit(c, 20)

	results, err := h.hybrid.Recommend(c.Request.Context(), userID, 0, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Personalized recommendations failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PERSONALIZED_RECOMMENDATIONS_FAILED",
				"message": "Failed to compute recommendations",
			},
		})
		return
	}

	if results == nil {
		results = []models.HybridRecommendation{}
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"results": results,
	})
}

// Mood handles GET /api/v1/recommendations/mood/:mood?user_id=&limit=
func (h *RecommendationHandler) Mood(c *gin.Context) {
	mood := c.Param("mood")

	var userID int64
	if v := c.Query("user_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_USER_ID",
					"message": "Invalid user ID format",
				},
			})
			return
		}
		userID = parsed
	}

	limit := parseLimit(c, 20)

	results, err := h.mood.Recommend(c.Request.Context(), userID, mood, limit)
	if err != nil {
		if errors.Is(err, models.ErrInvalidMood) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_MOOD",
					"message": err.Error(),
				},
			})
			return
		}
		h.logger.WithError(err).WithField("mood", mood).Error("Mood recommendations failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "MOOD_RECOMMENDATIONS_FAILED",
				"message": "Failed to compute mood recommendations",
			},
		})
		return
	}

	if results == nil {
		results = []models.MoodRecommendation{}
	}
	c.JSON(http.StatusOK, gin.H{
		"mood":    strings.ToLower(mood),
		"results": results,
	})
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user ID format",
			},
		})
		return 0, false
	}
	return userID, true
}

func parseLimit(c *gin.Context, fallback int) int {
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			return parsed
		}
	}
	return fallback
}

func parseGenreIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, models.ErrInvalidGenreFormat
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, models.ErrInvalidGenreFormat
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func emptyIfNilSimilar(results []models.SimilarMovie) []models.SimilarMovie {
	if results == nil {
		return []models.SimilarMovie{}
	}
	return results
}
