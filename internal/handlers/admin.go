package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/cache"
	"github.com/cinerec/cinerec/internal/services"
)

// AdminHandler exposes the cache population and inspection surface.
type AdminHandler struct {
	movies *services.MovieCacheService
	memo   *cache.Cache
	logger *logrus.Logger
}

func NewAdminHandler(movies *services.MovieCacheService, memo *cache.Cache, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		movies: movies,
		memo:   memo,
		logger: logger,
	}
}

// PopulateCache handles POST /api/v1/admin/cache/populate?pages=
func (h *AdminHandler) PopulateCache(c *gin.Context) {
	pages := 5
	if v := c.Query("pages"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 50 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_PAGES",
					"message": "pages must be an integer between 1 and 50",
				},
			})
			return
		}
		pages = parsed
	}

	result, err := h.movies.PopulateFromPopular(c.Request.Context(), pages)
	if err != nil {
		h.logger.WithError(err).Error("Cache population failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"code":    "POPULATION_FAILED",
				"message": "Failed to populate movie cache",
			},
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// CacheStats handles GET /api/v1/admin/cache/stats
func (h *AdminHandler) CacheStats(c *gin.Context) {
	stats, err := h.movies.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Cache stats query failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "STATS_FAILED",
				"message": "Failed to read cache statistics",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movie_cache": stats,
		"memo_cache":  h.memo.Stats(),
	})
}
