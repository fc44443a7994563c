package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/services"
	"github.com/cinerec/cinerec/pkg/models"
)

type RatingHandler struct {
	ratings *services.RatingService
	logger  *logrus.Logger
}

func NewRatingHandler(ratings *services.RatingService, logger *logrus.Logger) *RatingHandler {
	return &RatingHandler{
		ratings: ratings,
		logger:  logger,
	}
}

type ratingRequest struct {
	UserID  int64   `json:"user_id" binding:"required"`
	MovieID int64   `json:"movie_id" binding:"required"`
	Rating  float64 `json:"rating" binding:"required"`
}

// Upsert handles PUT /api/v1/ratings
func (h *RatingHandler) Upsert(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST_BODY",
				"message": "user_id, movie_id and rating are required",
			},
		})
		return
	}

	rating, err := h.ratings.Upsert(c.Request.Context(), req.UserID, req.MovieID, req.Rating)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidRating):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_RATING",
					"message": err.Error(),
				},
			})
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "MOVIE_NOT_FOUND",
					"message": "Movie not found",
				},
			})
		default:
			h.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":  req.UserID,
				"movie_id": req.MovieID,
			}).Error("Rating upsert failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "RATING_FAILED",
					"message": "Failed to store rating",
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, rating)
}
