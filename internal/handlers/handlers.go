package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Rating         *RatingHandler
	Admin          *AdminHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Recommendation: NewRecommendationHandler(services.Similarity, services.Hybrid, services.Mood, logger),
		Rating:         NewRatingHandler(services.Ratings, logger),
		Admin:          NewAdminHandler(services.MovieCache, services.Memo, logger),
	}
}
