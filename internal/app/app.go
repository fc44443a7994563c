package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/internal/database"
	"github.com/cinerec/cinerec/internal/handlers"
	"github.com/cinerec/cinerec/internal/middleware"
	"github.com/cinerec/cinerec/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	// Initialize handlers
	app.handlers = handlers.New(app.logger, services)

	// Setup router
	app.setupRouter()

	// Start background cache retention
	app.services.Housekeeping.Start()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	a.services.Housekeeping.Stop()

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))

	// Health check endpoint
	router.GET("/health", a.handlers.Health.Check)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		movies := api.Group("/movies")
		{
			movies.GET("/:id/similar", a.handlers.Recommendation.Similar)
			movies.GET("/by-genre", a.handlers.Recommendation.ByGenre)
		}

		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/hybrid/:userId", a.handlers.Recommendation.Hybrid)
			recommendations.GET("/personalized/:userId", a.handlers.Recommendation.Personalized)
			recommendations.GET("/mood/:mood", a.handlers.Recommendation.Mood)
		}

		api.PUT("/ratings", a.handlers.Rating.Upsert)

		admin := api.Group("/admin")
		{
			admin.POST("/cache/populate", a.handlers.Admin.PopulateCache)
			admin.GET("/cache/stats", a.handlers.Admin.CacheStats)
		}
	}

	a.router = router
}
