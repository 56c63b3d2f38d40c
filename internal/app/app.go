package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/config"
	"github.com/temcen/shelfrank/internal/database"
	"github.com/temcen/shelfrank/internal/handlers"
	"github.com/temcen/shelfrank/internal/middleware"
	"github.com/temcen/shelfrank/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
	cron     *cron.Cron
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	app.handlers = handlers.New(app.logger, services)

	app.setupRouter()

	if err := app.setupSchedule(); err != nil {
		return nil, fmt.Errorf("failed to schedule refresh: %w", err)
	}

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	if a.services.MessageBus != nil {
		if err := a.services.MessageBus.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing message bus")
		}
	}

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

	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	router.GET("/health", a.handlers.Health.Check)

	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/books/:id/similar", a.handlers.Recommendation.SimilarBooks)
		api.GET("/users/:id/recommendations", a.handlers.Recommendation.UserRecommendations)
		api.POST("/admin/refresh", a.handlers.Admin.TriggerRefresh)
	}

	a.router = router
}

// setupSchedule registers the nightly refresh. An empty schedule disables
// the in-process trigger; an external scheduler can still drive the admin
// endpoint.
func (a *App) setupSchedule() error {
	schedule := a.config.Refresh.Schedule
	if schedule == "" {
		a.logger.Info("Refresh schedule disabled")
		return nil
	}

	a.cron = cron.New()
	_, err := a.cron.AddFunc(schedule, func() {
		_, err := a.services.Refresh.Run(context.Background())
		if errors.Is(err, services.ErrRefreshInProgress) {
			a.logger.Warn("Scheduled refresh skipped, previous run still in progress")
			return
		}
		if err != nil {
			a.logger.WithError(err).Error("Scheduled refresh failed")
		}
	})
	if err != nil {
		return err
	}

	a.cron.Start()
	a.logger.WithField("schedule", schedule).Info("Refresh schedule registered")
	return nil
}
