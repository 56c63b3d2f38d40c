package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/config"
	"github.com/temcen/shelfrank/internal/database"
	"github.com/temcen/shelfrank/internal/messaging"
	"github.com/temcen/shelfrank/internal/storage"
)

type Services struct {
	Health         *HealthService
	Recommendation *RecommendationService
	Refresh        *RefreshService
	MessageBus     *messaging.MessageBus
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	catalog := storage.NewCatalogRepository(db.PG, logger)
	behavior := storage.NewBehaviorRepository(db.PG, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if count, err := catalog.CountBooks(ctx); err != nil {
		logger.WithError(err).Warn("Failed to count catalog books")
	} else {
		logger.WithField("books", count).Info("Catalog store reachable")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	recommendation := NewRecommendationService(catalog, behavior, rng, logger)

	messageBus, err := messaging.NewMessageBus(cfg, logger)
	if err != nil {
		return nil, err
	}

	var lock RunLock
	if db.Redis != nil {
		lock = NewRedisRunLock(db.Redis, "shelfrank:refresh:lock", cfg.Refresh.LockTTL)
	}

	refresh := NewRefreshService(
		db.PG, catalog, behavior, recommendation, lock, messageBus, cfg.Refresh, logger,
	)

	return &Services{
		Health:         NewHealthService(db, logger),
		Recommendation: recommendation,
		Refresh:        refresh,
		MessageBus:     messageBus,
	}, nil
}
