package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/database"
)

type HealthService struct {
	db     *database.Database
	logger *logrus.Logger
}

type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

func NewHealthService(db *database.Database, logger *logrus.Logger) *HealthService {
	return &HealthService{
		db:     db,
		logger: logger,
	}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "healthy",
		Components: make(map[string]string),
		CheckedAt:  time.Now(),
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PG.Ping(checkCtx); err != nil {
		s.logger.WithError(err).Error("PostgreSQL health check failed")
		status.Components["postgres"] = "unhealthy"
		status.Status = "unhealthy"
	} else {
		status.Components["postgres"] = "healthy"
	}

	if s.db.Redis == nil {
		status.Components["redis"] = "disabled"
	} else if err := s.db.Redis.Ping(checkCtx).Err(); err != nil {
		s.logger.WithError(err).Error("Redis health check failed")
		status.Components["redis"] = "unhealthy"
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
	} else {
		status.Components["redis"] = "healthy"
	}

	return status
}
