package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Admin          *AdminHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Recommendation: NewRecommendationHandler(services.Recommendation, logger),
		Admin:          NewAdminHandler(services.Refresh, logger),
	}
}
