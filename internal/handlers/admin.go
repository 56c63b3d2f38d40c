package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/services"
)

// AdminHandler exposes the on-demand refresh trigger. The nightly schedule
// is the normal driver; this endpoint exists for operators.
type AdminHandler struct {
	refresh *services.RefreshService
	logger  *logrus.Logger
}

func NewAdminHandler(refresh *services.RefreshService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		refresh: refresh,
		logger:  logger,
	}
}

// TriggerRefresh handles POST /api/v1/admin/refresh. The run proceeds in
// the background; overlap with a running refresh is rejected by the run
// lock, not by this handler.
func (h *AdminHandler) TriggerRefresh(c *gin.Context) {
	go func() {
		summary, err := h.refresh.Run(context.Background())
		if errors.Is(err, services.ErrRefreshInProgress) {
			h.logger.Info("Refresh trigger ignored, run already in progress")
			return
		}
		if err != nil {
			h.logger.WithError(err).Error("Triggered refresh failed")
			return
		}
		h.logger.WithField("run_id", summary.RunID).Info("Triggered refresh finished")
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status": "refresh started",
	})
}
