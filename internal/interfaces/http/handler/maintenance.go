package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/infrastructure/scheduler"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
)

// MaintenanceRunner is the scheduled reconciliation run
type MaintenanceRunner interface {
	RunNow(ctx context.Context) (scheduler.RunSummary, error)
	GetStatus() scheduler.Status
}

// MaintenanceHandler exposes the daily maintenance schedule
type MaintenanceHandler struct {
	BaseHandler
	runner MaintenanceRunner
}

// NewMaintenanceHandler creates a new MaintenanceHandler
func NewMaintenanceHandler(runner MaintenanceRunner) *MaintenanceHandler {
	return &MaintenanceHandler{runner: runner}
}

// Status shows the schedule and the last run
//
// @Summary      Maintenance schedule status
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=scheduler.Status}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /admin/maintenance [get]
func (h *MaintenanceHandler) Status(c *gin.Context) {
	h.Success(c, h.runner.GetStatus())
}

// Run triggers a maintenance run outside the schedule. The run is detached
// from the request so a client disconnect does not abort it halfway.
//
// @Summary      Run maintenance now
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=scheduler.RunSummary}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /admin/maintenance/run [post]
func (h *MaintenanceHandler) Run(c *gin.Context) {
	summary, err := h.runner.RunNow(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, scheduler.ErrRunInProgress) {
		h.Error(c, http.StatusConflict, dto.ErrCodeConcurrencyConflict, err.Error())
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
