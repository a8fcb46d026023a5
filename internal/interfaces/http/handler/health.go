package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
)

// Pinger checks the connections behind the document store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse reports service liveness and store reachability
type HealthResponse struct {
	Status        string `json:"status"`
	Store         string `json:"store"`
	SnapshotReady bool   `json:"snapshotReady"`
	GoVersion     string `json:"goVersion"`
	Uptime        string `json:"uptime"`
}

// HealthHandler serves /health
type HealthHandler struct {
	BaseHandler
	store     Pinger
	ready     <-chan struct{}
	startTime time.Time
}

// NewHealthHandler creates a health handler. ready is closed once the snapshot
// cache has loaded.
func NewHealthHandler(store Pinger, ready <-chan struct{}) *HealthHandler {
	return &HealthHandler{store: store, ready: ready, startTime: time.Now()}
}

// Check answers 200 when the store is reachable and 503 otherwise
//
// @Summary      Health check
// @Description  Reports store reachability and snapshot readiness
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	resp := HealthResponse{
		Status:        "ok",
		Store:         "ok",
		SnapshotReady: h.snapshotReady(),
		GoVersion:     runtime.Version(),
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			if shared.IsStoreConfigurationError(err) {
				resp.Store = "misconfigured: " + err.Error()
			}
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
			return
		}
	}
	if !resp.SnapshotReady {
		resp.Status = "starting"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}

func (h *HealthHandler) snapshotReady() bool {
	if h.ready == nil {
		return true
	}
	select {
	case <-h.ready:
		return true
	default:
		return false
	}
}
