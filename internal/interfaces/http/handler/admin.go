package handler

import (
	"github.com/gin-gonic/gin"
	returnsapp "github.com/returnflow/backend/internal/application/returns"
	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CounterFamilyURI names a counter family in the path
type CounterFamilyURI struct {
	Family string `uri:"family" binding:"required,counter_family"`
}

// CounterResponse is the stored state of a counter family
type CounterResponse struct {
	Family     string `json:"family"`
	Exists     bool   `json:"exists"`
	Year       int    `json:"year,omitempty"`
	Month      *int   `json:"month,omitempty"`
	LastNumber int    `json:"lastNumber"`
	// LastIssued is the formatted last number, empty when none was issued this period
	LastIssued string `json:"lastIssued,omitempty"`
}

// AdminHandler serves the maintenance endpoints. Every route sits behind the
// admin secret.
type AdminHandler struct {
	BaseHandler
	reconcile *returnsapp.ReconciliationService
	allocator *returnsapp.SequenceAllocator
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(reconcile *returnsapp.ReconciliationService, allocator *returnsapp.SequenceAllocator) *AdminHandler {
	return &AdminHandler{reconcile: reconcile, allocator: allocator}
}

// ReconcileOrphans purges records whose report is gone or canceled
//
// @Summary      Purge orphaned records
// @Description  Deletes NCR-linked records whose report is missing or canceled
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=returnsapp.ReconcileResult}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /admin/reconcile/orphans [post]
func (h *AdminHandler) ReconcileOrphans(c *gin.Context) {
	h.Success(c, h.reconcile.PurgeOrphans(c.Request.Context()))
}

// ReconcileMissing recreates records for reports that have none
//
// @Summary      Rebuild missing records
// @Description  Creates a record for every active report that has none
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=returnsapp.ReconcileResult}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /admin/reconcile/missing [post]
func (h *AdminHandler) ReconcileMissing(c *gin.Context) {
	h.Success(c, h.reconcile.RepairMissing(c.Request.Context()))
}

// GetCounter shows a counter without touching it
//
// @Summary      Show a counter
// @Tags         admin
// @Produce      json
// @Param        family path string true "Counter family" Enums(RT, NCR, COL)
// @Success      200 {object} dto.Response{data=CounterResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /admin/counters/{family} [get]
func (h *AdminHandler) GetCounter(c *gin.Context) {
	family, ok := h.bindFamily(c)
	if !ok {
		return
	}
	h.writeCounter(c, family)
}

// RollbackCounter gives back the last number of a family
//
// @Summary      Roll a counter back
// @Description  Gives back the last issued number of the current period
// @Tags         admin
// @Produce      json
// @Param        family path string true "Counter family" Enums(RT, NCR, COL)
// @Success      200 {object} dto.Response{data=CounterResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /admin/counters/{family}/rollback [post]
func (h *AdminHandler) RollbackCounter(c *gin.Context) {
	family, ok := h.bindFamily(c)
	if !ok {
		return
	}
	logger.L(c.Request.Context()).Warn("manual counter rollback", zap.String("family", family.Name))
	h.allocator.Rollback(c.Request.Context(), family)
	h.writeCounter(c, family)
}

func (h *AdminHandler) bindFamily(c *gin.Context) (sequence.Family, bool) {
	var uri CounterFamilyURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindError(c, err)
		return sequence.Family{}, false
	}
	family, err := sequence.ParseFamily(uri.Family)
	if err != nil {
		h.HandleError(c, err)
		return sequence.Family{}, false
	}
	return family, true
}

func (h *AdminHandler) writeCounter(c *gin.Context, family sequence.Family) {
	counter, exists, err := h.allocator.Peek(c.Request.Context(), family)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := CounterResponse{Family: family.Key, Exists: exists}
	if exists {
		resp.Year = counter.Year
		resp.Month = counter.Month
		resp.LastNumber = counter.LastNumber
		if counter.LastNumber > 0 {
			resp.LastIssued = family.Format(counter)
		}
	}
	h.Success(c, resp)
}
