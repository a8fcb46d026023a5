package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	returnsapp "github.com/returnflow/backend/internal/application/returns"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
)

// SubmitNCRRequest is a new problem report
type SubmitNCRRequest struct {
	Date    string          `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Founder string          `json:"founder" binding:"max=100"`
	RefNo   string          `json:"refNo" binding:"max=64"`
	Item    returns.NCRItem `json:"item"`
}

// ListNCRReportsQuery filters the report listing
type ListNCRReportsQuery struct {
	IncludeCanceled bool `form:"includeCanceled"`
}

// NCRReportHandler serves /api/v1/ncr-reports
type NCRReportHandler struct {
	BaseHandler
	reports *returnsapp.NCRService
}

// NewNCRReportHandler creates a new NCRReportHandler
func NewNCRReportHandler(reports *returnsapp.NCRService) *NCRReportHandler {
	return &NCRReportHandler{reports: reports}
}

// List returns active reports, or all of them with includeCanceled=true
//
// @Summary      List NCR reports
// @Tags         ncr-reports
// @Produce      json
// @Param        includeCanceled query bool false "Include canceled reports"
// @Success      200 {object} dto.Response{data=[]returns.NCRReport}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ncr-reports [get]
func (h *NCRReportHandler) List(c *gin.Context) {
	var q ListNCRReportsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(h.reports.List(q.IncludeCanceled)))
}

// GetByID reads one report
//
// @Summary      Get an NCR report
// @Tags         ncr-reports
// @Produce      json
// @Param        id path string true "Report ID"
// @Success      200 {object} dto.Response{data=returns.NCRReport}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ncr-reports/{id} [get]
func (h *NCRReportHandler) GetByID(c *gin.Context) {
	report, err := h.reports.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Submit stores a report and the return record it produces
//
// @Summary      Submit an NCR report
// @Description  Stores the report under a new NCR number and projects its return record
// @Tags         ncr-reports
// @Accept       json
// @Produce      json
// @Param        request body SubmitNCRRequest true "Report"
// @Success      201 {object} dto.Response{data=returnsapp.SubmitNCRResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      423 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ncr-reports [post]
func (h *NCRReportHandler) Submit(c *gin.Context) {
	var req SubmitNCRRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.reports.Submit(c.Request.Context(), returnsapp.SubmitNCRInput{
		Date:    req.Date,
		Founder: req.Founder,
		RefNo:   req.RefNo,
		Item:    req.Item,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Update merges a partial document into the report. Nested "item" keys merge
// field by field; the change is mirrored onto linked records.
//
// @Summary      Update an NCR report
// @Description  Merges a partial document and mirrors it onto linked records
// @Tags         ncr-reports
// @Accept       json
// @Produce      json
// @Param        id path string true "Report ID"
// @Param        request body object true "Partial report, flat or with a nested item"
// @Success      200 {object} dto.Response{data=returnsapp.NCRChangeResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ncr-reports/{id} [patch]
func (h *NCRReportHandler) Update(c *gin.Context) {
	var patch map[string]any
	if !h.BindJSON(c, &patch) {
		return
	}
	if len(patch) == 0 {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Patch is empty")
		return
	}
	result, err := h.reports.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel soft-cancels a report and its records
//
// @Summary      Cancel an NCR report
// @Description  Soft-cancels the report and its linked records
// @Tags         ncr-reports
// @Produce      json
// @Param        id path string true "Report ID"
// @Success      200 {object} dto.Response{data=returnsapp.NCRChangeResult}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ncr-reports/{id}/cancel [post]
func (h *NCRReportHandler) Cancel(c *gin.Context) {
	result, err := h.reports.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
