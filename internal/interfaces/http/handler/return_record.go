package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	returnsapp "github.com/returnflow/backend/internal/application/returns"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
)

// ReturnRecordHandler serves /api/v1/return-records and /api/v1/collection-orders
type ReturnRecordHandler struct {
	BaseHandler
	records *returnsapp.RecordService
}

// NewReturnRecordHandler creates a new ReturnRecordHandler
func NewReturnRecordHandler(records *returnsapp.RecordService) *ReturnRecordHandler {
	return &ReturnRecordHandler{records: records}
}

// List returns the snapshot, filtered by status, documentNo and ncrNumber
//
// @Summary      List return records
// @Description  Lists the cached records, optionally filtered
// @Tags         return-records
// @Produce      json
// @Param        status query string false "Record status"
// @Param        documentNo query string false "Document number, case-insensitive"
// @Param        ncrNumber query string false "NCR number"
// @Success      200 {object} dto.Response{data=[]returns.ReturnRecord}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /return-records [get]
func (h *ReturnRecordHandler) List(c *gin.Context) {
	var q ListReturnRecordsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	records := h.records.List(returnsapp.RecordFilter{
		Status:     returns.Status(q.Status),
		DocumentNo: q.DocumentNo,
		NCRNumber:  q.NCRNumber,
	})
	c.JSON(http.StatusOK, dto.NewListResponse(records))
}

// GetByID reads one record from the store
//
// @Summary      Get a return record
// @Tags         return-records
// @Produce      json
// @Param        id path string true "Record ID"
// @Success      200 {object} dto.Response{data=returns.ReturnRecord}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /return-records/{id} [get]
func (h *ReturnRecordHandler) GetByID(c *gin.Context) {
	rec, err := h.records.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rec)
}

// Create handles logistics intake
//
// @Summary      Create a return record
// @Description  Logistics intake. The record starts as Draft, or Requested when submit is set, and gets the next RT number
// @Tags         return-records
// @Accept       json
// @Produce      json
// @Param        request body CreateReturnRecordRequest true "Intake line"
// @Success      201 {object} dto.Response{data=returns.ReturnRecord}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      423 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /return-records [post]
func (h *ReturnRecordHandler) Create(c *gin.Context) {
	var req CreateReturnRecordRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.records.Create(c.Request.Context(), req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rec)
}

// Update changes content fields while the record is still in intake
//
// @Summary      Update an intake record
// @Description  Only Draft and Requested records can be edited
// @Tags         return-records
// @Accept       json
// @Produce      json
// @Param        id path string true "Record ID"
// @Param        request body UpdateReturnRecordRequest true "Fields to change"
// @Success      200 {object} dto.Response{data=returns.ReturnRecord}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      423 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /return-records/{id} [put]
func (h *ReturnRecordHandler) Update(c *gin.Context) {
	var req UpdateReturnRecordRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.records.Update(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rec)
}

// Transition applies an action, guarded by the status the client last saw
//
// @Summary      Apply a lifecycle action
// @Description  Rejected when the record is no longer in expectedStatus
// @Tags         return-records
// @Accept       json
// @Produce      json
// @Param        id path string true "Record ID"
// @Param        request body TransitionRequest true "Action and the status the client last saw"
// @Success      200 {object} dto.Response{data=returns.ReturnRecord}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /return-records/{id}/transitions [post]
func (h *ReturnRecordHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.records.Transition(c.Request.Context(), c.Param("id"),
		returns.Action(req.Action), returns.Status(req.ExpectedStatus))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rec)
}

// Undo reverts one step. Mounted behind the admin secret.
//
// @Summary      Undo the last step
// @Description  Moves the record one status back and clears the step's date
// @Tags         return-records
// @Accept       json
// @Produce      json
// @Param        id path string true "Record ID"
// @Param        request body UndoRequest true "Status the client last saw"
// @Success      200 {object} dto.Response{data=returns.ReturnRecord}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /return-records/{id}/undo [post]
func (h *ReturnRecordHandler) Undo(c *gin.Context) {
	var req UndoRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.records.Undo(c.Request.Context(), c.Param("id"), returns.Status(req.ExpectedStatus))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rec)
}

// SetDisposition records post-inspection routing
//
// @Summary      Set the disposition
// @Tags         return-records
// @Accept       json
// @Produce      json
// @Param        id path string true "Record ID"
// @Param        request body DispositionRequest true "Disposition"
// @Success      200 {object} dto.Response{data=returns.ReturnRecord}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /return-records/{id}/disposition [post]
func (h *ReturnRecordHandler) SetDisposition(c *gin.Context) {
	var req DispositionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.records.SetDisposition(c.Request.Context(), c.Param("id"), returns.Disposition(req.Disposition))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rec)
}

// Split fans a record out into several lines
//
// @Summary      Split a record
// @Description  Fans a hub record out into lines whose quantities add up to the original
// @Tags         return-records
// @Accept       json
// @Produce      json
// @Param        id path string true "Record ID"
// @Param        request body SplitRequest true "Quantities, the first stays on the original"
// @Success      201 {object} dto.Response{data=[]returns.ReturnRecord}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /return-records/{id}/split [post]
func (h *ReturnRecordHandler) Split(c *gin.Context) {
	var req SplitRequest
	if !h.BindJSON(c, &req) {
		return
	}
	parts, err := h.records.Split(c.Request.Context(), c.Param("id"), req.Quantities)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, parts)
}

// Purge hard-deletes a record. Mounted behind the admin secret.
//
// @Summary      Delete a return record
// @Tags         return-records
// @Produce      json
// @Param        id path string true "Record ID"
// @Success      204
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     AdminSecret
// @Router       /return-records/{id} [delete]
func (h *ReturnRecordHandler) Purge(c *gin.Context) {
	if err := h.records.Purge(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ScheduleCollection books one pickup for several records. Records that could
// not be scheduled are listed under "failed"; only a fully failed order is an error.
//
// @Summary      Schedule a collection order
// @Description  Books one pickup for several Requested records under a new COL number
// @Tags         collection-orders
// @Accept       json
// @Produce      json
// @Param        request body CollectionOrderRequest true "Record IDs"
// @Success      201 {object} dto.Response{data=returnsapp.CollectionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /collection-orders [post]
func (h *ReturnRecordHandler) ScheduleCollection(c *gin.Context) {
	var req CollectionOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.records.ScheduleCollection(c.Request.Context(), req.RecordIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
