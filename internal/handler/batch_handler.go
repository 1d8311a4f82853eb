package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lexamine/lexam-backend/internal/model"
	"github.com/lexamine/lexam-backend/internal/response"
	"github.com/lexamine/lexam-backend/internal/service"
	"github.com/lexamine/lexam-backend/internal/validator"
)

// BatchHandler handles admin exam batch endpoints.
type BatchHandler struct {
	batchService *service.BatchService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batchService *service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// deleteBatchesRequest is the payload for bulk batch deletion.
type deleteBatchesRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// Pages godoc
// GET /api/v1/admin/batches?key=&page=&per_page=
func (h *BatchHandler) Pages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	key := c.Query("key")

	batches, pagination, err := h.batchService.Pages(c.Request.Context(), key, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"batches": batches}, pagination)
}

// Get godoc
// GET /api/v1/admin/batches/:batch_id
func (h *BatchHandler) Get(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	batch, err := h.batchService.Get(c.Request.Context(), batchID)
	if err != nil {
		failBatch(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batch": batch})
}

// Create godoc
// POST /api/v1/admin/batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req model.CreateBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	batch, err := h.batchService.Create(c.Request.Context(), &req)
	if err != nil {
		failBatch(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"batch": batch})
}

// Update godoc
// PUT /api/v1/admin/batches/:batch_id
func (h *BatchHandler) Update(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	var req model.UpdateBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	batch, err := h.batchService.Update(c.Request.Context(), batchID, &req)
	if err != nil {
		failBatch(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batch": batch})
}

// Delete godoc
// POST /api/v1/admin/batches/delete
func (h *BatchHandler) Delete(c *gin.Context) {
	var req deleteBatchesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	deleted, err := h.batchService.Delete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// ToggleRelease godoc
// POST /api/v1/admin/batches/:batch_id/toggle-release
func (h *BatchHandler) ToggleRelease(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	batch, err := h.batchService.ToggleRelease(c.Request.Context(), batchID)
	if err != nil {
		failBatch(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batch": batch})
}

// ToggleDistribute godoc
// POST /api/v1/admin/batches/:batch_id/toggle-distribute
func (h *BatchHandler) ToggleDistribute(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	batch, err := h.batchService.ToggleDistribute(c.Request.Context(), batchID)
	if err != nil {
		failBatch(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batch": batch})
}

// ListEnabled godoc
// GET /api/v1/admin/batches/enabled
// Returns enabled batches that have not started yet.
func (h *BatchHandler) ListEnabled(c *gin.Context) {
	batches, err := h.batchService.ListEnabledNotStarted(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batches": batches})
}

func failBatch(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrPaperGroupNotFound):
		response.Fail(c, http.StatusBadRequest, response.ErrNotFound)
	case errors.Is(err, service.ErrBatchNotReleased):
		response.Fail(c, http.StatusConflict, response.ErrBatchNotReleasedCode)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
