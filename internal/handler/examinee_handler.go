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

// ExamineeHandler handles admin enrollment endpoints.
type ExamineeHandler struct {
	examineeService *service.ExamineeService
}

// NewExamineeHandler creates a new ExamineeHandler.
func NewExamineeHandler(examineeService *service.ExamineeService) *ExamineeHandler {
	return &ExamineeHandler{examineeService: examineeService}
}

// userIDsRequest is the payload for bulk bind/remove operations.
type userIDsRequest struct {
	UserIDs []int64 `json:"user_ids" binding:"required,min=1"`
}

// Review godoc
// POST /api/v1/admin/examinees/review
// Approves or rejects pending enrollments in bulk.
func (h *ExamineeHandler) Review(c *gin.Context) {
	var req model.ReviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	updated, err := h.examineeService.Review(c.Request.Context(), req.BatchID, *req.Approve, req.UserIDs)
	if err != nil {
		failExaminee(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Bind godoc
// POST /api/v1/admin/examinees/:batch_id/bind
func (h *ExamineeHandler) Bind(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	var req userIDsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	bound, skipped, err := h.examineeService.Bind(c.Request.Context(), batchID, req.UserIDs)
	if err != nil {
		failExaminee(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bound": bound, "skipped": skipped})
}

// Remove godoc
// POST /api/v1/admin/examinees/:batch_id/remove
func (h *ExamineeHandler) Remove(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	var req userIDsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	removed, err := h.examineeService.Remove(c.Request.Context(), batchID, req.UserIDs)
	if err != nil {
		failExaminee(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// Pages godoc
// GET /api/v1/admin/examinees/:batch_id?key=&status=&page=&per_page=
func (h *ExamineeHandler) Pages(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	key := c.Query("key")

	var status *int
	if raw := c.Query("status"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		status = &v
	}

	rows, pagination, err := h.examineeService.Pages(c.Request.Context(), batchID, key, status, page, perPage)
	if err != nil {
		failExaminee(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"examinees": rows}, pagination)
}

// OptionalPages godoc
// GET /api/v1/admin/examinees/:batch_id/optional?key=&page=&per_page=
// Lists candidate accounts not yet bound to the batch.
func (h *ExamineeHandler) OptionalPages(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	key := c.Query("key")

	users, pagination, err := h.examineeService.OptionalPages(c.Request.Context(), batchID, key, page, perPage)
	if err != nil {
		failExaminee(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"users": users}, pagination)
}

// Import godoc
// POST /api/v1/admin/examinees/:batch_id/import
// Accepts a multipart .xlsx roster upload.
func (h *ExamineeHandler) Import(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}
	defer file.Close()

	result, err := h.examineeService.ImportRoster(c.Request.Context(), batchID, file)
	if err != nil {
		if errors.Is(err, service.ErrEmptyWorkbook) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		failExaminee(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

func failExaminee(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
