package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lexamine/lexam-backend/internal/response"
	"github.com/lexamine/lexam-backend/internal/service"
)

// ScoreHandler handles admin score endpoints.
type ScoreHandler struct {
	scoreService *service.ScoreService
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(scoreService *service.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService}
}

// Pages godoc
// GET /api/v1/admin/scores/:batch_id?key=&pass=&page=&per_page=
func (h *ScoreHandler) Pages(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	key := c.Query("key")

	var pass *bool
	if raw := c.Query("pass"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		pass = &v
	}

	rows, pagination, err := h.scoreService.Pages(c.Request.Context(), batchID, key, pass, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"scores": rows}, pagination)
}

// Detail godoc
// GET /api/v1/admin/scores/:batch_id/:user_id
// Returns the per-item breakdown of a graded paper.
func (h *ScoreHandler) Detail(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	detail, err := h.scoreService.GetDetail(c.Request.Context(), batchID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScoreNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotSubmittedCode)
		case errors.Is(err, service.ErrBatchNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"detail": detail})
}

// Export godoc
// GET /api/v1/admin/scores/:batch_id/export
// Streams an .xlsx workbook of passing candidates.
func (h *ScoreHandler) Export(c *gin.Context) {
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	f, err := h.scoreService.ExportPassing(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("passing-batch-%d.xlsx", batchID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Abort()
	}
}
