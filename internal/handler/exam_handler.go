package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lexamine/lexam-backend/internal/middleware"
	"github.com/lexamine/lexam-backend/internal/model"
	"github.com/lexamine/lexam-backend/internal/response"
	"github.com/lexamine/lexam-backend/internal/service"
	"github.com/lexamine/lexam-backend/internal/validator"
)

// ExamHandler handles candidate-facing exam session endpoints.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// ListMyBatches godoc
// GET /api/v1/exam/batches
// Returns the candidate's approved, enabled, not-yet-ended batches.
func (h *ExamHandler) ListMyBatches(c *gin.Context) {
	claims := middleware.GetClaims(c)
	batches, err := h.examService.ListMyBatches(c.Request.Context(), claims.UserID)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batches": batches})
}

// ListJoinableBatches godoc
// GET /api/v1/exam/ebs
// Returns batches currently open for self-enrollment.
func (h *ExamHandler) ListJoinableBatches(c *gin.Context) {
	claims := middleware.GetClaims(c)
	batches, err := h.examService.ListJoinableBatches(c.Request.Context(), claims.UserID)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"batches": batches})
}

// Join godoc
// POST /api/v1/exam/join/:batch_id
func (h *ExamHandler) Join(c *gin.Context) {
	claims := middleware.GetClaims(c)
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	examinee, err := h.examService.Join(c.Request.Context(), claims.UserID, batchID)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"examinee": examinee})
}

// GetPaper godoc
// GET /api/v1/exam/papers/:batch_id
// Returns the candidate's assigned paper variant without the answer key.
func (h *ExamHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), claims.UserID, batchID)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// Start godoc
// POST /api/v1/exam/start/:batch_id
func (h *ExamHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	if err := h.examService.Start(c.Request.Context(), claims.UserID, batchID); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// SaveAnswer godoc
// POST /api/v1/exam/answers
// Saves one item's answer into the candidate's running session.
func (h *ExamHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.SaveAnswer(c.Request.Context(), claims.UserID, req.ID, req.Ans); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Submit godoc
// POST /api/v1/exam/submit/:batch_id
// Hands in the paper; an optional answers payload is persisted first when
// the end time has not passed.
func (h *ExamHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	batchID, ok := paramID(c, "batch_id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	if err := h.examService.Submit(c.Request.Context(), claims.UserID, batchID, req.Answers); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// failSession maps session lifecycle errors onto HTTP statuses and error
// codes.
func failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotEnrolled):
		response.Fail(c, http.StatusForbidden, response.ErrNotEnrolledCode)
	case errors.Is(err, service.ErrReviewPending):
		response.Fail(c, http.StatusForbidden, response.ErrReviewPendingCode)
	case errors.Is(err, service.ErrBatchStarted):
		response.Fail(c, http.StatusConflict, response.ErrBatchStartedCode)
	case errors.Is(err, service.ErrAlreadyJoined):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyJoinedCode)
	case errors.Is(err, service.ErrOutsideWindow):
		response.Fail(c, http.StatusForbidden, response.ErrOutsideWindowCode)
	case errors.Is(err, service.ErrExamNotStarted):
		response.Fail(c, http.StatusConflict, response.ErrExamNotStartedCode)
	case errors.Is(err, service.ErrExamClosed):
		response.Fail(c, http.StatusForbidden, response.ErrExamClosedCode)
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSessionCode)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmittedCode)
	case errors.Is(err, service.ErrSubmitWindowClosed):
		response.Fail(c, http.StatusForbidden, response.ErrSubmitWindowClosedCode)
	case errors.Is(err, service.ErrNoVariants):
		response.Fail(c, http.StatusConflict, response.ErrNoVariantsCode)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramID parses a positive integer path parameter, failing the request on
// bad input.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
