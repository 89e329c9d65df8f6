package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/lms-backend/internal/middleware"
	"github.com/stemsi/lms-backend/internal/model"
	"github.com/stemsi/lms-backend/internal/response"
	"github.com/stemsi/lms-backend/internal/service"
	"github.com/stemsi/lms-backend/internal/validator"
)

// AttemptHandler handles the student-facing attempt endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// failAttemptError maps state-machine errors onto HTTP statuses and codes.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptAlreadyActive)
	case errors.Is(err, service.ErrAttemptLimitExceeded):
		response.Fail(c, http.StatusConflict, response.ErrAttemptLimit)
	case errors.Is(err, service.ErrNotActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	case errors.Is(err, service.ErrStaleAttempt):
		response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
	case errors.Is(err, service.ErrNotEnrolled):
		response.Fail(c, http.StatusForbidden, response.ErrNotEnrolled)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotFound)
	case errors.Is(err, service.ErrInvalidViolation):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidViolationType)
	default:
		response.Internal(c)
	}
}

// studentAttemptView strips grading detail a student must not see before the
// result is published: per-answer correctness and the aggregate score. The
// timing window and violation counters stay visible so the exam client can
// render its countdown and warning banner.
func studentAttemptView(a *model.ExamAttempt) *model.ExamAttempt {
	if a.ResultPublished {
		return a
	}

	view := *a
	view.ObtainedMarks = 0
	view.Percentage = 0
	view.Passed = false

	view.Answers = make([]model.Answer, len(a.Answers))
	for i, ans := range a.Answers {
		ans.IsCorrect = false
		ans.MarksObtained = 0
		ans.NeedsReview = false
		ans.GradedBy = nil
		ans.GradedAt = nil
		ans.GraderNote = nil
		view.Answers[i] = ans
	}
	return &view
}

func studentAttemptViews(attempts []model.ExamAttempt) []*model.ExamAttempt {
	views := make([]*model.ExamAttempt, len(attempts))
	for i := range attempts {
		views[i] = studentAttemptView(&attempts[i])
	}
	return views
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Creates a fresh attempt; rejected while another is active or the limit is hit.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": studentAttemptView(attempt)})
}

// GetActiveAttempt godoc
// GET /api/v1/student/exams/:exam_id/attempts/active
// Returns the student's open attempt so a reconnecting client can resume.
func (h *AttemptHandler) GetActiveAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.GetActiveAttempt(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": studentAttemptView(attempt)})
}

// ListMyAttempts godoc
// GET /api/v1/student/exams/:exam_id/attempts
// Returns the student's attempt history for the exam.
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempts, err := h.attemptService.GetStudentAttempts(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": studentAttemptViews(attempts)})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": studentAttemptView(attempt)})
}

// RecordAnswer godoc
// POST /api/v1/student/attempts/:attempt_id/answers
// Upserts one answer; the WebSocket stream is the preferred path, this is
// the fallback for clients that lost the socket.
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.RecordAnswer(c.Request.Context(), attemptID, claims.UserID, &req)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": studentAttemptView(attempt)})
}

// RecordViolation godoc
// POST /api/v1/student/attempts/:attempt_id/violations
// Appends a proctoring event. The response carries the updated status so the
// client learns immediately when the policy closed the attempt.
func (h *AttemptHandler) RecordViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.RecordViolation(c.Request.Context(), attemptID, claims.UserID, &req)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":           attempt.Status,
		"total_violations": attempt.TotalViolations,
	})
}

// Heartbeat godoc
// POST /api/v1/student/attempts/:attempt_id/heartbeat
func (h *AttemptHandler) Heartbeat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Heartbeat(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":            attempt.Status,
		"remaining_seconds": int(attempt.RemainingTime(*attempt.LastHeartbeat).Seconds()),
	})
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Idempotent: submitting an already-closed attempt returns its final state.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), attemptID, claims.UserID, "")
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": studentAttemptView(attempt)})
}
