package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/lms-backend/internal/middleware"
	"github.com/stemsi/lms-backend/internal/model"
	"github.com/stemsi/lms-backend/internal/response"
	"github.com/stemsi/lms-backend/internal/service"
	"github.com/stemsi/lms-backend/internal/validator"
)

// AdminHandler handles the admin/grader surface: attempt review, manual
// grading, result publishing, exam statistics, and certificate evaluation.
type AdminHandler struct {
	attemptService     *service.AttemptService
	certificateService *service.CertificateService
	authService        *service.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	attemptService *service.AttemptService,
	certificateService *service.CertificateService,
	authService *service.AuthService,
) *AdminHandler {
	return &AdminHandler{
		attemptService:     attemptService,
		certificateService: certificateService,
		authService:        authService,
	}
}

// ListExamAttempts godoc
// GET /api/v1/admin/exams/:exam_id/attempts?page=1&per_page=20
func (h *AdminHandler) ListExamAttempts(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	attempts, total, err := h.attemptService.ListExamAttempts(c.Request.Context(), examID, page, perPage)
	if err != nil {
		response.Internal(c)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// GetExamStats godoc
// GET /api/v1/admin/exams/:exam_id/stats
func (h *AdminHandler) GetExamStats(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stats, err := h.attemptService.GetExamStats(c.Request.Context(), examID)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// GetAttempt godoc
// GET /api/v1/admin/attempts/:attempt_id
// Full unredacted attempt, including the violation ledger and grading detail.
func (h *AdminHandler) GetAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), attemptID, 0)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// RegradeAnswer godoc
// POST /api/v1/admin/attempts/:attempt_id/regrade
// Manual grading of an essay/file answer on a submitted attempt.
func (h *AdminHandler) RegradeAnswer(c *gin.Context) {
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

	var req model.RegradeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.RegradeAnswer(c.Request.Context(), attemptID, claims.UserID, &req)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// PublishResult godoc
// POST /api/v1/admin/attempts/:attempt_id/publish-result
func (h *AdminHandler) PublishResult(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.PublishResult(c.Request.Context(), attemptID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// EvaluateCertificateEligibility godoc
// POST /api/v1/admin/certificates/evaluate
// Pure policy evaluation; issuance stays with the course collaborator.
func (h *AdminHandler) EvaluateCertificateEligibility(c *gin.Context) {
	var req model.EvaluateEligibilityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result := h.certificateService.EvaluateEligibility(req.Policy, req.Standing)
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:student_id/reset-session
// Clears the single-device session lock so a student can log in again.
func (h *AdminHandler) ResetStudentSession(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil || studentID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
