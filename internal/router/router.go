package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/lms-backend/internal/config"
	"github.com/stemsi/lms-backend/internal/handler"
	"github.com/stemsi/lms-backend/internal/middleware"
	"github.com/stemsi/lms-backend/internal/response"
	"github.com/stemsi/lms-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	Admin   *handler.AdminHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Heartbeats and violations are high-frequency client-generated writes;
	// cap them per student so a broken proctoring script cannot flood the
	// attempt row.
	proctorLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── 1. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.POST("/exams/:exam_id/attempts", handlers.Attempt.StartAttempt)
		studentAPI.GET("/exams/:exam_id/attempts", handlers.Attempt.ListMyAttempts)
		studentAPI.GET("/exams/:exam_id/attempts/active", handlers.Attempt.GetActiveAttempt)

		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		studentAPI.POST("/attempts/:attempt_id/answers", handlers.Attempt.RecordAnswer)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)

		studentAPI.POST("/attempts/:attempt_id/violations",
			proctorLimiter.Middleware(),
			handlers.Attempt.RecordViolation,
		)
		studentAPI.POST("/attempts/:attempt_id/heartbeat",
			proctorLimiter.Middleware(),
			handlers.Attempt.Heartbeat,
		)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/exams/:exam_id/attempts", handlers.Admin.ListExamAttempts)
		adminAPI.GET("/exams/:exam_id/stats", handlers.Admin.GetExamStats)

		adminAPI.GET("/attempts/:attempt_id", handlers.Admin.GetAttempt)
		adminAPI.POST("/attempts/:attempt_id/regrade", handlers.Admin.RegradeAnswer)
		adminAPI.POST("/attempts/:attempt_id/publish-result", handlers.Admin.PublishResult)

		adminAPI.POST("/certificates/evaluate", handlers.Admin.EvaluateCertificateEligibility)
		adminAPI.POST("/students/:student_id/reset-session", handlers.Admin.ResetStudentSession)
	}

	return router
}
