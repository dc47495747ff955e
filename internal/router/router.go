package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lumora/proctor-backend/internal/config"
	"github.com/lumora/proctor-backend/internal/handler"
	"github.com/lumora/proctor-backend/internal/middleware"
	"github.com/lumora/proctor-backend/internal/response"
	"github.com/lumora/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	Review  *handler.ReviewHandler
	Monitor *handler.MonitorHandler
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

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/reviewer/login", handlers.Auth.ReviewerLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/reviewer/me", middleware.RequireReviewerJWT(authService), handlers.Auth.GetReviewerProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/assessments", handlers.Session.ListAssessments)
		studentAPI.POST("/assessments/:assessment_id/sessions", handlers.Session.StartSession)
		studentAPI.GET("/assessments/:assessment_id/payload", handlers.Session.GetPayload)

		studentAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		studentAPI.POST("/sessions/:session_id/answers", handlers.Session.SubmitAnswer)
		studentAPI.POST("/sessions/:session_id/pause", handlers.Session.PauseSession)
		studentAPI.POST("/sessions/:session_id/resume", handlers.Session.ResumeSession)
		studentAPI.POST("/sessions/:session_id/submit", handlers.Session.SubmitSession)
		studentAPI.GET("/sessions/:session_id/result", handlers.Session.GetResult)
		studentAPI.POST("/sessions/:session_id/heartbeat", handlers.Session.Heartbeat)
		studentAPI.POST("/sessions/:session_id/events", handlers.Session.ReportEvent)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Review Group (Reviewer JWT) ────────────────────────────────
	reviewAPI := router.Group("/api/v1/review")
	reviewAPI.Use(middleware.RequireReviewerJWT(authService))
	{
		reviewAPI.GET("/sessions/flagged", handlers.Review.ListFlagged)
		reviewAPI.GET("/sessions/:session_id", handlers.Review.GetSessionDetail)
		reviewAPI.POST("/sessions/:session_id/flag", handlers.Review.FlagSession)
		reviewAPI.POST("/events/:event_id/review", handlers.Review.ReviewEvent)

		reviewAPI.GET("/assessments/:assessment_id/monitor", handlers.Monitor.MonitorAssessmentSSE)
		reviewAPI.GET("/assessments/:assessment_id/monitor/snapshot", handlers.Monitor.GetMonitorSnapshot)
	}

	return router
}
