package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/handler"
	"github.com/codearena/codearena-backend/internal/middleware"
	"github.com/codearena/codearena-backend/internal/response"
	"github.com/codearena/codearena-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Contest    *handler.ContestHandler
	Problem    *handler.ProblemHandler
	Infraction *handler.InfractionHandler
	Webhook    *handler.WebhookHandler
	Monitor    *handler.MonitorHandler
	System     *handler.SystemHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// CORS: restrict to the configured origin list, or allow all so dev
	// works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Webhook-Token"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID middleware runs globally so every response carries metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for credential and entry-code guessing surfaces.
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Auth group (public, rate limited).
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireParticipantJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireParticipantJWT(authService), handlers.Auth.Me)
	}

	// Participant group (JWT + single device).
	participantAPI := router.Group("/api/v1")
	participantAPI.Use(
		middleware.RequireParticipantJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		participantAPI.GET("/contests/:contest_id", handlers.Contest.GetContest)
		participantAPI.POST("/contests/:contest_id/join", authLimiter.Middleware(), handlers.Contest.JoinContest)
		participantAPI.POST("/contests/:contest_id/submit", handlers.Contest.SubmitContest)
		participantAPI.GET("/contests/:contest_id/leaderboard", handlers.Contest.GetLeaderboard)
		participantAPI.GET("/contests/:contest_id/remaining", handlers.Contest.GetTimeRemaining)

		// Problem statements never change mid-contest; let browsers cache them.
		participantAPI.GET("/problems/:short_id", middleware.CacheControl(300), handlers.Problem.GetProblem)

		participantAPI.POST("/proctor/snapshots", handlers.Infraction.LogSnapshot)
		participantAPI.POST("/proctor/infractions", handlers.Infraction.LogPracticeInfraction)
	}

	// WebSocket group (participant WS auth via ?token=).
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireParticipantWSAuth(authService))
	{
		ws.GET("/proctor/stream", handlers.WS.ProctorStream)
	}

	// Host group.
	hostAPI := router.Group("/api/v1/host")
	hostAPI.Use(middleware.RequireHostJWT(authService))
	{
		hostAPI.GET("/contests/:contest_id/monitor", handlers.Monitor.MonitorContestSSE)
		hostAPI.POST("/contests/:contest_id/participants/:user_id/disqualify", handlers.Contest.DisqualifyParticipant)
		hostAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	// Machine peers.
	webhooks := router.Group("/api/v1/webhooks")
	{
		webhooks.POST("/judge", handlers.Webhook.JudgeResult)
	}

	return router
}
