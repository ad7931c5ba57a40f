package http

import (
	"arcade_arena/internal/config"
	"arcade_arena/internal/http/handlers"
	"arcade_arena/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sockets is the websocket surface: the lobby queue and the match channel.
type Sockets interface {
	Matchmaking(c *gin.Context)
	Game(c *gin.Context)
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, h *handlers.Handler, health *handlers.HealthHandler, sockets Sockets) {
	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSockets
	r.GET("/matchmaking", sockets.Matchmaking)
	r.GET("/game/:matchId", sockets.Game)

	api := r.Group("/api")
	api.Use(middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))
	registerAPIRoutes(api, h)
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler) {
	api.GET("/active-players", h.ActivePlayers)

	// Auth
	api.GET("/auth/message", h.LoginMessage)
	api.POST("/auth/login", h.Login)

	// User profile
	user := api.Group("/user")
	{
		user.GET("/profile", h.GetProfile)
		user.PUT("/profile", h.UpdateProfile)
		user.GET("/nft-badges", h.NFTBadges)
		user.GET("/match-history", h.MatchHistory)
	}

	api.GET("/leaderboard", h.GetLeaderboard)

	// Match records and settlement
	api.POST("/match/start", h.StartMatch)
	api.POST("/match/result", h.MatchResult)

	api.POST("/faucet/claim", middleware.JWT(), h.ClaimFaucet)
}
