package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arcade_arena/internal/chain"
	"arcade_arena/internal/config"
	"arcade_arena/internal/db"
	httpServer "arcade_arena/internal/http"
	"arcade_arena/internal/http/handlers"
	"arcade_arena/internal/http/middleware"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/matchmaking"
	"arcade_arena/internal/repository"
	"arcade_arena/internal/service"
	"arcade_arena/internal/session"
	"arcade_arena/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	users := repository.NewUserRepository(dbPool)
	matches := repository.NewMatchRepository(dbPool)
	badges := repository.NewBadgeRepository(dbPool)

	ledger, err := chain.New(context.Background(), cfg.Chain)
	if err != nil {
		logger.Warn("chain ledger unavailable, settling off chain only", "error", err)
		ledger = chain.Nop{}
	}

	redisClient := middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	var cooldown service.Cooldown
	if redisClient != nil {
		defer redisClient.Close()
		cooldown = service.NewRedisCooldown(redisClient)
	}

	settlement := service.NewSettlementService(matches, users, badges, ledger)

	queue := matchmaking.New(users, matches, matchmaking.WithTimeout(cfg.QueueTimeout))
	runtime := session.NewRuntime(session.NewStore(), matches,
		session.WithForfeitGrace(cfg.DisconnectGrace),
		session.WithResultSink(settlement),
	)
	sockets := ws.NewHandler(queue, runtime, cfg.AllowedOrigin)

	h := &handlers.Handler{
		Users:      users,
		Matches:    matches,
		Badges:     badges,
		MatchSvc:   service.NewMatchService(matches, users),
		Settlement: settlement,
		Faucet:     service.NewFaucetService(ledger, cooldown, cfg.FaucetAmountWei, cfg.FaucetCooldown),
		Active:     sockets.Registry(),
	}
	health := handlers.NewHealthHandler(dbPool, runtime.Store(), sockets.Registry(), version)
	if p, ok := ledger.(handlers.Pinger); ok {
		health.WithDependency("ledger", p)
	}
	health.WithDependency("redis", handlers.PingFunc(func(ctx context.Context) error {
		if redisClient == nil {
			return errors.New("not configured, using in-process limits")
		}
		return redisClient.Ping(ctx).Err()
	}))

	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, cfg, h, health, sockets)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
