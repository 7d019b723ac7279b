package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/database"
	"github.com/codearena/codearena-backend/internal/handler"
	"github.com/codearena/codearena-backend/internal/logger"
	"github.com/codearena/codearena-backend/internal/repository"
	"github.com/codearena/codearena-backend/internal/router"
	"github.com/codearena/codearena-backend/internal/service"
	"github.com/codearena/codearena-backend/internal/validator"
	"github.com/codearena/codearena-backend/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting CodeArena Backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	contestRepo := repository.NewContestRepository(pool)
	problemRepo := repository.NewProblemRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// Services
	authService := service.NewAuthService(cfg, rdb, userRepo)
	contestService := service.NewContestService(contestRepo, problemRepo, rdb, log)
	proctorService := service.NewProctorService(contestService, rdb, log)
	monitorService := service.NewMonitorService(monitorRepo)

	// Handlers
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Contest:    handler.NewContestHandler(contestService),
		Problem:    handler.NewProblemHandler(contestService),
		Infraction: handler.NewInfractionHandler(proctorService, log),
		Webhook:    handler.NewWebhookHandler(contestService, cfg.JudgeWebhookToken, log),
		Monitor:    handler.NewMonitorHandler(rdb, contestService, monitorService, log),
		System:     handler.NewSystemHandler(rdb, log),
		WS:         handler.NewWSHandler(cfg, contestService, proctorService, log),
	}

	// Background workers drain the proctoring persistence queues.
	workerCtx, workerCancel := context.WithCancel(context.Background())

	infractionWorker := worker.NewInfractionWorker(pool, rdb, log)
	snapshotWorker := worker.NewSnapshotWorker(pool, rdb, log)

	go infractionWorker.Start(workerCtx)
	go snapshotWorker.Start(workerCtx)

	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
