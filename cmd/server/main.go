package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumora/proctor-backend/internal/config"
	"github.com/lumora/proctor-backend/internal/database"
	"github.com/lumora/proctor-backend/internal/handler"
	"github.com/lumora/proctor-backend/internal/logger"
	"github.com/lumora/proctor-backend/internal/repository"
	"github.com/lumora/proctor-backend/internal/router"
	"github.com/lumora/proctor-backend/internal/service"
	"github.com/lumora/proctor-backend/internal/validator"
	"github.com/lumora/proctor-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Proctor Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	eventRepo := repository.NewSecurityEventRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	assessmentService := service.NewAssessmentService(assessmentRepo, rdb, log)
	sessionService := service.NewSessionService(sessionRepo, attemptRepo, eventRepo, assessmentService, rdb, log)
	proctorService := service.NewProctorService(sessionRepo, sessionService, assessmentService, rdb,
		cfg.HeartbeatInterval, cfg.EventDebounce, log)
	monitorService := service.NewMonitorService(monitorRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, userRepo),
		Session: handler.NewSessionHandler(sessionService, assessmentService, proctorService),
		WS:      handler.NewWSHandler(sessionService, proctorService, cfg.EventDebounce, log, cfg.AllowedOrigins),
		Review:  handler.NewReviewHandler(sessionService, eventRepo),
		Monitor: handler.NewMonitorHandler(rdb, assessmentService, monitorService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	eventWorker := worker.NewEventWorker(eventRepo, rdb, log)
	heartbeatWorker := worker.NewHeartbeatWorker(pool, rdb, log)
	answerWorker := worker.NewAnswerWorker(pool, rdb, log)
	attemptWorker := worker.NewAttemptWorker(attemptRepo, rdb, log)
	sweepWorker := worker.NewSweepWorker(sessionService, sessionRepo, cfg.SweepInterval, log)

	go eventWorker.Start(workerCtx)
	go heartbeatWorker.Start(workerCtx)
	go answerWorker.Start(workerCtx)
	go attemptWorker.Start(workerCtx)
	go sweepWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published assessments into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := assessmentService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
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
