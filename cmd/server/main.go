package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexamine/lexam-backend/internal/config"
	"github.com/lexamine/lexam-backend/internal/database"
	"github.com/lexamine/lexam-backend/internal/handler"
	"github.com/lexamine/lexam-backend/internal/logger"
	"github.com/lexamine/lexam-backend/internal/repository"
	"github.com/lexamine/lexam-backend/internal/router"
	"github.com/lexamine/lexam-backend/internal/service"
	"github.com/lexamine/lexam-backend/internal/validator"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Lexam Backend")

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

	// Repositories.
	userRepo := repository.NewUserRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	batchRepo := repository.NewBatchRepository(pool)
	examineeRepo := repository.NewExamineeRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	scoreRepo := repository.NewScoreRepository(pool)
	paperRepo := repository.NewPaperRepository(pool)

	// Services.
	authService := service.NewAuthService(cfg, rdb)
	scoreService := service.NewScoreService(
		batchRepo, examineeRepo, answerRepo, paperRepo, scoreRepo,
		scoreRepo, userRepo, cfg, log,
	)
	examService := service.NewExamService(
		batchRepo, examineeRepo, answerRepo, paperRepo, scoreService,
		rdb, cfg, log, time.Now, rand.Intn,
	)
	batchService := service.NewBatchService(batchRepo, paperRepo, log, time.Now)
	examineeService := service.NewExamineeService(examineeRepo, userRepo, batchRepo, authService, log)

	// Handlers.
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, userRepo, adminRepo),
		Exam:     handler.NewExamHandler(examService),
		Batch:    handler.NewBatchHandler(batchService),
		Examinee: handler.NewExamineeHandler(examineeService),
		Score:    handler.NewScoreHandler(scoreService),
	}

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
