package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/koki-187/200-sub000/internal/adapter/repo"
	"github.com/koki-187/200-sub000/internal/db"
	"github.com/koki-187/200-sub000/internal/http/handlers"
	"github.com/koki-187/200-sub000/internal/http/httpapi"
	"github.com/koki-187/200-sub000/internal/infra"
	"github.com/koki-187/200-sub000/internal/ocr"
	"github.com/koki-187/200-sub000/internal/storage"
	"github.com/koki-187/200-sub000/internal/vision"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("api: migrations failed")
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	visionClient, err := vision.NewClient(vision.Options{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.GeminiModel,
		CallTimeout: cfg.VisionTimeout,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure vision client")
	}

	jobs := repo.NewJobRepository(pool)
	history := repo.NewHistoryRepository(pool)
	settings := repo.NewSettingsRepository(pool)

	workerPool := ocr.NewPool(cfg.WorkerPoolSize, visionClient, logger)
	orchestrator := ocr.NewOrchestrator(ctx, jobs, history, settings, fileStore, workerPool, logger)

	app := handlers.NewApp(orchestrator, history, settings, logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: server stopped")
}
