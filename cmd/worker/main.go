// The worker binary drains PENDING extraction jobs from the database.
// It exists for restart recovery and multi-instance deployments: a job
// whose API instance died before dispatching is picked up here from the
// artifact store.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/koki-187/200-sub000/internal/adapter/repo"
	"github.com/koki-187/200-sub000/internal/domain"
	"github.com/koki-187/200-sub000/internal/infra"
	"github.com/koki-187/200-sub000/internal/ocr"
	"github.com/koki-187/200-sub000/internal/storage"
	"github.com/koki-187/200-sub000/internal/vision"
)

const jobPollInterval = 2 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	visionClient, err := vision.NewClient(vision.Options{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.GeminiModel,
		CallTimeout: cfg.VisionTimeout,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure vision client")
	}

	jobs := repo.NewJobRepository(pool)
	history := repo.NewHistoryRepository(pool)
	settings := repo.NewSettingsRepository(pool)

	workerPool := ocr.NewPool(cfg.WorkerPoolSize, visionClient, logger)
	orchestrator := ocr.NewOrchestrator(ctx, jobs, history, settings, fileStore, workerPool, logger)

	logger.Info().Str("model", visionClient.Model()).Msg("worker: started")
	if err := run(ctx, orchestrator, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func run(ctx context.Context, orchestrator *ocr.Orchestrator, logger infra.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := orchestrator.ProcessNext(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Error().Err(err).Msg("worker: failed to claim job")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jobPollInterval):
		}
	}
}
