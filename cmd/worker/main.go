package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tallyerp/bookkeeping/internal/app"
	jobmetrics "github.com/tallyerp/bookkeeping/internal/jobs"
	"github.com/tallyerp/bookkeeping/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	books, err := app.OpenBooks(ctx, cfg, logger)
	if err != nil {
		logger.Error("open books", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := books.Close(); err != nil {
			logger.Warn("close books", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.AsynqRedis(),
		Logger:    logger,
		Integrity: jobs.NewLedgerIntegrityJob(books.Service, logger, metrics),
		Warmup:    jobs.NewReportWarmupJob(books.Service, logger, metrics),
		Cleanup:   jobs.NewIdempotencyCleanupJob(books.Repo, logger, metrics),
		Schedule: jobs.Schedule{
			Integrity: cfg.IntegrityCron,
			Warmup:    cfg.WarmupCron,
			Cleanup:   cfg.CleanupCron,
			Retention: cfg.IdempotencyRetention,
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("integrity_cron", cfg.IntegrityCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
