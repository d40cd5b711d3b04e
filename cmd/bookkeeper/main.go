package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	accountinghttp "github.com/tallyerp/bookkeeping/internal/accounting/http"
	"github.com/tallyerp/bookkeeping/internal/app"
	"github.com/tallyerp/bookkeeping/internal/observability"
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

	metrics := observability.NewMetrics()
	books.Service.WithObserver(metrics)
	if books.Redis != nil {
		jobClient, err := jobs.NewClient(cfg.AsynqRedis())
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		books.Service.WithWarmup(jobClient)
	}
	accountingHandler := accountinghttp.NewHandler(logger, books.Service)

	inspector := asynq.NewInspector(cfg.AsynqRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountingHandler: accountingHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
		Ready:             books.Ready,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
