package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Schedule holds the cron expressions of the recurring book jobs. An empty
// expression leaves that job to on-demand enqueues.
type Schedule struct {
	Integrity string
	Warmup    string
	Cleanup   string
	Retention time.Duration
}

// WorkerConfig collects the book jobs and the queue they run on.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Integrity   *LedgerIntegrityJob
	Warmup      *ReportWarmupJob
	Cleanup     *IdempotencyCleanupJob
	Schedule    Schedule
}

// Worker processes book jobs and enqueues the scheduled ones.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

type cronEntry struct {
	cron string
	task *asynq.Task
	opts []asynq.Option
}

func (cfg WorkerConfig) handlers() map[string]asynq.HandlerFunc {
	out := make(map[string]asynq.HandlerFunc, 3)
	if cfg.Integrity != nil {
		out[TaskLedgerIntegrity] = cfg.Integrity.Handle
	}
	if cfg.Warmup != nil {
		out[TaskReportWarmup] = cfg.Warmup.Handle
	}
	if cfg.Cleanup != nil {
		out[TaskIdempotencyCleanup] = cfg.Cleanup.Handle
	}
	return out
}

// cronEntries lists the recurring tasks whose job is configured and scheduled.
func (cfg WorkerConfig) cronEntries() ([]cronEntry, error) {
	var out []cronEntry
	if cfg.Integrity != nil && cfg.Schedule.Integrity != "" {
		task, err := NewLedgerIntegrityTask(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, cronEntry{cfg.Schedule.Integrity, task, []asynq.Option{asynq.MaxRetry(3)}})
	}
	if cfg.Warmup != nil && cfg.Schedule.Warmup != "" {
		task, err := NewReportWarmupTask(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, cronEntry{cfg.Schedule.Warmup, task, []asynq.Option{asynq.MaxRetry(1)}})
	}
	if cfg.Cleanup != nil && cfg.Schedule.Cleanup != "" {
		task, err := NewIdempotencyCleanupTask(cfg.Schedule.Retention)
		if err != nil {
			return nil, err
		}
		out = append(out, cronEntry{cfg.Schedule.Cleanup, task, []asynq.Option{asynq.MaxRetry(3)}})
	}
	return out, nil
}

// NewWorker registers the configured jobs and their schedule.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	handlers := cfg.handlers()
	if len(handlers) == 0 {
		return nil, errors.New("jobs: no job configured")
	}
	w := &Worker{mux: asynq.NewServeMux(), logger: logger}
	for taskType, h := range handlers {
		w.mux.HandleFunc(taskType, h)
	}

	entries, err := cfg.cronEntries()
	if err != nil {
		return nil, fmt.Errorf("jobs: build scheduled task: %w", err)
	}
	if len(entries) > 0 {
		w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, e := range entries {
			if _, err := w.scheduler.Register(e.cron, e.task, e.opts...); err != nil {
				return nil, fmt.Errorf("jobs: schedule %s at %q: %w", e.task.Type(), e.cron, err)
			}
		}
	}

	w.server = asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:  concurrency,
		Queues:       map[string]int{QueueDefault: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(w.reportFailure),
	})
	return w, nil
}

// reportFailure logs a failed attempt, at error level once retries are exhausted.
func (w *Worker) reportFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	attrs := []any{
		slog.String("task", task.Type()),
		slog.Int("retried", retried),
		slog.Int("max_retry", maxRetry),
		slog.Any("error", err),
	}
	if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
		w.logger.ErrorContext(ctx, "job failed", attrs...)
		return
	}
	w.logger.WarnContext(ctx, "job attempt failed", attrs...)
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("jobs: worker not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
	}

	<-ctx.Done()
	w.logger.Info("stopping worker")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}
