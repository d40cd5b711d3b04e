package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/tallyerp/bookkeeping/internal/jobs"
)

// ReportWarmer precomputes the cached reports of a company.
type ReportWarmer interface {
	Companies(ctx context.Context) ([]uuid.UUID, error)
	Warm(ctx context.Context, companyID uuid.UUID) error
}

// ReportWarmupJob pre-populates the report cache so first screens open instantly.
type ReportWarmupJob struct {
	Books   ReportWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(books ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Books: books, Logger: logger, Metrics: metrics, Timeout: 20 * time.Second}
}

// Handle processes TaskReportWarmup tasks. A company that fails to warm does not stop the others.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Books == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("scope", scope(payload.CompanyID)))
	logger.Info("starting report warmup")

	companies, err := targets(ctx, j.Books, payload.CompanyID)
	if err != nil {
		resultErr = err
		logger.Error("load companies", slog.Any("error", err))
		return resultErr
	}

	var errs []error
	for _, companyID := range companies {
		if err := j.warm(ctx, companyID); err != nil {
			logger.Error("warm company", slog.String("company_id", companyID.String()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("warm %s: %w", companyID, err))
		}
	}
	logger.Info("completed report warmup", slog.Int("companies", len(companies)), slog.Int("failed", len(errs)))
	resultErr = errors.Join(errs...)
	return resultErr
}

func (j *ReportWarmupJob) warm(ctx context.Context, companyID uuid.UUID) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	companyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return j.Books.Warm(companyCtx, companyID)
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
