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

	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	jobmetrics "github.com/tallyerp/bookkeeping/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityVerifier re-checks the stored books of a company.
type IntegrityVerifier interface {
	Companies(ctx context.Context) ([]uuid.UUID, error)
	VerifyIntegrity(ctx context.Context, companyID uuid.UUID) (store.IntegrityReport, error)
}

// ErrIntegrityViolated is returned when a scan finds unbalanced books.
var ErrIntegrityViolated = errors.New("ledger integrity violated")

// LedgerIntegrityJob scans committed vouchers and the trial balance of every company.
type LedgerIntegrityJob struct {
	Books   IntegrityVerifier
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(books IntegrityVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Books:   books,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskLedgerIntegrity tasks. Violations fail the run without retry;
// the books will not fix themselves.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Books == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	logger := j.logger().With(slog.String("scope", scope(payload.CompanyID)))
	logger.Info("starting ledger integrity scan")

	companies, err := targets(ctx, j.Books, payload.CompanyID)
	if err != nil {
		resultErr = err
		logger.Error("load companies", slog.Any("error", err))
		return resultErr
	}

	var broken []string
	for _, companyID := range companies {
		report, err := j.Books.VerifyIntegrity(ctx, companyID)
		if err != nil {
			resultErr = fmt.Errorf("verify %s: %w", companyID, err)
			logger.Error("verify company", slog.String("company_id", companyID.String()), slog.Any("error", err))
			return resultErr
		}
		if report.OK() {
			continue
		}
		j.metrics().AddIntegrityProblems(companyID, len(report.Problems))
		for _, problem := range report.Problems {
			logger.Warn("ledger integrity problem",
				slog.String("company_id", companyID.String()),
				slog.String("problem", problem))
		}
		broken = append(broken, companyID.String())
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("companies", len(companies)),
		slog.Int("broken", len(broken)),
		slog.Duration("duration", j.now().Sub(start)))
	if len(broken) > 0 {
		resultErr = fmt.Errorf("%w in %d companies: %w", ErrIntegrityViolated, len(broken), asynq.SkipRetry)
	}
	return resultErr
}

func targets(ctx context.Context, books interface {
	Companies(ctx context.Context) ([]uuid.UUID, error)
}, companyID *uuid.UUID) ([]uuid.UUID, error) {
	if companyID != nil {
		return []uuid.UUID{*companyID}, nil
	}
	return books.Companies(ctx)
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
