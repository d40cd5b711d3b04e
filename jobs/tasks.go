package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity re-verifies the double-entry invariants of stored books.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportWarmup precomputes the cached reports of every company.
	TaskReportWarmup = "ledger:report_warmup"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// LedgerIntegrityPayload scopes an integrity scan. A nil company scans every company.
type LedgerIntegrityPayload struct {
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
}

// ReportWarmupPayload scopes a report warmup. A nil company warms every company.
type ReportWarmupPayload struct {
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
}

// IdempotencyCleanupPayload sets how long processed keys are retained.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewLedgerIntegrityTask constructs an integrity scan task.
func NewLedgerIntegrityTask(companyID *uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewReportWarmupTask constructs a report warmup task.
func NewReportWarmupTask(companyID *uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(ReportWarmupPayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

func scope(companyID *uuid.UUID) string {
	if companyID == nil {
		return "all"
	}
	return companyID.String()
}
