package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	jobmetrics "github.com/tallyerp/bookkeeping/internal/jobs"
)

type fakeBooks struct {
	mu        sync.Mutex
	companies []uuid.UUID
	reports   map[uuid.UUID]store.IntegrityReport
	warmErr   map[uuid.UUID]error
	warmed    []uuid.UUID
	listErr   error
}

func (f *fakeBooks) Companies(context.Context) ([]uuid.UUID, error) {
	return f.companies, f.listErr
}

func (f *fakeBooks) VerifyIntegrity(_ context.Context, companyID uuid.UUID) (store.IntegrityReport, error) {
	if r, ok := f.reports[companyID]; ok {
		return r, nil
	}
	return store.IntegrityReport{CompanyID: companyID, Problems: []string{}, TrialBalanced: true}, nil
}

func (f *fakeBooks) Warm(_ context.Context, companyID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmed = append(f.warmed, companyID)
	return f.warmErr[companyID]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestTaskConstructorsEncodeScope(t *testing.T) {
	companyID := uuid.New()
	task, err := NewLedgerIntegrityTask(&companyID)
	require.NoError(t, err)
	assert.Equal(t, TaskLedgerIntegrity, task.Type())

	var payload LedgerIntegrityPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.NotNil(t, payload.CompanyID)
	assert.Equal(t, companyID, *payload.CompanyID)

	all, err := NewReportWarmupTask(nil)
	require.NoError(t, err)
	assert.Equal(t, TaskReportWarmup, all.Type())
	assert.JSONEq(t, `{}`, string(all.Payload()))

	cleanup, err := NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TaskIdempotencyCleanup, cleanup.Type())
}

func TestLedgerIntegrityJobPassesCleanBooks(t *testing.T) {
	books := &fakeBooks{companies: []uuid.UUID{uuid.New(), uuid.New()}}
	job := NewLedgerIntegrityJob(books, quietLogger(), newMetrics())

	task, err := NewLedgerIntegrityTask(nil)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestLedgerIntegrityJobFailsWithoutRetryOnProblems(t *testing.T) {
	broken := uuid.New()
	books := &fakeBooks{
		companies: []uuid.UUID{uuid.New(), broken},
		reports: map[uuid.UUID]store.IntegrityReport{
			broken: {CompanyID: broken, Problems: []string{"SAL/1: Dr 10.00 does not equal Cr 9.00"}},
		},
	}
	job := NewLedgerIntegrityJob(books, quietLogger(), newMetrics())

	task, err := NewLedgerIntegrityTask(nil)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrityViolated)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLedgerIntegrityJobScopesToCompany(t *testing.T) {
	target := uuid.New()
	books := &fakeBooks{listErr: errors.New("must not list companies")}
	job := NewLedgerIntegrityJob(books, quietLogger(), newMetrics())

	task, err := NewLedgerIntegrityTask(&target)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestLedgerIntegrityJobRejectsBadPayload(t *testing.T) {
	job := NewLedgerIntegrityJob(&fakeBooks{}, quietLogger(), newMetrics())
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var unset *LedgerIntegrityJob
	assert.Error(t, unset.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil)))
}

func TestReportWarmupJobContinuesPastFailures(t *testing.T) {
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	books := &fakeBooks{
		companies: []uuid.UUID{first, second, third},
		warmErr:   map[uuid.UUID]error{second: errors.New("redis down")},
	}
	job := NewReportWarmupJob(books, quietLogger(), newMetrics())

	task, err := NewReportWarmupTask(nil)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Equal(t, []uuid.UUID{first, second, third}, books.warmed)
}

func TestReportWarmupJobPropagatesListError(t *testing.T) {
	books := &fakeBooks{listErr: errors.New("db down")}
	job := NewReportWarmupJob(books, quietLogger(), newMetrics())

	task, err := NewReportWarmupTask(nil)
	require.NoError(t, err)
	assert.EqualError(t, job.Handle(context.Background(), task), "db down")
	assert.Empty(t, books.warmed)
}

type fakeCleaner struct {
	retention time.Duration
	err       error
}

func (f *fakeCleaner) CleanupIdempotencyKeys(_ context.Context, retention time.Duration) error {
	f.retention = retention
	return f.err
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, quietLogger(), newMetrics())

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, DefaultIdempotencyRetention, cleaner.retention)

	cleaner.err = errors.New("locked")
	task, err = NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	assert.EqualError(t, job.Handle(context.Background(), task), "locked")
	assert.Equal(t, time.Hour, cleaner.retention)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, quietLogger()).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got QueueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, QueueHealth{Queue: QueueDefault}, got)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func TestJobsHealthReportsBacklog(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 2, Failed: 1}}, quietLogger()).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got QueueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, QueueHealth{Queue: QueueDefault, Pending: 4, Retry: 2, FailedToday: 1}, got)

	r = chi.NewRouter()
	NewHandler(fakeInspector{err: errors.New("redis down")}, quietLogger()).MountRoutes(r)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "redis down")
}

func TestWorkerConfigRegistersOnlyConfiguredJobs(t *testing.T) {
	books := &fakeBooks{}
	cfg := WorkerConfig{
		Integrity: NewLedgerIntegrityJob(books, quietLogger(), newMetrics()),
		Cleanup:   NewIdempotencyCleanupJob(&fakeCleaner{}, quietLogger(), newMetrics()),
		Schedule:  Schedule{Integrity: "0 2 * * *", Warmup: "*/30 * * * *", Retention: time.Hour},
	}
	handlers := cfg.handlers()
	assert.Len(t, handlers, 2)
	assert.Contains(t, handlers, TaskLedgerIntegrity)
	assert.Contains(t, handlers, TaskIdempotencyCleanup)

	entries, err := cfg.cronEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0 2 * * *", entries[0].cron)
	assert.Equal(t, TaskLedgerIntegrity, entries[0].task.Type())

	cfg.Schedule.Cleanup = "45 3 * * *"
	entries, err = cfg.cronEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	var payload IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(entries[1].task.Payload(), &payload))
	assert.Equal(t, time.Hour, payload.Retention)

	_, err = NewWorker(WorkerConfig{})
	require.Error(t, err)
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(asynq.RedisClientOpt{})
	require.Error(t, err)
}
