package jobmetrics

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("ledger:report_warmup").End(nil))
	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("ledger:integrity").End(boom))

	assert.Equal(t, 1.0, counterValue(t, reg, "bookkeeping_jobs_total", map[string]string{"job": "ledger:report_warmup", "status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "bookkeeping_jobs_total", map[string]string{"job": "ledger:integrity", "status": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "bookkeeping_job_failures_total", map[string]string{"job": "ledger:integrity"}))
}

func TestIntegrityProblemsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	company := uuid.New()

	m.AddIntegrityProblems(company, 3)
	m.AddIntegrityProblems(company, 0)

	assert.Equal(t, 3.0, counterValue(t, reg, "bookkeeping_ledger_integrity_problems_total", map[string]string{"company": company.String()}))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("x").End(boom))
	m.AddIntegrityProblems(uuid.New(), 1)
}
