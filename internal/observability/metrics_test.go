package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsCountCommits(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveCommit(accounting.VoucherSales, nil)
	metrics.ObserveCommit(accounting.VoucherSales, shared.NewValidationError("voucher is not balanced"))
	metrics.ObserveCommit("", &shared.ConflictError{Reason: "already reversed"})
	metrics.ObserveCommit(accounting.VoucherPayment, errors.New("boom"))

	body := scrape(t, metrics)
	assert.Contains(t, body, `bookkeeping_voucher_commits_total{result="ok",type="Sales"} 1`)
	assert.Contains(t, body, `bookkeeping_voucher_commits_total{result="invalid",type="Sales"} 1`)
	assert.Contains(t, body, `bookkeeping_voucher_commits_total{result="conflict",type="unknown"} 1`)
	assert.Contains(t, body, `bookkeeping_voucher_commits_total{result="error",type="Payment"} 1`)
}

func TestNilMetricsAreInert(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveCommit(accounting.VoucherJournal, nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/vouchers")

	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `bookkeeping_http_requests_total{code="418",route="/api/vouchers"} 1`)
	assert.Contains(t, body, `bookkeeping_http_request_duration_seconds_bucket{route="/api/vouchers"`)
}
