package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountinghttp "github.com/tallyerp/bookkeeping/internal/accounting/http"
	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	"github.com/tallyerp/bookkeeping/internal/observability"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/jobs"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if prev, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, prev) })
		}
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "APP_ENV", "LOG_FORMAT", "RATE_LIMIT_PER_MINUTE", "REPORT_CACHE_TTL", "INTEGRITY_CRON")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, "0 2 * * *", cfg.IntegrityCron)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	unsetEnv(t, "APP_ENV", "REPORT_CACHE_TTL")
	t.Setenv("LOG_FORMAT", "xml")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")

	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-1")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_PER_MINUTE")

	t.Setenv("RATE_LIMIT_PER_MINUTE", "60")
	t.Setenv("APP_ENV", "staging")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV")
}

func TestEnvironmentSetsLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: EnvTest, LogFormat: "pretty"}, &buf)
	logger.Info("quiet under test")
	logger.Warn("still reported")
	assert.NotContains(t, buf.String(), "quiet under test")
	assert.Contains(t, buf.String(), "still reported")

	assert.Equal(t, slog.LevelInfo, EnvProduction.LogLevel())
	assert.Equal(t, slog.LevelDebug, EnvDevelopment.LogLevel())
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf).Info("posted", slog.String("voucher", "SAL/1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "posted", line["msg"])
	assert.Equal(t, "SAL/1", line["voucher"])
	assert.Equal(t, "production", line["env"])

	buf.Reset()
	logger := newLogger(&Config{AppEnv: "development", LogFormat: "pretty"}, &buf)
	logger.Debug("visible in development")
	assert.Contains(t, buf.String(), "visible in development")
}

func newTestRouter(t *testing.T, cfg *Config, ready func(*http.Request) error) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := store.NewService(store.NewMemoryRepository(), store.NewCache(client, time.Hour))
	svc.WithLogger(logger)
	metrics := observability.NewMetrics()
	svc.WithObserver(metrics)

	return NewRouter(RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountingHandler: accountinghttp.NewHandler(logger, svc),
		JobHandler:        jobs.NewHandler(nil, logger),
		Metrics:           metrics,
		Ready:             ready,
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthAndSecureHeaders(t *testing.T) {
	router := newTestRouter(t, &Config{AppEnv: "test", RateLimitPerMinute: 100}, nil)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, httpx.ProblemContentType, rr.Header().Get("Content-Type"))
}

func TestRouterReadinessFailure(t *testing.T) {
	router := newTestRouter(t, &Config{AppEnv: "test"}, func(*http.Request) error {
		return errors.New("pg down")
	})
	rr := serve(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "pg down")
}

func TestRouterMountsAPIAndMetrics(t *testing.T) {
	router := newTestRouter(t, &Config{AppEnv: "test", RateLimitPerMinute: 100}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger-groups/tree", nil)
	req.Header.Set(accountinghttp.HeaderCompanyID, uuid.NewString())
	rr := serve(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/api/ledger-groups/tree", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `bookkeeping_http_requests_total{code="200",route="/api/ledger-groups/tree"} 1`)
}

func TestRouterRateLimits(t *testing.T) {
	router := newTestRouter(t, &Config{AppEnv: "test", RateLimitPerMinute: 2}, nil)

	for range 2 {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, httpx.ProblemContentType, rr.Header().Get("Content-Type"))
}
