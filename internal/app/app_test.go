package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_LOCK_TIMEOUT", "2s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.LedgerLockTimeout)
	require.Equal(t, 3, cfg.LedgerRetryAttempts)
	require.Equal(t, 24*time.Hour, cfg.LedgerIdempotencyTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsZeroAttempts(t *testing.T) {
	t.Setenv("LEDGER_RETRY_ATTEMPTS", "0")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn", AppEnv: "test"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "correlative", "M000000001")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["msg"])
	require.Equal(t, "odyssey-ledger", line["service"])
	require.Equal(t, "M000000001", line["correlative"])
}

func TestRouterHealthAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Logger:  newLogger(nil, &bytes.Buffer{}),
		Config:  &Config{AppEnv: "test"},
		Metrics: metrics,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "ledger_http_requests_total")
}
