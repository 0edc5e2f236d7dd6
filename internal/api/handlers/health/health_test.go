package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"recipe-ingest/internal/core/ingest"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	common.InitNopLogger()
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthCheckReportsQueues(t *testing.T) {
	r := gin.New()
	NewHandler(Options{
		Version:      "1.2.3",
		BatchStatus:  func() *ingest.QueueStatus { return &ingest.QueueStatus{QueueLength: 2, Workers: 3} },
		OfflineQueue: func() int { return 4 },
		Online:       func() bool { return false },
	}).Register(r)

	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "degraded", resp.Status)
	require.Equal(t, "1.2.3", resp.Version)
	require.Equal(t, 2, resp.Queue.QueueLength)
	require.Equal(t, 4, resp.OfflineQueue)
	require.False(t, resp.Online)
}

func TestReadinessCheck(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	r := gin.New()
	NewHandler(Options{Probes: map[string]Probe{"store": healthy}}).Register(r)
	require.Equal(t, http.StatusOK, get(r, "/ready").Code)

	r = gin.New()
	NewHandler(Options{Probes: map[string]Probe{"store": healthy, "redis": down}}).Register(r)
	w := get(r, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Checks["store"])
	require.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestLivenessCheck(t *testing.T) {
	r := gin.New()
	NewHandler(Options{}).Register(r)
	require.Equal(t, http.StatusOK, get(r, "/live").Code)
}
