package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipe-ingest/internal/core/checkpoint"
	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	common.InitNopLogger()
}

// offlineStore 第一次寫入時模擬斷線
type offlineStore struct {
	*entity.MemoryStore
	offline bool
}

func (s *offlineStore) Create(ctx context.Context, collection string, data entity.Record) (entity.Record, error) {
	if s.offline {
		s.offline = false
		return nil, resilience.ErrOffline
	}
	return s.MemoryStore.Create(ctx, collection, data)
}

func newWriter(store entity.Store) *resilience.Writer {
	cp := checkpoint.NewStore(checkpoint.NewMemoryKV(), "test")
	exec := resilience.NewExecutor(resilience.NewPolicy(config.ResilienceConfig{}, nil), 1,
		resilience.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return resilience.NewWriter(exec, store, resilience.NewOfflineQueue(context.Background(), cp, nil))
}

func TestPendingAndFlush(t *testing.T) {
	store := &offlineStore{MemoryStore: entity.NewMemoryStore(), offline: true}
	writer := newWriter(store)

	rec, err := writer.Create(context.Background(), entity.CollectionRecipe, entity.Record{"title": "Suppe"})
	require.NoError(t, err)
	require.Nil(t, rec)

	r := gin.New()
	NewHandler(writer).Register(r.Group("/api/v1/offline"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/offline", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var pending PendingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Equal(t, 1, pending.Length)
	require.Equal(t, resilience.MethodCreate, pending.Items[0].Method)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/offline/flush", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var flushed FlushResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flushed))
	require.Equal(t, 1, flushed.Success)
	require.Zero(t, flushed.Remaining)

	records, err := store.List(context.Background(), entity.CollectionRecipe, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
}
