package resilience

import (
	"context"
	"errors"
	"testing"

	"recipe-ingest/internal/core/checkpoint"
	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/pkg/metrics"

	"github.com/stretchr/testify/require"
)

// flakyStore 包裝記憶體儲存，可模擬斷線與指定紀錄寫入失敗
type flakyStore struct {
	*entity.MemoryStore
	offline bool
	reject  map[string]bool
}

func (f *flakyStore) Create(ctx context.Context, collection string, data entity.Record) (entity.Record, error) {
	if f.offline {
		return nil, ErrOffline
	}
	if title, _ := data["title"].(string); f.reject[title] {
		return nil, errors.New("rejected")
	}
	return f.MemoryStore.Create(ctx, collection, data)
}

func newTestWriter(t *testing.T, store entity.Store) (*Writer, *checkpoint.Store) {
	t.Helper()
	cp := checkpoint.NewStore(checkpoint.NewMemoryKV(), "test")
	queue := NewOfflineQueue(context.Background(), cp, metrics.Noop())
	return NewWriter(newTestExecutor(&recordingSleeper{}), store, queue), cp
}

func TestWriterQueuesWhenOffline(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: entity.NewMemoryStore(), offline: true}
	w, _ := newTestWriter(t, store)

	rec, err := w.Create(ctx, entity.CollectionRecipe, entity.Record{"title": "A"})
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Equal(t, 1, w.Queue().Len())

	store.offline = false
	res := w.Flush(ctx)
	require.Equal(t, FlushResult{Success: 1}, res)
	require.Zero(t, w.Queue().Len())

	all, err := store.List(ctx, entity.CollectionRecipe, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestFlushKeepsOrderAndFailedItems(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: entity.NewMemoryStore(), offline: true, reject: map[string]bool{"B": true}}
	w, _ := newTestWriter(t, store)

	for _, title := range []string{"A", "B", "C"} {
		_, err := w.Create(ctx, entity.CollectionRecipe, entity.Record{"title": title})
		require.NoError(t, err)
	}
	require.Equal(t, 3, w.Queue().Len())

	store.offline = false
	res := w.Flush(ctx)
	require.Equal(t, FlushResult{Success: 2, Failed: 1}, res)

	pending := w.Queue().Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "B", pending[0].Params["title"])

	all, err := store.List(ctx, entity.CollectionRecipe, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "A", all[0]["title"])
	require.Equal(t, "C", all[1]["title"])
}

func TestOfflineQueueSurvivesReload(t *testing.T) {
	ctx := context.Background()
	cp := checkpoint.NewStore(checkpoint.NewMemoryKV(), "test")

	q := NewOfflineQueue(ctx, cp, nil)
	require.NoError(t, q.Enqueue(ctx, QueueItem{Method: MethodDelete, EntityName: entity.CollectionRecipe, RecordID: "r1"}))
	require.NoError(t, q.Enqueue(ctx, QueueItem{Method: MethodDelete, EntityName: entity.CollectionRecipe, RecordID: "r2"}))

	reloaded := NewOfflineQueue(ctx, cp, nil)
	pending := reloaded.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, "r1", pending[0].RecordID)
	require.Equal(t, "r2", pending[1].RecordID)
}

func TestMonitorFlushesOnReconnect(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: entity.NewMemoryStore(), offline: true}
	w, _ := newTestWriter(t, store)
	_, err := w.Create(ctx, entity.CollectionRecipe, entity.Record{"title": "A"})
	require.NoError(t, err)

	probe := func(context.Context) error {
		if store.offline {
			return ErrOffline
		}
		return nil
	}
	m := NewMonitor(probe, w)

	require.NoError(t, m.Run(ctx))
	require.False(t, m.Online())
	require.Equal(t, 1, w.Queue().Len())

	store.offline = false
	require.NoError(t, m.Run(ctx))
	require.True(t, m.Online())
	require.Zero(t, w.Queue().Len())
}
