package resilience

import (
	"context"
	"sync"
	"time"

	"recipe-ingest/internal/core/checkpoint"
	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/pkg/common"
	"recipe-ingest/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Method 離線寫入的操作種類
type Method string

const (
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
)

const queueKey = "offline-queue"

// QueueItem 一筆延後的寫入
type QueueItem struct {
	ID         string        `json:"id"`
	Method     Method        `json:"method"`
	EntityName string        `json:"entity_name"`
	RecordID   string        `json:"record_id,omitempty"`
	Params     entity.Record `json:"params,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// FlushResult 重送結果
type FlushResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ReplayFunc 重送單筆寫入
type ReplayFunc func(ctx context.Context, item QueueItem) error

// OfflineQueue 依加入順序保存的寫入佇列，每個程序一個實例
type OfflineQueue struct {
	mu      sync.Mutex
	flushMu sync.Mutex
	store   *checkpoint.Store
	items   []QueueItem
	metrics *metrics.Collectors
}

// NewOfflineQueue 創建佇列並載入先前保存的項目
func NewOfflineQueue(ctx context.Context, store *checkpoint.Store, m *metrics.Collectors) *OfflineQueue {
	if m == nil {
		m = metrics.Noop()
	}
	q := &OfflineQueue{store: store, metrics: m}
	var items []QueueItem
	ok, err := store.Load(ctx, queueKey, &items)
	if err != nil {
		common.LogWarn("載入離線佇列失敗，以空佇列開始", zap.Error(err))
	}
	if ok {
		q.items = items
	}
	m.QueueLength.Set(float64(len(q.items)))
	return q
}

// Enqueue 加入佇列並保存
func (q *OfflineQueue) Enqueue(ctx context.Context, item QueueItem) error {
	if item.ID == "" {
		item.ID = common.GenerateUUID()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	err := q.persistLocked(ctx)
	n := len(q.items)
	q.mu.Unlock()

	q.metrics.QueueEnqueued.Inc()
	q.metrics.QueueLength.Set(float64(n))
	common.LogInfo("寫入已排入離線佇列",
		zap.String("id", item.ID),
		zap.String("method", string(item.Method)),
		zap.String("entity", item.EntityName),
		zap.Int("queue_length", n),
	)
	return err
}

// Pending 回傳佇列內容的副本
func (q *OfflineQueue) Pending() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len 佇列長度
func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush 依序逐筆重送；成功的移除，失敗的留在原位並計數，不會中斷其餘項目
func (q *OfflineQueue) Flush(ctx context.Context, replay ReplayFunc) FlushResult {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	var result FlushResult
	done := make(map[string]bool)
	for _, item := range q.Pending() {
		if ctx.Err() != nil {
			break
		}
		if err := replay(ctx, item); err != nil {
			result.Failed++
			q.metrics.QueueReplayed.WithLabelValues("failed").Inc()
			common.LogWarn("離線寫入重送失敗",
				zap.String("id", item.ID),
				zap.String("method", string(item.Method)),
				zap.String("entity", item.EntityName),
				zap.Error(err),
			)
			continue
		}
		result.Success++
		done[item.ID] = true
		q.metrics.QueueReplayed.WithLabelValues("success").Inc()
	}

	q.mu.Lock()
	remaining := q.items[:0:0]
	for _, item := range q.items {
		if !done[item.ID] {
			remaining = append(remaining, item)
		}
	}
	q.items = remaining
	err := q.persistLocked(ctx)
	n := len(q.items)
	q.mu.Unlock()

	q.metrics.QueueLength.Set(float64(n))
	if err != nil {
		common.LogError("保存離線佇列失敗", zap.Error(err))
	}
	if result.Success+result.Failed > 0 {
		common.LogInfo("離線佇列重送完成",
			zap.Int("success", result.Success),
			zap.Int("failed", result.Failed),
			zap.Int("remaining", n),
		)
	}
	return result
}

func (q *OfflineQueue) persistLocked(ctx context.Context) error {
	if len(q.items) == 0 {
		return q.store.Clear(ctx, queueKey)
	}
	return q.store.Save(ctx, queueKey, q.items)
}
