package resilience

import (
	"context"
	"errors"
	"fmt"

	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/pkg/common"
)

// Writer 經由 Executor 寫入實體儲存，斷線時排入離線佇列
type Writer struct {
	exec  *Executor
	store entity.Store
	queue *OfflineQueue
}

// NewWriter 創建寫入器
func NewWriter(exec *Executor, store entity.Store, queue *OfflineQueue) *Writer {
	return &Writer{exec: exec, store: store, queue: queue}
}

// Create 建立紀錄；排入佇列時回傳 nil, nil
func (w *Writer) Create(ctx context.Context, collection string, data entity.Record) (entity.Record, error) {
	rec, err := Execute(ctx, w.exec, func(ctx context.Context) (entity.Record, error) {
		return w.store.Create(ctx, collection, data)
	}, Options{Name: "create " + collection, IsWrite: true})
	return rec, w.deferIfOffline(ctx, err, QueueItem{Method: MethodCreate, EntityName: collection, Params: data})
}

// Update 更新紀錄；排入佇列時回傳 nil, nil
func (w *Writer) Update(ctx context.Context, collection string, id string, patch entity.Record) (entity.Record, error) {
	rec, err := Execute(ctx, w.exec, func(ctx context.Context) (entity.Record, error) {
		return w.store.Update(ctx, collection, id, patch)
	}, Options{Name: "update " + collection, IsWrite: true})
	return rec, w.deferIfOffline(ctx, err, QueueItem{Method: MethodUpdate, EntityName: collection, RecordID: id, Params: patch})
}

// Delete 刪除紀錄；排入佇列時回傳 nil
func (w *Writer) Delete(ctx context.Context, collection string, id string) error {
	err := w.exec.Do(ctx, func(ctx context.Context) error {
		return w.store.Delete(ctx, collection, id)
	}, Options{Name: "delete " + collection, IsWrite: true})
	return w.deferIfOffline(ctx, err, QueueItem{Method: MethodDelete, EntityName: collection, RecordID: id})
}

// Flush 重送離線佇列
func (w *Writer) Flush(ctx context.Context) FlushResult {
	return w.queue.Flush(ctx, w.replay)
}

// Pending 尚未重送的寫入
func (w *Writer) Pending() []QueueItem {
	return w.queue.Pending()
}

// Queue 取得離線佇列
func (w *Writer) Queue() *OfflineQueue {
	return w.queue
}

func (w *Writer) deferIfOffline(ctx context.Context, err error, item QueueItem) error {
	if err == nil || !errors.Is(err, common.ErrNetworkQueuedWrite) {
		return err
	}
	if qerr := w.queue.Enqueue(ctx, item); qerr != nil {
		return fmt.Errorf("failed to persist offline write: %w", qerr)
	}
	return nil
}

// replay 直接呼叫儲存，不經過重試與排隊
func (w *Writer) replay(ctx context.Context, item QueueItem) error {
	switch item.Method {
	case MethodCreate:
		_, err := w.store.Create(ctx, item.EntityName, item.Params)
		return err
	case MethodUpdate:
		_, err := w.store.Update(ctx, item.EntityName, item.RecordID, item.Params)
		return err
	case MethodDelete:
		return w.store.Delete(ctx, item.EntityName, item.RecordID)
	default:
		return fmt.Errorf("unknown offline method %q", item.Method)
	}
}
