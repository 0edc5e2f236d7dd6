package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/pkg/common"

	"go.uber.org/zap"
)

// ItemStatus 批次項目狀態
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemRunning ItemStatus = "running"
	ItemReady   ItemStatus = "ready"
	ItemFailed  ItemStatus = "failed"
)

// BatchItem 批次中的單一來源，各自擁有 checkpoint
type BatchItem struct {
	Index     int        `json:"index"`
	SessionID string     `json:"session_id"`
	Kind      string     `json:"kind"`
	Status    ItemStatus `json:"status"`
	Stage     Stage      `json:"stage,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Batch 批次匯入
type Batch struct {
	ID    string      `json:"id"`
	Items []BatchItem `json:"items"`
}

// QueueStatus 隊列狀態
type QueueStatus struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Starter 批次使用的匯入入口
type Starter interface {
	Start(ctx context.Context, sessionID string, src *source.RawSource) (*State, error)
}

type job struct {
	batchID string
	index   int
	src     *source.RawSource
}

// BatchRunner 以固定數量的 worker 執行批次匯入
type BatchRunner struct {
	pipeline  Starter
	workers   int
	maxSize   int
	queue     chan *job
	done      chan struct{}
	wg        sync.WaitGroup
	processed int64
	closeOnce sync.Once

	mu      sync.RWMutex
	batches map[string]*Batch
}

// NewBatchRunner 創建批次執行器
func NewBatchRunner(pipeline Starter, workers, maxSize int) *BatchRunner {
	if workers <= 0 {
		workers = 3
	}
	if maxSize <= 0 {
		maxSize = 50
	}
	return &BatchRunner{
		pipeline: pipeline,
		workers:  workers,
		maxSize:  maxSize,
		queue:    make(chan *job, maxSize),
		done:     make(chan struct{}),
		batches:  make(map[string]*Batch),
	}
}

// Start 啟動 worker，ctx 結束或 Close 時停止
func (r *BatchRunner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	common.LogInfo("批次匯入已啟動", zap.Int("workers", r.workers), zap.Int("max_queue_size", r.maxSize))
}

func (r *BatchRunner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case j := <-r.queue:
			r.process(ctx, j)
		}
	}
}

func (r *BatchRunner) process(ctx context.Context, j *job) {
	sessionID := itemSessionID(j.batchID, j.index)
	r.update(j.batchID, j.index, func(it *BatchItem) { it.Status = ItemRunning })
	defer atomic.AddInt64(&r.processed, 1)

	state, err := r.pipeline.Start(ctx, sessionID, j.src)
	if err != nil {
		common.LogWarn("批次項目失敗", zap.String("batch", j.batchID), zap.Int("index", j.index), zap.Error(err))
		r.update(j.batchID, j.index, func(it *BatchItem) {
			it.Status = ItemFailed
			it.Error = err.Error()
		})
		return
	}
	r.update(j.batchID, j.index, func(it *BatchItem) {
		it.Status = ItemReady
		it.Stage = state.Stage
	})
}

// Submit 將多個來源加入隊列；容量不足時整批拒絕
func (r *BatchRunner) Submit(ctx context.Context, sources []*source.RawSource) (*Batch, error) {
	if len(sources) == 0 {
		return nil, common.Wrap(common.ErrInvalidRequest, errors.New("batch is empty"))
	}
	select {
	case <-r.done:
		return nil, common.Wrap(common.ErrServiceUnavailable, errors.New("batch runner is closed"))
	default:
	}
	if len(r.queue)+len(sources) > r.maxSize {
		return nil, common.Wrap(common.ErrTooManyRequests, fmt.Errorf("queue is full (%d/%d)", len(r.queue), r.maxSize))
	}

	batch := &Batch{ID: common.GenerateUUID(), Items: make([]BatchItem, len(sources))}
	for i, src := range sources {
		batch.Items[i] = BatchItem{Index: i, SessionID: itemSessionID(batch.ID, i), Kind: string(src.Kind), Status: ItemPending}
	}
	r.mu.Lock()
	r.batches[batch.ID] = batch
	r.mu.Unlock()

	for i, src := range sources {
		select {
		case r.queue <- &job{batchID: batch.ID, index: i, src: src}:
		case <-ctx.Done():
			r.markUnqueued(batch.ID, i, ctx.Err())
			return r.Batch(batch.ID)
		case <-r.done:
			r.markUnqueued(batch.ID, i, errors.New("batch runner is closed"))
			return r.Batch(batch.ID)
		}
	}
	common.LogInfo("批次已加入隊列",
		zap.String("batch", batch.ID),
		zap.Int("items", len(sources)),
		zap.Int("queue_length", len(r.queue)),
	)
	return r.Batch(batch.ID)
}

func (r *BatchRunner) markUnqueued(batchID string, from int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.batches[batchID]
	for i := from; i < len(b.Items); i++ {
		b.Items[i].Status = ItemFailed
		b.Items[i].Error = err.Error()
	}
}

// Batch 回傳批次狀態的複本
func (r *BatchRunner) Batch(id string) (*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, common.Wrap(common.ErrNotFound, fmt.Errorf("batch %s", id))
	}
	out := &Batch{ID: b.ID, Items: make([]BatchItem, len(b.Items))}
	copy(out.Items, b.Items)
	return out, nil
}

// Status 獲取隊列狀態
func (r *BatchRunner) Status() *QueueStatus {
	return &QueueStatus{
		QueueLength:    len(r.queue),
		ProcessedCount: int(atomic.LoadInt64(&r.processed)),
		MaxQueueSize:   r.maxSize,
		Workers:        r.workers,
	}
}

// Close 停止接收並等待 worker 結束
func (r *BatchRunner) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *BatchRunner) update(batchID string, index int, fn func(*BatchItem)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[batchID]; ok && index < len(b.Items) {
		fn(&b.Items[index])
	}
}

func itemSessionID(batchID string, index int) string {
	return fmt.Sprintf("%s:%d", batchID, index)
}
