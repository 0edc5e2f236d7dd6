package resilience

import (
	"context"
	"sync/atomic"

	"recipe-ingest/internal/pkg/common"

	"go.uber.org/zap"
)

// ProbeFunc 檢查後端是否可連線
type ProbeFunc func(ctx context.Context) error

// Monitor 週期性檢查連線，恢復連線或佇列有積壓時重送
type Monitor struct {
	probe  ProbeFunc
	writer *Writer
	online atomic.Bool
}

// NewMonitor 創建連線監控
func NewMonitor(probe ProbeFunc, writer *Writer) *Monitor {
	m := &Monitor{probe: probe, writer: writer}
	m.online.Store(true)
	return m
}

// Name 排程名稱
func (m *Monitor) Name() string {
	return "offline-queue-flush"
}

// Online 最近一次檢查的結果
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Run 執行一次檢查
func (m *Monitor) Run(ctx context.Context) error {
	if m.probe != nil {
		if err := m.probe(ctx); err != nil {
			if m.online.Swap(false) {
				common.LogWarn("後端連線中斷", zap.Error(err))
			}
			return nil
		}
	}
	if !m.online.Swap(true) {
		common.LogInfo("後端連線恢復")
	}
	if m.writer.Queue().Len() == 0 {
		return nil
	}
	m.writer.Flush(ctx)
	return nil
}
