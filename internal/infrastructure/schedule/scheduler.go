// Package schedule 週期性工作
package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"recipe-ingest/internal/pkg/common"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 排程工作
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// CronScheduler 以 cron 表達式執行工作，同一工作不會重疊執行
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
}

// NewCronScheduler 創建排程器，使用五欄位 cron 表達式
func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob 登記工作
func (c *CronScheduler) AddJob(job Job, spec string) error {
	entryID, err := c.cron.AddFunc(spec, c.wrap(job, spec))
	if err != nil {
		common.LogError("排程登記失敗", zap.String("job", job.Name()), zap.String("spec", spec), zap.Error(err))
		return err
	}
	c.entries[job.Name()] = entryID
	common.LogInfo("排程已登記", zap.String("job", job.Name()), zap.String("spec", spec))
	return nil
}

// Start 開始排程，ctx 會傳給每次執行
func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

// Stop 停止排程並等待執行中的工作
func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// RunNow 立即執行一次已登記的工作
func (c *CronScheduler) RunNow(name string) bool {
	id, ok := c.entries[name]
	if !ok {
		return false
	}
	entry := c.cron.Entry(id)
	if entry.Job == nil {
		return false
	}
	go entry.Job.Run()
	return true
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			common.LogDebug("工作仍在執行，略過本次", zap.String("job", job.Name()), zap.String("spec", spec))
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		start := time.Now()
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			common.LogError("工作執行失敗", zap.String("job", job.Name()), zap.Duration("duration", elapsed), zap.Error(err))
			return
		}
		common.LogDebug("工作執行完成", zap.String("job", job.Name()), zap.Duration("duration", elapsed))
	}
}
