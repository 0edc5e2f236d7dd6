package resilience

import (
	"context"
	"fmt"
	"time"

	"recipe-ingest/internal/pkg/common"
	"recipe-ingest/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Options 單次執行的選項
type Options struct {
	// Name 操作名稱，用於日誌
	Name string
	// Key 日誌防洪的分組，通常是 session id，空值時使用 Name
	Key string
	// IsWrite 寫入操作遇到斷線時改排入離線佇列
	IsWrite bool
	// MaxRetries 總嘗試次數，0 使用 Executor 預設值
	MaxRetries int
}

// Sleeper 可被 context 中斷的等待
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor 以規則表重試外部呼叫
type Executor struct {
	policy     *Policy
	maxRetries int
	sleep      Sleeper
	metrics    *metrics.Collectors
	guard      *common.FloodGuard
}

// ExecutorOption 設定 Executor
type ExecutorOption func(*Executor)

// WithSleeper 替換等待函式（測試用）
func WithSleeper(s Sleeper) ExecutorOption {
	return func(e *Executor) { e.sleep = s }
}

// WithMetrics 設定指標
func WithMetrics(m *metrics.Collectors) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithFloodGuard 設定日誌防洪器
func WithFloodGuard(g *common.FloodGuard) ExecutorOption {
	return func(e *Executor) { e.guard = g }
}

// NewExecutor 創建執行器，maxRetries <= 0 時預設 3 次
func NewExecutor(policy *Policy, maxRetries int, opts ...ExecutorOption) *Executor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	e := &Executor{
		policy:     policy,
		maxRetries: maxRetries,
		sleep:      sleepContext,
		metrics:    metrics.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute 執行 op，依規則重試；寫入操作斷線時回傳 ErrNetworkQueuedWrite
func Execute[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error), opts Options) (T, error) {
	var zero T
	attempts := opts.MaxRetries
	if attempts <= 0 {
		attempts = e.maxRetries
	}

	var lastErr error
	var lastRule Rule
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		rule := e.policy.Classify(err, opts.IsWrite)
		e.metrics.Attempts.WithLabelValues(rule.Class).Inc()
		e.logFailure(opts, attempt+1, attempts, rule, err)

		switch rule.Action {
		case ActionFail:
			return zero, common.Wrap(rule.Err, err)
		case ActionQueue:
			return zero, common.Wrap(common.ErrNetworkQueuedWrite, err)
		case ActionSurface:
			return zero, err
		}

		lastErr, lastRule = err, rule
		if attempt == attempts-1 {
			break
		}
		if err := e.sleep(ctx, rule.Backoff(attempt)); err != nil {
			return zero, err
		}
	}

	e.metrics.Exhausted.WithLabelValues(lastRule.Class).Inc()
	exhausted := common.Wrap(common.ErrRetryExhausted, fmt.Errorf("%s failed after %d attempts: %w", opts.Name, attempts, lastErr))
	if lastRule.Class == ClassRateLimited {
		return zero, common.Wrap(common.ErrRateLimited, exhausted)
	}
	return zero, exhausted
}

// Do 執行不需回傳值的操作
func (e *Executor) Do(ctx context.Context, op func(context.Context) error, opts Options) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts)
	return err
}

func (e *Executor) logFailure(opts Options, attempt, attempts int, rule Rule, err error) {
	key := opts.Key
	if key == "" {
		key = opts.Name
	}
	if !e.guard.Allow(key) {
		return
	}
	common.LogWarn("外部呼叫失敗",
		zap.String("operation", opts.Name),
		zap.String("key", key),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", attempts),
		zap.String("class", rule.Class),
		zap.Bool("is_write", opts.IsWrite),
		zap.Error(err),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
