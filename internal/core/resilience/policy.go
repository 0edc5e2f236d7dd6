package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"
)

// ErrOffline 呼叫端已知目前沒有網路連線
var ErrOffline = errors.New("network unreachable")

// Action 失敗後的處理方式
type Action int

const (
	// ActionRetry 等待退避時間後重試
	ActionRetry Action = iota
	// ActionFail 立即轉換成使用者可見的錯誤
	ActionFail
	// ActionQueue 寫入操作改排入離線佇列
	ActionQueue
	// ActionSurface 原樣回傳
	ActionSurface
)

// 失敗分類，同時作為 metrics label
const (
	ClassRateLimited    = "rate_limited"
	ClassServerError    = "server_error"
	ClassNetwork        = "network"
	ClassSessionExpired = "session_expired"
	ClassAccessDenied   = "access_denied"
	ClassCanceled       = "canceled"
	ClassOther          = "other"
)

// BackoffFunc 依已失敗的次數（從 0 起算）回傳等待時間
type BackoffFunc func(attempt int) time.Duration

// Rule 單一狀態碼的處理規則
type Rule struct {
	Class   string
	Action  Action
	Backoff BackoffFunc
	// Err 為 ActionFail 時回傳的錯誤
	Err *common.CustomError
}

// Policy 狀態碼 → 規則的查表
type Policy struct {
	rules        map[int]Rule
	networkRetry Rule
}

// NewPolicy 依設定建立預設規則表
func NewPolicy(cfg config.ResilienceConfig, jitter func(max time.Duration) time.Duration) *Policy {
	if jitter == nil {
		jitter = randomJitter
	}
	serverBase := orDefault(cfg.ServerErrorBase, time.Second)
	serverJitter := orDefault(cfg.ServerErrorJitter, time.Second)
	rateBase := orDefault(cfg.RateLimitBase, 5*time.Second)

	serverBackoff := func(attempt int) time.Duration {
		return serverBase*time.Duration(1<<attempt) + jitter(serverJitter)
	}
	rateBackoff := func(attempt int) time.Duration {
		return rateBase * time.Duration(1<<attempt)
	}
	server := Rule{Class: ClassServerError, Action: ActionRetry, Backoff: serverBackoff}

	return &Policy{
		rules: map[int]Rule{
			http.StatusTooManyRequests:    {Class: ClassRateLimited, Action: ActionRetry, Backoff: rateBackoff},
			http.StatusBadGateway:         server,
			http.StatusServiceUnavailable: server,
			http.StatusGatewayTimeout:     server,
			http.StatusUnauthorized:       {Class: ClassSessionExpired, Action: ActionFail, Err: common.ErrSessionExpired},
			http.StatusForbidden:          {Class: ClassAccessDenied, Action: ActionFail, Err: common.ErrAccessDenied},
		},
		networkRetry: Rule{Class: ClassNetwork, Action: ActionRetry, Backoff: serverBackoff},
	}
}

// Rule 取得狀態碼對應的規則
func (p *Policy) Rule(status int) (Rule, bool) {
	r, ok := p.rules[status]
	return r, ok
}

// Classify 判斷一次失敗該如何處理
func (p *Policy) Classify(err error, isWrite bool) Rule {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Rule{Class: ClassCanceled, Action: ActionSurface}
	}
	if IsNetworkError(err) {
		if isWrite {
			return Rule{Class: ClassNetwork, Action: ActionQueue}
		}
		return p.networkRetry
	}
	if status, ok := statusCode(err); ok {
		if r, ok := p.rules[status]; ok {
			return r
		}
	}
	return Rule{Class: ClassOther, Action: ActionSurface}
}

// IsNetworkError 判斷是否為連線層錯誤
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOffline) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func statusCode(err error) (int, bool) {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
