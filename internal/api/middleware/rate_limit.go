package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const defaultMaxClients = 10000

// bucket 單一客戶端的令牌桶
type bucket struct {
	tokens float64
	last   time.Time
}

// ClientLimiter 依客戶端 IP 各自計算令牌桶，閒置超過 window 的桶會被淘汰
type ClientLimiter struct {
	mu       sync.Mutex
	capacity float64
	interval time.Duration // 補充一個令牌所需時間
	buckets  *expirable.LRU[string, *bucket]
	now      func() time.Time
}

// NewClientLimiter 每個客戶端在 window 內最多 requests 次
func NewClientLimiter(requests int, window time.Duration, maxClients int) *ClientLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	return &ClientLimiter{
		capacity: float64(requests),
		interval: window / time.Duration(requests),
		buckets:  expirable.NewLRU[string, *bucket](maxClients, nil, window),
		now:      time.Now,
	}
}

// Allow 消耗 key 的一個令牌；不足時回傳下一個令牌的等待時間
func (l *ClientLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets.Get(key)
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
	}
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+float64(elapsed)/float64(l.interval))
	}
	b.last = now
	l.buckets.Add(key, b)

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1 - b.tokens) * float64(l.interval))
}

// Middleware 超出限制時回傳 429 與 Retry-After
func (l *ClientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, wait := l.Allow(ip)
		if ok {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		common.LogWarn("Rate limit exceeded",
			zap.String("ip", ip),
			zap.String("path", c.Request.URL.Path),
			zap.Int("retry_after", retryAfter),
		)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrorResponse{
			Code:    common.ErrCodeTooManyRequests,
			Message: common.ErrTooManyRequests.Message,
		})
	}
}
