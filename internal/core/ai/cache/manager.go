package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/pkg/common"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// CachedGenerator 以 LRU 快取相同請求的文字生成結果
type CachedGenerator struct {
	next   provider.TextGenerator
	cache  *expirable.LRU[string, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// Wrap 包裝文字生成器，size 或 ttl <= 0 時直接回傳原生成器
func Wrap(next provider.TextGenerator, size int, ttl time.Duration) provider.TextGenerator {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	common.LogInfo("快取管理員已初始化",
		zap.Int("最大容量", size),
		zap.Duration("存活時間", ttl),
	)
	return &CachedGenerator{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (c *CachedGenerator) Name() string {
	return c.next.Name()
}

// GenerateText 命中快取時不呼叫下游
func (c *CachedGenerator) GenerateText(ctx context.Context, req *provider.TextRequest) (string, error) {
	key := generateKey(req)
	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		common.LogDebug("快取命中", zap.String("鍵", key[:16]))
		return v, nil
	}
	c.misses.Add(1)

	out, err := c.next.GenerateText(ctx, req)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, out)
	return out, nil
}

// GetStats 獲取緩存統計信息
func (c *CachedGenerator) GetStats() map[string]interface{} {
	hits, misses := c.hits.Load(), c.misses.Load()
	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return map[string]interface{}{
		"size":      c.cache.Len(),
		"hits":      hits,
		"misses":    misses,
		"hit_ratio": ratio,
	}
}

// generateKey 以請求內容的 SHA-256 作為快取鍵
func generateKey(req *provider.TextRequest) string {
	data, _ := json.Marshal(req)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
