package common

import "sync"

// FloodGuard 限制同一個 key 的日誌輸出次數，程序啟動時建立一次並注入使用者
type FloodGuard struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

// NewFloodGuard 創建日誌防洪器，limit <= 0 表示不限制
func NewFloodGuard(limit int) *FloodGuard {
	return &FloodGuard{
		limit:  limit,
		counts: make(map[string]int),
	}
}

// Allow 回報該 key 是否還能輸出日誌
func (g *FloodGuard) Allow(key string) bool {
	if g == nil || g.limit <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counts[key] >= g.limit {
		return false
	}
	g.counts[key]++
	return true
}

// Reset 清除該 key 的計數
func (g *FloodGuard) Reset(key string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	delete(g.counts, key)
	g.mu.Unlock()
}
