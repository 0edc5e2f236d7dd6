package checkpoint

import (
	"context"
	"errors"
	"sync"
)

// ErrKeyNotFound 指定的 key 不存在
var ErrKeyNotFound = errors.New("checkpoint: key not found")

// KV 命名空間內的簡單鍵值儲存
type KV interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Clear(ctx context.Context, key string) error
}

// MemoryKV 行程內的鍵值儲存，重啟後資料消失
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV 創建記憶體鍵值儲存
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Save(_ context.Context, key string, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.mu.Lock()
	m.data[key] = buf
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf, nil
}

func (m *MemoryKV) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
