package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"recipe-ingest/internal/pkg/common"
)

// Store 以 JSON 保存快照，key 會加上命名空間前綴
type Store struct {
	kv        KV
	namespace string
}

// NewStore 創建進度儲存
func NewStore(kv KV, namespace string) *Store {
	return &Store{kv: kv, namespace: namespace}
}

func (s *Store) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

// Save 覆寫 key 的快照
func (s *Store) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", key, err)
	}
	return s.kv.Save(ctx, s.key(key), data)
}

// Load 讀取快照到 dst，不存在時回傳 false
func (s *Store) Load(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.kv.Load(ctx, s.key(key))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := common.ParseJSONBytes(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode checkpoint %s: %w", key, err)
	}
	return true, nil
}

// Clear 刪除快照
func (s *Store) Clear(ctx context.Context, key string) error {
	return s.kv.Clear(ctx, s.key(key))
}
