package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKV 以 Redis 保存進度，ttl 為 0 時不過期
type RedisKV struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisKV 創建 Redis 鍵值儲存
func NewRedisKV(client *redis.Client, ttl time.Duration) *RedisKV {
	return &RedisKV{client: client, ttl: ttl}
}

func (r *RedisKV) Save(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisKV) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return data, err
}

func (r *RedisKV) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Ping 檢查 Redis 連線
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
