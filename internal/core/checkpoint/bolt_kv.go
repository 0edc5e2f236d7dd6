package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var checkpointBucket = []byte("checkpoints")

// BoltKV 以單一 bbolt 檔案保存進度，每次寫入為一個交易
type BoltKV struct {
	db *bolt.DB
}

// OpenBoltKV 開啟（必要時建立）資料庫檔案
func OpenBoltKV(path string) (*BoltKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init checkpoint bucket: %w", err)
	}
	return &BoltKV{db: db}, nil
}

func (b *BoltKV) Save(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Put([]byte(key), value)
	})
}

func (b *BoltKV) Load(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(checkpointBucket).Get([]byte(key))
		if v == nil {
			return ErrKeyNotFound
		}
		// v 只在交易內有效
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *BoltKV) Clear(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Delete([]byte(key))
	})
}

// Close 關閉資料庫檔案
func (b *BoltKV) Close() error {
	return b.db.Close()
}
