// Package postgres 以 jsonb 文件實作實體儲存
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/pkg/common"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	seq        BIGSERIAL,
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS entities_data_gin ON entities USING GIN (data jsonb_path_ops);
`

// Store 每個 collection 的紀錄存成一列 jsonb
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open 連線並建立資料表
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	common.LogInfo("Postgres 實體儲存已連線")
	return s, nil
}

// New 使用既有連線
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate 建立資料表與索引
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate entities: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string, sortBy string) ([]entity.Record, error) {
	const query = `SELECT data FROM entities WHERE collection = $1 ORDER BY seq`
	var docs []string
	if err := s.db.SelectContext(ctx, &docs, query, collection); err != nil {
		return nil, err
	}
	records, err := decodeAll(docs)
	if err != nil {
		return nil, err
	}
	entity.SortRecords(records, sortBy)
	return records, nil
}

// Filter 以 jsonb 包含運算比對欄位相等
func (s *Store) Filter(ctx context.Context, collection string, match entity.Record) ([]entity.Record, error) {
	const query = `SELECT data FROM entities WHERE collection = $1 AND data @> $2::jsonb ORDER BY seq`
	payload, err := json.Marshal(match)
	if err != nil {
		return nil, err
	}
	var docs []string
	if err := s.db.SelectContext(ctx, &docs, query, collection, string(payload)); err != nil {
		return nil, err
	}
	return decodeAll(docs)
}

func (s *Store) Get(ctx context.Context, collection string, id string) (entity.Record, error) {
	const query = `SELECT data FROM entities WHERE collection = $1 AND id = $2`
	var doc string
	if err := s.db.GetContext(ctx, &doc, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.Wrap(common.ErrNotFound, fmt.Errorf("%s %s", collection, id))
		}
		return nil, err
	}
	return decode(doc)
}

func (s *Store) Create(ctx context.Context, collection string, data entity.Record) (entity.Record, error) {
	rec := data.Clone()
	if rec.ID() == "" {
		rec["id"] = common.GenerateUUID()
	}
	rec["created_date"] = s.now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	const query = `INSERT INTO entities (collection, id, data) VALUES ($1, $2, $3::jsonb) RETURNING data`
	var doc string
	if err := s.db.GetContext(ctx, &doc, query, collection, rec.ID(), string(payload)); err != nil {
		if isConflict(err) {
			return nil, common.Wrap(common.ErrConflict, fmt.Errorf("%s %s", collection, rec.ID()))
		}
		return nil, err
	}
	return decode(doc)
}

// Update 以 jsonb 合併部分欄位，id 不可修改
func (s *Store) Update(ctx context.Context, collection string, id string, patch entity.Record) (entity.Record, error) {
	p := patch.Clone()
	delete(p, "id")
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	const query = `
		UPDATE entities SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING data`
	var doc string
	if err := s.db.GetContext(ctx, &doc, query, collection, id, string(payload)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.Wrap(common.ErrNotFound, fmt.Errorf("%s %s", collection, id))
		}
		return nil, err
	}
	return decode(doc)
}

func (s *Store) Delete(ctx context.Context, collection string, id string) error {
	const query = `DELETE FROM entities WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.Wrap(common.ErrNotFound, fmt.Errorf("%s %s", collection, id))
	}
	return nil
}

// Ping 檢查連線
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 關閉連線
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		common.LogWarn("關閉 Postgres 連線失敗", zap.Error(err))
		return err
	}
	return nil
}

func decode(doc string) (entity.Record, error) {
	var rec entity.Record
	if err := common.ParseJSON(doc, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}
	return rec, nil
}

func decodeAll(docs []string) ([]entity.Record, error) {
	out := make([]entity.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func isConflict(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
