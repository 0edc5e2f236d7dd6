package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"recipe-ingest/internal/pkg/common"
)

// Record 一筆實體資料，id 存放在 "id" 欄位
type Record map[string]any

// ID 取得紀錄 id
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Clone 淺拷貝
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// 集合名稱
const (
	CollectionRecipe          = "Recipe"
	CollectionIngredientPhoto = "IngredientPhoto"
	CollectionCategory        = "Category"
)

// Store 依集合名稱的 CRUD 服務
type Store interface {
	// List 依 sort 排序回傳整個集合，sort 為欄位名稱，前綴 "-" 表示遞減，空字串保留建立順序
	List(ctx context.Context, collection string, sortBy string) ([]Record, error)
	// Filter 回傳所有欄位值與 match 相等的紀錄
	Filter(ctx context.Context, collection string, match Record) ([]Record, error)
	Get(ctx context.Context, collection string, id string) (Record, error)
	Create(ctx context.Context, collection string, data Record) (Record, error)
	Update(ctx context.Context, collection string, id string, patch Record) (Record, error)
	Delete(ctx context.Context, collection string, id string) error
}

// Pinger 可檢查連線的儲存
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryStore 行程內的實體儲存，保留建立順序
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Record
	now         func() time.Time
}

// NewMemoryStore 創建記憶體實體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Record),
		now:         time.Now,
	}
}

func (m *MemoryStore) List(_ context.Context, collection string, sortBy string) ([]Record, error) {
	m.mu.RLock()
	out := cloneAll(m.collections[collection])
	m.mu.RUnlock()
	SortRecords(out, sortBy)
	return out, nil
}

func (m *MemoryStore) Filter(_ context.Context, collection string, match Record) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.collections[collection] {
		if Matches(r, match) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, collection string, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.collections[collection] {
		if r.ID() == id {
			return r.Clone(), nil
		}
	}
	return nil, common.Wrap(common.ErrNotFound, fmt.Errorf("%s %s", collection, id))
}

func (m *MemoryStore) Create(_ context.Context, collection string, data Record) (Record, error) {
	r := data.Clone()
	if r.ID() == "" {
		r["id"] = common.GenerateUUID()
	}
	r["created_date"] = m.now().UTC().Format(time.RFC3339Nano)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], r)
	return r.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, collection string, id string, patch Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.collections[collection] {
		if r.ID() != id {
			continue
		}
		updated := r.Clone()
		for k, v := range patch {
			if k == "id" {
				continue
			}
			updated[k] = v
		}
		m.collections[collection][i] = updated
		return updated.Clone(), nil
	}
	return nil, common.Wrap(common.ErrNotFound, fmt.Errorf("%s %s", collection, id))
}

func (m *MemoryStore) Delete(_ context.Context, collection string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.collections[collection]
	for i, r := range records {
		if r.ID() == id {
			m.collections[collection] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return common.Wrap(common.ErrNotFound, fmt.Errorf("%s %s", collection, id))
}

// Ping 記憶體儲存永遠可用
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Matches 檢查 r 的欄位是否等於 match 中所有欄位
func Matches(r Record, match Record) bool {
	for k, want := range match {
		if fmt.Sprint(r[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// SortRecords 依欄位穩定排序，值以字串比較
func SortRecords(records []Record, sortBy string) {
	if sortBy == "" {
		return
	}
	desc := strings.HasPrefix(sortBy, "-")
	field := strings.TrimPrefix(sortBy, "-")
	sort.SliceStable(records, func(i, j int) bool {
		a, b := fmt.Sprint(records[i][field]), fmt.Sprint(records[j][field])
		if desc {
			return a > b
		}
		return a < b
	})
}

func cloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
