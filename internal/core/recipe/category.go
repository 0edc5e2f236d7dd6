package recipe

import (
	"context"
	"strings"
	"time"

	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/pkg/common"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Vocabulary 外部維護的分類詞彙
type Vocabulary struct {
	MealTypes []string `json:"meal_types"`
	Courses   []string `json:"courses"`
	Cuisines  []string `json:"cuisines"`
}

const vocabularyKey = "vocabulary"

// Categories 讀取分類詞彙並快取
type Categories struct {
	store entity.Store
	exec  *resilience.Executor
	cache *expirable.LRU[string, Vocabulary]
}

// NewCategories 創建分類詞彙來源
func NewCategories(store entity.Store, exec *resilience.Executor, ttl time.Duration) *Categories {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Categories{
		store: store,
		exec:  exec,
		cache: expirable.NewLRU[string, Vocabulary](1, nil, ttl),
	}
}

// Vocabulary 讀取失敗時回傳空詞彙，不中斷匯入
func (c *Categories) Vocabulary(ctx context.Context) Vocabulary {
	if v, ok := c.cache.Get(vocabularyKey); ok {
		return v
	}
	records, err := resilience.Execute(ctx, c.exec, func(ctx context.Context) ([]entity.Record, error) {
		return c.store.List(ctx, entity.CollectionCategory, "name")
	}, resilience.Options{Name: "list categories"})
	if err != nil {
		common.LogWarn("讀取分類失敗，使用空詞彙", zap.Error(err))
		return Vocabulary{MealTypes: []string{}, Courses: []string{}, Cuisines: []string{}}
	}

	v := Vocabulary{MealTypes: []string{}, Courses: []string{}, Cuisines: []string{}}
	for _, rec := range records {
		name := strings.TrimSpace(toString(rec["name"]))
		if name == "" {
			continue
		}
		switch toString(rec["type"]) {
		case "meal":
			v.MealTypes = append(v.MealTypes, name)
		case "course", "gang":
			v.Courses = append(v.Courses, name)
		case "cuisine":
			v.Cuisines = append(v.Cuisines, name)
		}
	}
	c.cache.Add(vocabularyKey, v)
	return v
}

// Invalidate 清除快取
func (c *Categories) Invalidate() {
	c.cache.Purge()
}
