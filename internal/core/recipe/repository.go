package recipe

import (
	"context"
	"encoding/json"
	"fmt"

	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/pkg/common"

	"go.uber.org/zap"
)

// SaveResult 儲存結果；Queued 表示離線時已排入佇列，Recipe 為送出的內容
type SaveResult struct {
	Recipe     *Recipe    `json:"recipe"`
	Resolution Resolution `json:"resolution"`
	Queued     bool       `json:"queued"`
}

// Repository 食譜讀寫，寫入經過離線佇列
type Repository struct {
	store  entity.Store
	writer *resilience.Writer
	exec   *resilience.Executor
}

// NewRepository 創建食譜儲存庫
func NewRepository(store entity.Store, writer *resilience.Writer, exec *resilience.Executor) *Repository {
	return &Repository{store: store, writer: writer, exec: exec}
}

// List 讀取全部食譜，依建立順序
func (r *Repository) List(ctx context.Context) ([]*Recipe, error) {
	records, err := resilience.Execute(ctx, r.exec, func(ctx context.Context) ([]entity.Record, error) {
		return r.store.List(ctx, entity.CollectionRecipe, "")
	}, resilience.Options{Name: "list recipes"})
	if err != nil {
		return nil, err
	}
	out := make([]*Recipe, 0, len(records))
	for _, rec := range records {
		parsed, err := FromRecord(rec)
		if err != nil {
			common.LogWarn("略過無法解析的食譜", zap.String("id", rec.ID()), zap.Error(err))
			continue
		}
		out = append(out, parsed)
	}
	return out, nil
}

// Get 讀取單筆食譜
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	rec, err := resilience.Execute(ctx, r.exec, func(ctx context.Context) (entity.Record, error) {
		return r.store.Get(ctx, entity.CollectionRecipe, id)
	}, resilience.Options{Name: "get recipe"})
	if err != nil {
		return nil, err
	}
	return FromRecord(rec)
}

// FindDuplicates 與整個食譜庫比對
func (r *Repository) FindDuplicates(ctx context.Context, candidate *Recipe, minScore int) ([]DuplicateMatch, error) {
	corpus, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return FindDuplicates(candidate, corpus, minScore), nil
}

// Save 依 resolution 新增、合併或覆寫 targetID 指向的食譜
func (r *Repository) Save(ctx context.Context, candidate *Recipe, resolution Resolution, targetID string) (*SaveResult, error) {
	if resolution == ResolutionNew {
		data, err := ToRecord(candidate)
		if err != nil {
			return nil, err
		}
		delete(data, "id")
		rec, err := r.writer.Create(ctx, entity.CollectionRecipe, data)
		if err != nil {
			return nil, err
		}
		return r.result(candidate, rec, resolution)
	}

	if targetID == "" {
		return nil, common.Wrap(common.ErrInvalidRequest, fmt.Errorf("%s requires a target recipe", resolution))
	}
	existing, err := r.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	var next *Recipe
	if resolution == ResolutionMerge {
		next = Merge(existing, candidate)
	} else {
		next = Replace(existing, candidate)
	}
	data, err := ToRecord(next)
	if err != nil {
		return nil, err
	}
	rec, err := r.writer.Update(ctx, entity.CollectionRecipe, existing.ID, data)
	if err != nil {
		return nil, err
	}
	return r.result(next, rec, resolution)
}

func (r *Repository) result(sent *Recipe, rec entity.Record, resolution Resolution) (*SaveResult, error) {
	if rec == nil {
		return &SaveResult{Recipe: sent, Resolution: resolution, Queued: true}, nil
	}
	saved, err := FromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &SaveResult{Recipe: saved, Resolution: resolution}, nil
}

// ToRecord 轉換為實體紀錄，預設標記不寫入儲存
func ToRecord(r *Recipe) (entity.Record, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var rec entity.Record
	if err := common.ParseJSONBytes(data, &rec); err != nil {
		return nil, err
	}
	delete(rec, "defaulted_fields")
	return rec, nil
}

// FromRecord 由實體紀錄還原，經過 Validate
func FromRecord(rec entity.Record) (*Recipe, error) {
	return Validate(rec)
}
