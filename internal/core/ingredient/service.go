package ingredient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/pkg/common"
	"recipe-ingest/internal/pkg/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ImageStore 將生成的圖片（可能是 data URL）保存成可公開存取的 URL
type ImageStore interface {
	StoreImage(ctx context.Context, imageURL string, name string) (string, error)
}

// EnsureResult EnsurePhoto 的結果
type EnsureResult struct {
	Photo   *Photo `json:"photo"`
	Match   *Match `json:"match,omitempty"`
	Created bool   `json:"created"`
	Queued  bool   `json:"queued"`
}

// Service 食材圖片服務
type Service struct {
	store         entity.Store
	writer        *resilience.Writer
	exec          *resilience.Executor
	images        provider.ImageGenerator
	imageStore    ImageStore
	altNames      AltNameGenerator
	minSimilarity float64
	cache         *expirable.LRU[string, *Match]
	metrics       *metrics.Collectors
}

// Options 服務設定
type Options struct {
	MinSimilarity float64
	CacheSize     int
	CacheTTL      time.Duration
}

// NewService 創建食材圖片服務
func NewService(
	store entity.Store,
	writer *resilience.Writer,
	exec *resilience.Executor,
	images provider.ImageGenerator,
	imageStore ImageStore,
	altNames AltNameGenerator,
	m *metrics.Collectors,
	opts Options,
) *Service {
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultMinSimilarity
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &Service{
		store:         store,
		writer:        writer,
		exec:          exec,
		images:        images,
		imageStore:    imageStore,
		altNames:      altNames,
		minSimilarity: opts.MinSimilarity,
		cache:         expirable.NewLRU[string, *Match](opts.CacheSize, nil, opts.CacheTTL),
		metrics:       m,
	}
}

// Photos 讀取整個圖片庫
func (s *Service) Photos(ctx context.Context) ([]*Photo, error) {
	records, err := resilience.Execute(ctx, s.exec, func(ctx context.Context) ([]entity.Record, error) {
		return s.store.List(ctx, entity.CollectionIngredientPhoto, "")
	}, resilience.Options{Name: "list ingredient photos"})
	if err != nil {
		return nil, err
	}
	photos := make([]*Photo, 0, len(records))
	for _, rec := range records {
		p, err := photoFromRecord(rec)
		if err != nil {
			common.LogWarn("略過無法解析的食材圖片", zap.String("id", rec.ID()), zap.Error(err))
			continue
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// Resolve 批次比對，minSimilarity <= 0 使用預設值；結果會快取到圖片庫變更為止
func (s *Service) Resolve(ctx context.Context, names []string, minSimilarity float64) (*BatchResult, error) {
	if minSimilarity <= 0 {
		minSimilarity = s.minSimilarity
	}
	res := &BatchResult{Matches: make(map[string]*Match), Missing: []string{}}

	var pending []string
	for _, name := range names {
		if m, ok := s.cache.Get(cacheKey(name, minSimilarity)); ok {
			res.Matches[name] = m
			continue
		}
		pending = append(pending, name)
	}
	if len(pending) == 0 {
		return res, nil
	}

	photos, err := s.Photos(ctx)
	if err != nil {
		return nil, err
	}
	batch := NewIndex(photos).BatchMatch(pending, minSimilarity)
	for name, m := range batch.Matches {
		res.Matches[name] = m
		s.cache.Add(cacheKey(name, minSimilarity), m)
		s.metrics.MatchResolutions.WithLabelValues(string(m.MatchType)).Inc()
	}
	for _, name := range batch.Missing {
		res.Missing = append(res.Missing, name)
		s.metrics.MatchResolutions.WithLabelValues("missing").Inc()
	}
	return res, nil
}

// GenerateAlternatives 產生別名
func (s *Service) GenerateAlternatives(ctx context.Context, name string) ([]string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, common.Wrap(common.ErrInvalidRequest, fmt.Errorf("name is required"))
	}
	return s.altNames.Generate(ctx, name)
}

// EnsurePhoto 已有相符圖片時直接回傳，否則生成圖片與別名並建立紀錄
func (s *Service) EnsurePhoto(ctx context.Context, name string) (*EnsureResult, error) {
	canonical := CanonicalName(name)
	if canonical == "" {
		return nil, common.Wrap(common.ErrInvalidRequest, fmt.Errorf("name is required"))
	}

	resolved, err := s.Resolve(ctx, []string{name}, 0)
	if err != nil {
		return nil, err
	}
	if m, ok := resolved.Matches[name]; ok {
		return &EnsureResult{Photo: m.Photo, Match: m}, nil
	}

	prompt := fmt.Sprintf("A realistic food photograph of %s on a neutral light background, top-down view, no text, no people.", canonical)
	imageURL, err := resilience.Execute(ctx, s.exec, func(ctx context.Context) (string, error) {
		return s.images.GenerateImage(ctx, prompt)
	}, resilience.Options{Name: "generate ingredient image"})
	if err != nil {
		return nil, err
	}
	if s.imageStore != nil {
		if imageURL, err = s.imageStore.StoreImage(ctx, imageURL, canonical); err != nil {
			return nil, fmt.Errorf("failed to store generated image: %w", err)
		}
	}

	alts, err := s.altNames.Generate(ctx, name)
	if err != nil {
		common.LogWarn("別名產生失敗，建立不含別名的紀錄", zap.String("name", canonical), zap.Error(err))
		alts = []string{}
	}

	photo := &Photo{
		CanonicalName:    canonical,
		AlternativeNames: alts,
		ImageURL:         imageURL,
		IsGenerated:      true,
	}
	data, err := photoToRecord(photo)
	if err != nil {
		return nil, err
	}
	delete(data, "id")
	rec, err := s.writer.Create(ctx, entity.CollectionIngredientPhoto, data)
	if err != nil {
		return nil, err
	}
	s.cache.Purge()

	if rec == nil {
		return &EnsureResult{Photo: photo, Created: true, Queued: true}, nil
	}
	created, err := photoFromRecord(rec)
	if err != nil {
		return nil, err
	}
	common.LogInfo("已建立食材圖片", zap.String("id", created.ID), zap.String("name", canonical), zap.Int("alternatives", len(alts)))
	return &EnsureResult{Photo: created, Created: true}, nil
}

// AddAlternativeNames 併入別名，不分大小寫去重，只增不減
func (s *Service) AddAlternativeNames(ctx context.Context, id string, names []string) (*Photo, error) {
	rec, err := resilience.Execute(ctx, s.exec, func(ctx context.Context) (entity.Record, error) {
		return s.store.Get(ctx, entity.CollectionIngredientPhoto, id)
	}, resilience.Options{Name: "get ingredient photo"})
	if err != nil {
		return nil, err
	}
	photo, err := photoFromRecord(rec)
	if err != nil {
		return nil, err
	}

	lowered := make([]string, 0, len(names))
	for _, n := range names {
		if c := CanonicalName(n); c != "" && c != photo.CanonicalName {
			lowered = append(lowered, c)
		}
	}
	merged := MergeNames(photo.AlternativeNames, lowered...)
	if len(merged) == len(photo.AlternativeNames) {
		return photo, nil
	}
	photo.AlternativeNames = merged

	if _, err := s.writer.Update(ctx, entity.CollectionIngredientPhoto, id, entity.Record{"alternative_names": merged}); err != nil {
		return nil, err
	}
	s.cache.Purge()
	return photo, nil
}

func cacheKey(name string, minSimilarity float64) string {
	return fmt.Sprintf("%.3f|%s", minSimilarity, name)
}
