package service

import (
	"context"

	"recipe-ingest/internal/core/ai/cache"
	"recipe-ingest/internal/core/ai/gemini"
	"recipe-ingest/internal/core/ai/openrouter"
	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"go.uber.org/zap"
)

// Service 組合後的生成能力：OpenRouter 為主，Gemini 為文字備援，外層加上快取
type Service struct {
	text  provider.TextGenerator
	image provider.ImageGenerator
}

// NewService 依設定建立生成服務
func NewService(cfg *config.Config) *Service {
	var textProviders []provider.TextGenerator
	var image provider.ImageGenerator

	if cfg.OpenRouter.Enabled {
		or := openrouter.NewClient(cfg.OpenRouter)
		textProviders = append(textProviders, or)
		image = or
	}
	if cfg.Gemini.Enabled {
		textProviders = append(textProviders, gemini.NewClient(cfg.Gemini))
	}

	group := provider.NewGroup(textProviders...)
	var text provider.TextGenerator = group
	if cfg.AI.CacheEnabled {
		text = cache.Wrap(group, cfg.AI.CacheSize, cfg.AI.CacheTTL)
	}
	if image == nil {
		image = provider.ImageFunc(func(_ context.Context, _ string) (string, error) {
			return "", provider.ErrUnavailable
		})
	}

	common.LogInfo("AI 服務已初始化",
		zap.Int("text_providers", group.Len()),
		zap.Bool("cache", cfg.AI.CacheEnabled),
	)
	return &Service{text: text, image: image}
}

// Text 文字生成能力
func (s *Service) Text() provider.TextGenerator {
	return s.text
}

// Image 圖片生成能力
func (s *Service) Image() provider.ImageGenerator {
	return s.image
}
