package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"google.golang.org/genai"
)

// Client Gemini 文字生成，作為 OpenRouter 的備援
type Client struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewClient 創建 Gemini 客戶端，連線延後到第一次呼叫
func NewClient(cfg config.GeminiConfig) *Client {
	return &Client{
		apiKey: strings.TrimSpace(cfg.APIKey),
		model:  cfg.Model,
	}
}

func (c *Client) Name() string {
	return "gemini"
}

// GenerateText 不支援檔案輸入，帶檔案的請求回傳 ErrUnavailable
func (c *Client) GenerateText(ctx context.Context, req *provider.TextRequest) (string, error) {
	if c.apiKey == "" || req.FileURL != "" {
		return "", provider.ErrUnavailable
	}
	client, err := c.get(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.JSONSchema
	}
	if req.AllowInternet {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := client.Models.GenerateContent(
		ctx,
		c.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return "", translateError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty content in Gemini response")
	}
	return text, nil
}

func (c *Client) get(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		c.client, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return c.client, c.initErr
}

// translateError 將 API 錯誤轉為帶狀態碼的錯誤，讓重試規則可以判斷
func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return fmt.Errorf("gemini: %w", &common.HTTPError{Status: apiErr.Code, Body: apiErr.Message})
	}
	return err
}
