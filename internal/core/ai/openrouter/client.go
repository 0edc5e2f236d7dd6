package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client OpenRouter API 客戶端，同時提供文字與圖片生成
type Client struct {
	config config.OpenRouterConfig
	client *resty.Client
}

// Message 消息結構，content 可為字串或多段內容
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart 多段內容
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *FilePart `json:"file,omitempty"`
}

// ImageURL 圖片網址
type ImageURL struct {
	URL string `json:"url"`
}

// FilePart PDF 等檔案
type FilePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// ResponseFormat 結構化輸出設定
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema 輸出 schema
type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// Plugin OpenRouter 外掛，web 代表允許搜尋網路
type Plugin struct {
	ID string `json:"id"`
}

// Request 表示 API 請求
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Modalities     []string        `json:"modalities,omitempty"`
	Plugins        []Plugin        `json:"plugins,omitempty"`
}

// Response OpenRouter 響應結構
type Response struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Usage   UsageInfo `json:"usage"`
}

// Choice 選擇結構
type Choice struct {
	Message struct {
		Content string `json:"content"`
		Images  []struct {
			ImageURL ImageURL `json:"image_url"`
		} `json:"images,omitempty"`
	} `json:"message"`
}

// UsageInfo 使用量信息
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewClient 創建新的 OpenRouter 客戶端
func NewClient(cfg config.OpenRouterConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("HTTP-Referer", "https://recipe-ingest.local").
		SetHeader("X-Title", "Recipe Ingest")

	return &Client{
		config: cfg,
		client: client,
	}
}

// SetBaseURL 替換 API 位址（測試用）
func (c *Client) SetBaseURL(url string) {
	c.client.SetBaseURL(url)
}

func (c *Client) Name() string {
	return "openrouter"
}

// GenerateText 生成文字；有 schema 時使用 json_schema 輸出格式
func (c *Client) GenerateText(ctx context.Context, req *provider.TextRequest) (string, error) {
	if c.config.APIKey == "" {
		return "", provider.ErrUnavailable
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	body := &Request{
		Model:       c.config.Model,
		Messages:    []Message{{Role: "user", Content: buildContent(req)}},
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	}
	if req.JSONSchema != nil {
		body.ResponseFormat = &ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &JSONSchema{Name: "result", Strict: false, Schema: req.JSONSchema},
		}
	}
	if req.AllowInternet {
		body.Plugins = []Plugin{{ID: "web"}}
	}

	resp, err := c.send(ctx, body)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content in OpenRouter response")
	}
	return content, nil
}

// GenerateImage 以圖片模型生成，回傳第一張圖片的 URL
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.config.APIKey == "" || c.config.ImageModel == "" {
		return "", provider.ErrUnavailable
	}
	body := &Request{
		Model:      c.config.ImageModel,
		Messages:   []Message{{Role: "user", Content: prompt}},
		Modalities: []string{"image", "text"},
	}
	resp, err := c.send(ctx, body)
	if err != nil {
		return "", err
	}
	images := resp.Choices[0].Message.Images
	if len(images) == 0 || images[0].ImageURL.URL == "" {
		return "", fmt.Errorf("no image in OpenRouter response")
	}
	return images[0].ImageURL.URL, nil
}

func (c *Client) send(ctx context.Context, body *Request) (*Response, error) {
	common.LogDebug("Sending request to OpenRouter",
		zap.String("model", body.Model),
		zap.Bool("structured", body.ResponseFormat != nil),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		sanitized := sanitizeResponse(resp.Body())
		common.LogError("AI service returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", body.Model),
			zap.String("response", common.Preview(sanitized, 300)),
		)
		return nil, &common.HTTPError{Status: resp.StatusCode(), Body: common.Preview(sanitized, 300)}
	}

	var result Response
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse OpenRouter response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices in OpenRouter response")
	}

	common.LogDebug("Successfully generated response from AI service",
		zap.String("model", body.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)
	return &result, nil
}

func buildContent(req *provider.TextRequest) any {
	if req.FileURL == "" {
		return req.Prompt
	}
	parts := []ContentPart{{Type: "text", Text: req.Prompt}}
	if isPDF(req.FileURL) {
		parts = append(parts, ContentPart{Type: "file", File: &FilePart{Filename: "source.pdf", FileData: req.FileURL}})
	} else {
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: req.FileURL}})
	}
	return parts
}

func isPDF(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "data:application/pdf") || strings.HasSuffix(lower, ".pdf")
}

// sanitizeResponse 移除回應中的圖片資料
func sanitizeResponse(body []byte) string {
	s := string(body)
	if strings.Contains(s, "data:image/") {
		return "[IMAGE_DATA_REMOVED]"
	}
	if len(body) > 100 && strings.Contains(s, "base64") {
		return "[BASE64_DATA_REMOVED]"
	}
	return s
}
