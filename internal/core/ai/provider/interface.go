package provider

import (
	"context"
	"errors"
)

// ErrUnavailable 提供者未設定或不支援此類請求，呼叫端應改用下一個提供者
var ErrUnavailable = errors.New("provider unavailable")

// TextRequest 文字生成請求
type TextRequest struct {
	Prompt string `json:"prompt"`
	// JSONSchema 非空時要求回應符合此 schema
	JSONSchema map[string]any `json:"json_schema,omitempty"`
	// FileURL 需要模型讀取的檔案（圖片或 PDF）
	FileURL string `json:"file_url,omitempty"`
	// AllowInternet 允許模型使用網路資料
	AllowInternet bool `json:"allow_internet,omitempty"`
	MaxTokens     int  `json:"max_tokens,omitempty"`
}

// TextGenerator 文字生成能力
type TextGenerator interface {
	Name() string
	GenerateText(ctx context.Context, req *TextRequest) (string, error)
}

// ImageGenerator 圖片生成能力，回傳可存取的圖片 URL（可能是 data URL）
type ImageGenerator interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// TextFunc 以函式實作 TextGenerator，測試用
type TextFunc func(ctx context.Context, req *TextRequest) (string, error)

func (f TextFunc) Name() string { return "func" }

func (f TextFunc) GenerateText(ctx context.Context, req *TextRequest) (string, error) {
	return f(ctx, req)
}

// ImageFunc 以函式實作 ImageGenerator，測試用
type ImageFunc func(ctx context.Context, prompt string) (string, error)

func (f ImageFunc) Name() string { return "func" }

func (f ImageFunc) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
