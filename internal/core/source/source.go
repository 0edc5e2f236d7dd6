// Package source 匯入來源的驗證與文字擷取
package source

import (
	"bytes"
	"fmt"
	"image"
	"net/url"
	"strings"

	_ "image/jpeg" // 支援 JPEG
	_ "image/png"  // 支援 PNG

	"recipe-ingest/internal/pkg/common"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // 支援 WebP
)

// Kind 來源種類
type Kind string

const (
	KindText Kind = "text"
	KindURL  Kind = "url"
	KindFile Kind = "file"
)

// DefaultMaxSizeBytes 上傳檔案大小上限
const DefaultMaxSizeBytes int64 = 10 << 20

// DefaultAllowedTypes 允許上傳的檔案類型
var DefaultAllowedTypes = []string{"application/pdf", "image/jpeg", "image/png", "image/webp"}

// RawSource 尚未處理的來源，只存在於記憶體中
type RawSource struct {
	Kind        Kind   `json:"kind"`
	Payload     []byte `json:"-"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// FromText 建立文字來源
func FromText(text string) *RawSource {
	return &RawSource{Kind: KindText, Payload: []byte(text), ContentType: "text/plain", SizeBytes: int64(len(text))}
}

// FromURL 建立網頁來源
func FromURL(u string) *RawSource {
	return &RawSource{Kind: KindURL, Payload: []byte(strings.TrimSpace(u))}
}

// FromFile 建立檔案來源，ContentType 由內容偵測
func FromFile(name string, data []byte) *RawSource {
	return &RawSource{Kind: KindFile, Payload: data, FileName: name, SizeBytes: int64(len(data))}
}

// Text 文字來源的內容或網頁來源的網址
func (s *RawSource) Text() string {
	return string(s.Payload)
}

// Validator 檢查來源是否可以進入匯入流程
type Validator struct {
	maxSizeBytes int64
	allowed      map[string]bool
}

// NewValidator 創建來源驗證器，參數為零值時使用預設值
func NewValidator(maxSizeBytes int64, allowedTypes []string) *Validator {
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSizeBytes
	}
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &Validator{maxSizeBytes: maxSizeBytes, allowed: allowed}
}

// Validate 驗證來源；檔案來源會補上偵測到的 ContentType 與大小
func (v *Validator) Validate(src *RawSource) error {
	if src == nil {
		return common.Wrap(common.ErrInvalidSource, fmt.Errorf("source is required"))
	}
	switch src.Kind {
	case KindText:
		if strings.TrimSpace(src.Text()) == "" {
			return common.Wrap(common.ErrInvalidSource, fmt.Errorf("text is empty"))
		}
		return nil
	case KindURL:
		return validateURL(src.Text())
	case KindFile:
		return v.validateFile(src)
	default:
		return common.Wrap(common.ErrInvalidSource, fmt.Errorf("unknown source kind %q", src.Kind))
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return common.Wrap(common.ErrInvalidSource, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return common.Wrap(common.ErrInvalidSource, fmt.Errorf("url must be absolute http(s): %s", raw))
	}
	return nil
}

func (v *Validator) validateFile(src *RawSource) error {
	size := int64(len(src.Payload))
	if size == 0 {
		return common.Wrap(common.ErrInvalidSource, fmt.Errorf("file is empty"))
	}
	if size > v.maxSizeBytes {
		return common.Wrap(common.ErrSourceTooLarge, fmt.Errorf("file size %d exceeds maximum limit of %d bytes", size, v.maxSizeBytes))
	}

	mtype := mimetype.Detect(src.Payload)
	contentType := ""
	for m := mtype; m != nil; m = m.Parent() {
		if v.allowed[m.String()] {
			contentType = m.String()
			break
		}
	}
	if contentType == "" {
		return common.Wrap(common.ErrUnsupportedType, fmt.Errorf("detected type %s", mtype.String()))
	}

	if strings.HasPrefix(contentType, "image/") {
		if _, format, err := image.DecodeConfig(bytes.NewReader(src.Payload)); err != nil {
			return common.Wrap(common.ErrInvalidSource, fmt.Errorf("failed to decode image: %w", err))
		} else if !isSupportedFormat(format) {
			return common.Wrap(common.ErrUnsupportedType, fmt.Errorf("unsupported image format: %s", format))
		}
	}

	src.ContentType = contentType
	src.SizeBytes = size
	return nil
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	supportedFormats := map[string]bool{
		"jpeg": true,
		"png":  true,
		"webp": true,
	}
	return supportedFormats[format]
}
