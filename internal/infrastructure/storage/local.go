// Package storage 本機檔案上傳
package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// Local 將檔案寫入本機目錄，由 HTTP 伺服器以靜態檔案提供
type Local struct {
	dir          string
	baseURL      string
	maxSizeBytes int64
}

// NewLocal 創建本機儲存並建立目錄
func NewLocal(cfg config.UploadConfig) (*Local, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{
		dir:          cfg.Dir,
		baseURL:      strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxSizeBytes: cfg.MaxSizeBytes,
	}, nil
}

// Dir 上傳目錄
func (l *Local) Dir() string {
	return l.dir
}

// Upload 保存檔案並回傳公開 URL
func (l *Local) Upload(_ context.Context, name string, contentType string, data []byte) (string, error) {
	if l.maxSizeBytes > 0 && int64(len(data)) > l.maxSizeBytes {
		return "", common.Wrap(common.ErrSourceTooLarge, fmt.Errorf("file size %d exceeds maximum limit of %d bytes", len(data), l.maxSizeBytes))
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	filename := fileName(name, contentType)
	if err := os.WriteFile(filepath.Join(l.dir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	common.LogDebug("檔案已保存", zap.String("file", filename), zap.Int("bytes", len(data)))
	return l.baseURL + "/" + filename, nil
}

// StoreImage data URL 解碼後保存，一般 URL 原樣回傳
func (l *Local) StoreImage(ctx context.Context, imageURL string, name string) (string, error) {
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return imageURL, nil
	}
	if !strings.HasPrefix(imageURL, "data:image/") {
		return "", fmt.Errorf("invalid image data format")
	}

	parts := strings.SplitN(imageURL, ",", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid base64 data format")
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 data: %w", err)
	}

	mtype := mimetype.Detect(decoded)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", common.Wrap(common.ErrUnsupportedType, fmt.Errorf("generated content is %s", mtype.String()))
	}
	return l.Upload(ctx, name, mtype.String(), decoded)
}

// fileName 名稱轉成安全的前綴，加上隨機 id 與副檔名
func fileName(name string, contentType string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if len(base) > 40 {
		base = base[:40]
	}
	ext := ""
	if m := mimetype.Lookup(contentType); m != nil {
		ext = m.Extension()
	}
	id := common.GenerateUUID()
	if base == "" {
		return id + ext
	}
	return base + "-" + id + ext
}
