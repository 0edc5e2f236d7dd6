package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Uploader 檔案上傳能力，回傳可公開存取的 URL
type Uploader interface {
	Upload(ctx context.Context, name string, contentType string, data []byte) (string, error)
}

// Extraction 擷取出的原始文字與來源資訊
type Extraction struct {
	Kind        Kind   `json:"kind"`
	Text        string `json:"-"`
	SourceURL   string `json:"source_url,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Extractor 依來源種類取得原始文字
type Extractor struct {
	validator      *Validator
	text           provider.TextGenerator
	uploader       Uploader
	exec           *resilience.Executor
	client         *resty.Client
	extractRetries int
}

// NewExtractor 創建來源擷取器
func NewExtractor(validator *Validator, text provider.TextGenerator, uploader Uploader, exec *resilience.Executor, extractRetries int) *Extractor {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "recipe-ingest/1.0").
		SetHeader("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &Extractor{
		validator:      validator,
		text:           text,
		uploader:       uploader,
		exec:           exec,
		client:         client,
		extractRetries: extractRetries,
	}
}

// Extract 驗證來源並取得原始文字，key 用於日誌分組
func (e *Extractor) Extract(ctx context.Context, src *RawSource, key string) (*Extraction, error) {
	if err := e.validator.Validate(src); err != nil {
		return nil, err
	}
	switch src.Kind {
	case KindText:
		return &Extraction{Kind: KindText, Text: src.Text(), ContentType: "text/plain"}, nil
	case KindURL:
		return e.fetchPage(ctx, src.Text(), key)
	default:
		return e.transcribeFile(ctx, src, key)
	}
}

type page struct {
	body        []byte
	contentType string
}

func (e *Extractor) fetchPage(ctx context.Context, pageURL string, key string) (*Extraction, error) {
	limit := e.validator.maxSizeBytes
	p, err := resilience.Execute(ctx, e.exec, func(ctx context.Context) (*page, error) {
		resp, err := e.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(pageURL)
		if err != nil {
			return nil, err
		}
		raw := resp.RawBody()
		defer raw.Close()

		if resp.StatusCode() != http.StatusOK {
			preview, _ := io.ReadAll(io.LimitReader(raw, 200))
			return nil, &common.HTTPError{Status: resp.StatusCode(), Body: string(preview)}
		}
		if n := resp.RawResponse.ContentLength; n > limit {
			return nil, common.Wrap(common.ErrSourceTooLarge, fmt.Errorf("page size %d exceeds maximum limit of %d bytes", n, limit))
		}
		body, err := io.ReadAll(io.LimitReader(raw, limit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(body)) > limit {
			return nil, common.Wrap(common.ErrSourceTooLarge, fmt.Errorf("page exceeds maximum limit of %d bytes", limit))
		}
		return &page{body: body, contentType: resp.Header().Get("Content-Type")}, nil
	}, resilience.Options{Name: "fetch page", Key: key})
	if err != nil {
		return nil, err
	}

	common.LogDebug("已取得網頁", zap.String("url", pageURL), zap.Int("bytes", len(p.body)), zap.String("content_type", p.contentType))
	return &Extraction{Kind: KindURL, Text: string(p.body), SourceURL: pageURL, ContentType: p.contentType}, nil
}

const transcribePrompt = `Lies das angehängte Dokument und gib den vollständigen Text des Rezepts wieder.
Behalte Titel, Zutaten mit Mengen und alle Arbeitsschritte in der ursprünglichen Reihenfolge bei.
Erfinde nichts hinzu. Antworte nur mit dem Text, ohne Kommentare.`

func (e *Extractor) transcribeFile(ctx context.Context, src *RawSource, key string) (*Extraction, error) {
	if e.uploader == nil {
		return nil, common.Wrap(common.ErrServiceUnavailable, fmt.Errorf("file upload is not configured"))
	}
	name := src.FileName
	if strings.TrimSpace(name) == "" {
		name = common.GenerateUUID()
	}

	fileURL, err := resilience.Execute(ctx, e.exec, func(ctx context.Context) (string, error) {
		return e.uploader.Upload(ctx, name, src.ContentType, src.Payload)
	}, resilience.Options{Name: "upload file", Key: key})
	if err != nil {
		return nil, err
	}

	text, err := resilience.Execute(ctx, e.exec, func(ctx context.Context) (string, error) {
		return e.text.GenerateText(ctx, &provider.TextRequest{Prompt: transcribePrompt, FileURL: fileURL})
	}, resilience.Options{Name: "transcribe file", Key: key, MaxRetries: e.extractRetries})
	if err != nil {
		return nil, err
	}

	common.LogInfo("檔案文字擷取完成",
		zap.String("file", name),
		zap.String("content_type", src.ContentType),
		zap.Int("chars", len([]rune(text))),
	)
	return &Extraction{Kind: KindFile, Text: text, FileURL: fileURL, FileName: name, ContentType: src.ContentType}, nil
}
