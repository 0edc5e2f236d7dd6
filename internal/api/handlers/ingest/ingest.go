// Package ingest 匯入流程的 HTTP 處理器
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"recipe-ingest/internal/api/handlers"
	core "recipe-ingest/internal/core/ingest"
	"recipe-ingest/internal/core/recipe"
	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pipeline 分段匯入流程
type Pipeline interface {
	Start(ctx context.Context, sessionID string, src *source.RawSource) (*core.State, error)
	Resume(ctx context.Context, sessionID string) (*core.State, error)
	Extract(ctx context.Context, sessionID string, editedText *string) (*core.State, error)
	Back(ctx context.Context, sessionID string) (*core.State, error)
	Complete(ctx context.Context, sessionID string, req core.CompleteRequest) (*core.State, error)
	Cancel(ctx context.Context, sessionID string) (*core.State, error)
}

// Batches 批次匯入
type Batches interface {
	Submit(ctx context.Context, sources []*source.RawSource) (*core.Batch, error)
	Batch(id string) (*core.Batch, error)
}

// SourceRequest 文字或網址來源，兩者擇一
type SourceRequest struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
}

// StartRequest 開始匯入
type StartRequest struct {
	SessionID string `json:"session_id,omitempty"`
	SourceRequest
}

// ExtractRequest 確認後的文字，省略時沿用目前內容
type ExtractRequest struct {
	Text *string `json:"text,omitempty"`
}

// CompleteRequest 儲存選擇
type CompleteRequest struct {
	Resolution string         `json:"resolution,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	Recipe     *recipe.Recipe `json:"recipe,omitempty"`
}

// BatchRequest 批次匯入的文字與網址
type BatchRequest struct {
	Items []SourceRequest `json:"items"`
}

// Handler 匯入處理器
type Handler struct {
	pipeline Pipeline
	batches  Batches
}

// NewHandler 創建匯入處理器
func NewHandler(pipeline Pipeline, batches Batches) *Handler {
	return &Handler{pipeline: pipeline, batches: batches}
}

// Register 註冊路由
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("", h.Start)
	g.POST("/batch", h.SubmitBatch)
	g.GET("/batch/:id", h.BatchStatus)
	g.GET("/:session", h.Resume)
	g.POST("/:session/extract", h.Extract)
	g.POST("/:session/back", h.Back)
	g.POST("/:session/complete", h.Complete)
	g.DELETE("/:session", h.Cancel)
}

// Start 接收 JSON（text/url）或 multipart 檔案，完成後停在 OCR_REVIEW
func (h *Handler) Start(c *gin.Context) {
	var (
		sessionID string
		src       *source.RawSource
		err       error
	)
	if isMultipart(c) {
		sessionID = c.PostForm("session_id")
		src, err = formFile(c, "file")
	} else {
		var req StartRequest
		if err = c.ShouldBindJSON(&req); err != nil {
			handlers.BadRequest(c, err)
			return
		}
		sessionID = req.SessionID
		src, err = req.SourceRequest.toSource()
	}
	if err != nil {
		handlers.Error(c, err)
		return
	}

	common.LogInfo("開始匯入",
		zap.String("session", sessionID),
		zap.String("kind", string(src.Kind)),
		zap.String("client_ip", c.ClientIP()),
	)
	state, err := h.pipeline.Start(c.Request.Context(), sessionID, src)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// Resume 讀取進度，被中斷的處理階段會退回可操作的階段
func (h *Handler) Resume(c *gin.Context) {
	state, err := h.pipeline.Resume(c.Request.Context(), c.Param("session"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Extract 擷取結構化食譜並比對重複
func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	state, err := h.pipeline.Extract(c.Request.Context(), c.Param("session"), req.Text)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Back 回到上一個檢查階段
func (h *Handler) Back(c *gin.Context) {
	state, err := h.pipeline.Back(c.Request.Context(), c.Param("session"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Complete 儲存食譜；離線時回 202 並排入佇列
func (h *Handler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	resolution, err := recipe.ParseResolution(req.Resolution)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	state, err := h.pipeline.Complete(c.Request.Context(), c.Param("session"), core.CompleteRequest{
		Resolution: resolution,
		TargetID:   req.TargetID,
		Recipe:     req.Recipe,
	})
	if err != nil {
		handlers.Error(c, err)
		return
	}
	handlers.Written(c, state.Result != nil && state.Result.Queued, state)
}

// Cancel 中止並清除進度
func (h *Handler) Cancel(c *gin.Context) {
	state, err := h.pipeline.Cancel(c.Request.Context(), c.Param("session"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// SubmitBatch 接收 JSON items 或 multipart 多檔，背景處理到 OCR_REVIEW
func (h *Handler) SubmitBatch(c *gin.Context) {
	var sources []*source.RawSource
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			handlers.Error(c, formError(err))
			return
		}
		for _, fh := range form.File["files"] {
			src, err := readFile(fh)
			if err != nil {
				handlers.Error(c, err)
				return
			}
			sources = append(sources, src)
		}
	} else {
		var req BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			handlers.BadRequest(c, err)
			return
		}
		for i, item := range req.Items {
			src, err := item.toSource()
			if err != nil {
				handlers.Error(c, fmt.Errorf("item %d: %w", i, err))
				return
			}
			sources = append(sources, src)
		}
	}

	batch, err := h.batches.Submit(c.Request.Context(), sources)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, batch)
}

// BatchStatus 批次中每個項目的狀態
func (h *Handler) BatchStatus(c *gin.Context) {
	batch, err := h.batches.Batch(c.Param("id"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (r SourceRequest) toSource() (*source.RawSource, error) {
	text, url := strings.TrimSpace(r.Text), strings.TrimSpace(r.URL)
	switch {
	case text != "" && url != "":
		return nil, common.Wrap(common.ErrInvalidSource, errors.New("text and url are mutually exclusive"))
	case text != "":
		return source.FromText(r.Text), nil
	case url != "":
		return source.FromURL(url), nil
	default:
		return nil, common.Wrap(common.ErrInvalidSource, errors.New("text or url is required"))
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func formFile(c *gin.Context, field string) (*source.RawSource, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, formError(fmt.Errorf("form field %q: %w", field, err))
	}
	return readFile(fh)
}

// formError 超過請求體上限時回傳 413
func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return common.Wrap(common.ErrSourceTooLarge, err)
	}
	return common.Wrap(common.ErrInvalidSource, err)
}

func readFile(fh *multipart.FileHeader) (*source.RawSource, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, common.Wrap(common.ErrInvalidSource, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, formError(err)
	}
	return source.FromFile(fh.Filename, data), nil
}

// bindOptionalJSON 空請求體視為零值
func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.Body == nil {
		return nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return common.ParseJSONBytes(body, v)
}
