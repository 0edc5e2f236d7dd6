// Package offline 離線寫入佇列的 HTTP 處理器
package offline

import (
	"context"
	"net/http"

	"recipe-ingest/internal/api/handlers"
	"recipe-ingest/internal/core/resilience"

	"github.com/gin-gonic/gin"
)

// Outbox 待重送的寫入
type Outbox interface {
	Pending() []resilience.QueueItem
	Flush(ctx context.Context) resilience.FlushResult
}

// PendingResponse 佇列內容
type PendingResponse struct {
	Length int                    `json:"length"`
	Items  []resilience.QueueItem `json:"items"`
}

// FlushResponse 重送結果與剩餘數量
type FlushResponse struct {
	resilience.FlushResult
	Remaining int `json:"remaining"`
}

// Handler 離線佇列處理器
type Handler struct {
	outbox Outbox
}

// NewHandler 創建離線佇列處理器
func NewHandler(outbox Outbox) *Handler {
	return &Handler{outbox: outbox}
}

// Register 註冊路由
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.Pending)
	g.POST("/flush", h.Flush)
}

// Pending 列出尚未重送的寫入
func (h *Handler) Pending(c *gin.Context) {
	items := h.outbox.Pending()
	c.JSON(http.StatusOK, PendingResponse{Length: len(items), Items: items})
}

// Flush 立即重送；失敗的項目留在佇列
func (h *Handler) Flush(c *gin.Context) {
	ctx := c.Request.Context()
	res := h.outbox.Flush(ctx)
	if err := ctx.Err(); err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, FlushResponse{FlushResult: res, Remaining: len(h.outbox.Pending())})
}
