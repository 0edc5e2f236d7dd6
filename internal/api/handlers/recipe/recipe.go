// Package recipe 食譜相關的 HTTP 處理器
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"recipe-ingest/internal/api/handlers"
	core "recipe-ingest/internal/core/recipe"

	"github.com/gin-gonic/gin"
)

// Finder 在食譜庫中尋找相似食譜
type Finder interface {
	FindDuplicates(ctx context.Context, candidate *core.Recipe, minScore int) ([]core.DuplicateMatch, error)
}

// DuplicatesRequest 候選食譜，欄位格式寬鬆
type DuplicatesRequest struct {
	Recipe   json.RawMessage `json:"recipe" binding:"required"`
	MinScore *int            `json:"min_score,omitempty"`
}

// DuplicatesResponse 依分數遞減排序
type DuplicatesResponse struct {
	Duplicates []core.DuplicateMatch `json:"duplicates"`
}

// Handler 食譜處理器
type Handler struct {
	finder    Finder
	threshold int
}

// NewHandler 創建食譜處理器，threshold 為未指定 min_score 時的門檻
func NewHandler(finder Finder, threshold int) *Handler {
	if threshold <= 0 {
		threshold = core.DefaultDuplicateThreshold
	}
	return &Handler{finder: finder, threshold: threshold}
}

// Register 註冊路由
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/duplicates", h.Duplicates)
}

// Duplicates 檢查候選食譜是否已存在
func (h *Handler) Duplicates(c *gin.Context) {
	var req DuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	minScore := h.threshold
	if req.MinScore != nil {
		if *req.MinScore < 0 || *req.MinScore > 100 {
			handlers.BadRequest(c, errors.New("min_score must be within 0-100"))
			return
		}
		minScore = *req.MinScore
	}

	candidate, err := core.ValidateJSON(string(req.Recipe))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	matches, err := h.finder.FindDuplicates(c.Request.Context(), candidate, minScore)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	if matches == nil {
		matches = []core.DuplicateMatch{}
	}
	c.JSON(http.StatusOK, DuplicatesResponse{Duplicates: matches})
}
