// Package ingredient 食材圖片比對與別名的 HTTP 處理器
package ingredient

import (
	"context"
	"errors"
	"net/http"

	"recipe-ingest/internal/api/handlers"
	core "recipe-ingest/internal/core/ingredient"

	"github.com/gin-gonic/gin"
)

// Service 食材圖片服務
type Service interface {
	Resolve(ctx context.Context, names []string, minSimilarity float64) (*core.BatchResult, error)
	EnsurePhoto(ctx context.Context, name string) (*core.EnsureResult, error)
	GenerateAlternatives(ctx context.Context, name string) ([]string, error)
	AddAlternativeNames(ctx context.Context, id string, names []string) (*core.Photo, error)
}

// MatchRequest 批次比對
type MatchRequest struct {
	Names         []string `json:"names" binding:"required"`
	MinSimilarity float64  `json:"min_similarity,omitempty"`
}

// NameRequest 單一食材名稱
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// AlternativesRequest 要併入的別名
type AlternativesRequest struct {
	Names []string `json:"names" binding:"required"`
}

// AlternativesResponse 產生的別名
type AlternativesResponse struct {
	Name         string   `json:"name"`
	Alternatives []string `json:"alternatives"`
}

// Handler 食材處理器
type Handler struct {
	service Service
}

// NewHandler 創建食材處理器
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register 註冊路由
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/match", h.Match)
	g.POST("/photos", h.EnsurePhoto)
	g.POST("/alternatives", h.Alternatives)
	g.POST("/photos/:id/alternatives", h.AddAlternatives)
}

// Match 將食材名稱對應到圖片庫
func (h *Handler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	if req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		handlers.BadRequest(c, errors.New("min_similarity must be within 0-1"))
		return
	}
	res, err := h.service.Resolve(c.Request.Context(), req.Names, req.MinSimilarity)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// EnsurePhoto 沒有相符圖片時生成新圖片
func (h *Handler) EnsurePhoto(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	res, err := h.service.EnsurePhoto(c.Request.Context(), req.Name)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	switch {
	case res.Queued:
		c.JSON(http.StatusAccepted, res)
	case res.Created:
		c.JSON(http.StatusCreated, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// Alternatives 只產生別名，不寫入
func (h *Handler) Alternatives(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	alts, err := h.service.GenerateAlternatives(c.Request.Context(), req.Name)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	if alts == nil {
		alts = []string{}
	}
	c.JSON(http.StatusOK, AlternativesResponse{Name: req.Name, Alternatives: alts})
}

// AddAlternatives 併入別名，只增不減
func (h *Handler) AddAlternatives(c *gin.Context) {
	var req AlternativesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	photo, err := h.service.AddAlternativeNames(c.Request.Context(), c.Param("id"), req.Names)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}
