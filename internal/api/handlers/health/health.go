package health

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"recipe-ingest/internal/core/ingest"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// readinessTimeout 單一依賴檢查的時間上限
const readinessTimeout = 2 * time.Second

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status       string                 `json:"status"`
	Timestamp    time.Time              `json:"timestamp"`
	Version      string                 `json:"version"`
	Uptime       string                 `json:"uptime"`
	Runtime      map[string]interface{} `json:"runtime"`
	Queue        *ingest.QueueStatus    `json:"queue,omitempty"`
	OfflineQueue int                    `json:"offline_queue"`
	Online       bool                   `json:"online"`
}

// ReadinessResponse 各依賴的檢查結果
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Probe 依賴檢查
type Probe func(ctx context.Context) error

// Options 健康檢查所需的狀態來源，皆可為 nil
type Options struct {
	Version      string
	BatchStatus  func() *ingest.QueueStatus
	OfflineQueue func() int
	Online       func() bool
	Probes       map[string]Probe
}

// Handler 健康檢查處理器
type Handler struct {
	opts    Options
	started time.Time
}

// NewHandler 創建健康檢查處理器
func NewHandler(opts Options) *Handler {
	return &Handler{opts: opts, started: time.Now()}
}

// Register 註冊路由
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.ReadinessCheck)
	r.GET("/live", h.LivenessCheck)
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.opts.Version,
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
		Online: true,
	}
	if h.opts.BatchStatus != nil {
		response.Queue = h.opts.BatchStatus()
	}
	if h.opts.OfflineQueue != nil {
		response.OfflineQueue = h.opts.OfflineQueue()
	}
	if h.opts.Online != nil && !h.opts.Online() {
		response.Online = false
		response.Status = "degraded"
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)
	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 依序檢查每個依賴，任一失敗回 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	names := make([]string, 0, len(h.opts.Probes))
	for name := range h.opts.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := h.opts.Probes[name](ctx)
		cancel()
		if err != nil {
			resp.Status = "not_ready"
			resp.Checks[name] = err.Error()
			common.LogWarn("依賴檢查失敗", zap.String("dependency", name), zap.Error(err))
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ready" {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "alive",
		"goroutines": runtime.NumGoroutine(),
	})
}
