package api

import (
	"net/http"
	"time"

	"recipe-ingest/internal/api/handlers/health"
	ingestHandler "recipe-ingest/internal/api/handlers/ingest"
	ingredientHandler "recipe-ingest/internal/api/handlers/ingredient"
	"recipe-ingest/internal/api/handlers/offline"
	recipeHandler "recipe-ingest/internal/api/handlers/recipe"
	"recipe-ingest/internal/api/middleware"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// 預設請求超時
	defaultTimeout = 120 * time.Second
	// multipart 表單欄位與邊界的額外空間
	multipartOverhead = 1 << 20
	// 非 multipart 請求體預設上限
	defaultMaxJSONBytes = 2 << 20
)

// Services 路由所需的服務
type Services struct {
	Pipeline    ingestHandler.Pipeline
	Batches     ingestHandler.Batches
	Ingredients ingredientHandler.Service
	Recipes     recipeHandler.Finder
	Outbox      offline.Outbox
	Health      health.Options
	Gatherer    prometheus.Gatherer
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// promhttp 自行協商壓縮
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	limits := middleware.BodyLimits{
		JSON:      cfg.Server.MaxJSONBytes,
		Multipart: cfg.Upload.MaxSizeBytes + multipartOverhead,
	}
	if limits.JSON <= 0 {
		limits.JSON = defaultMaxJSONBytes
	}
	router.Use(middleware.BodySizeLimit(limits))

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// 健康檢查與指標
	health.NewHandler(svc.Health).Register(router)
	gatherer := svc.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	if cfg.Upload.Dir != "" {
		router.Static("/uploads", cfg.Upload.Dir)
	}

	// API 路由組
	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(timeout))
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewClientLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.MaxClients)
		api.Use(limiter.Middleware())
	}
	api.Use(middleware.NewDeduplicator(cfg.DedupWindow).Middleware())
	{
		ingestHandler.NewHandler(svc.Pipeline, svc.Batches).Register(api.Group("/ingest"))
		ingredientHandler.NewHandler(svc.Ingredients).Register(api.Group("/ingredients"))
		recipeHandler.NewHandler(svc.Recipes, cfg.Ingest.DuplicateThreshold).Register(api.Group("/recipes"))
		offline.NewHandler(svc.Outbox).Register(api.Group("/offline"))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, common.ErrorResponse{
			Code:    common.ErrCodeNotFound,
			Message: common.ErrNotFound.Message,
		})
	})

	common.LogInfo("Router setup completed successfully",
		zap.Duration("timeout", timeout),
		zap.Int64("max_json_bytes", limits.JSON),
		zap.Int64("max_multipart_bytes", limits.Multipart),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
	)
	return router
}
