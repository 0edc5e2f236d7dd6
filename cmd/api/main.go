package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-ingest/internal/api"
	"recipe-ingest/internal/api/handlers/health"
	"recipe-ingest/internal/core/ai/service"
	"recipe-ingest/internal/core/checkpoint"
	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/core/ingest"
	"recipe-ingest/internal/core/ingredient"
	"recipe-ingest/internal/core/recipe"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/infrastructure/inbox"
	"recipe-ingest/internal/infrastructure/postgres"
	"recipe-ingest/internal/infrastructure/schedule"
	"recipe-ingest/internal/infrastructure/storage"
	"recipe-ingest/internal/pkg/common"
	"recipe-ingest/internal/pkg/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_api_key", common.MaskSecret(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
		zap.String("entity_backend", cfg.Entity.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)
	probes := make(map[string]health.Probe)

	// 進度儲存
	kv, closeKV, err := openCheckpointKV(cfg.Checkpoint, probes)
	if err != nil {
		common.LogFatal("Failed to initialize checkpoint store", zap.Error(err))
	}
	defer closeKV()
	checkpoints := checkpoint.NewStore(kv, cfg.Checkpoint.Namespace)

	// 實體儲存
	store, closeStore, err := openEntityStore(ctx, cfg.Entity)
	if err != nil {
		common.LogFatal("Failed to initialize entity store", zap.Error(err))
	}
	defer closeStore()
	var probe resilience.ProbeFunc
	if p, ok := store.(entity.Pinger); ok {
		probe = p.Ping
		probes["entity_store"] = p.Ping
	}

	// 重試與離線佇列
	floodGuard := common.NewFloodGuard(cfg.Resilience.LogFloodLimit)
	exec := resilience.NewExecutor(
		resilience.NewPolicy(cfg.Resilience, nil),
		cfg.Resilience.MaxRetries,
		resilience.WithMetrics(m),
		resilience.WithFloodGuard(floodGuard),
	)
	queue := resilience.NewOfflineQueue(ctx, checkpoints, m)
	writer := resilience.NewWriter(exec, store, queue)
	monitor := resilience.NewMonitor(probe, writer)

	// 生成服務與上傳
	aiService := service.NewService(cfg)
	uploads, err := storage.NewLocal(cfg.Upload)
	if err != nil {
		common.LogFatal("Failed to initialize upload storage", zap.Error(err))
	}

	// 匯入流程
	validator := source.NewValidator(cfg.Upload.MaxSizeBytes, cfg.Upload.AllowedTypes)
	repo := recipe.NewRepository(store, writer, exec)
	pipeline := ingest.NewPipeline(ingest.Dependencies{
		Extractor:   source.NewExtractor(validator, aiService.Text(), uploads, exec, cfg.Resilience.ExtractRetries),
		Normalizer:  ingest.NewNormalizer(cfg.Ingest),
		Text:        aiService.Text(),
		Executor:    exec,
		Checkpoints: checkpoints,
		Recipes:     repo,
		Categories:  recipe.NewCategories(store, exec, 0),
		Metrics:     m,
		FloodGuard:  floodGuard,
	}, ingest.Options{
		ExtractRetries:     cfg.Resilience.ExtractRetries,
		DuplicateThreshold: cfg.Ingest.DuplicateThreshold,
	})
	batches := ingest.NewBatchRunner(pipeline, cfg.Ingest.BatchWorkers, cfg.Ingest.BatchQueueSize)
	batches.Start(ctx)

	// 食材圖片
	altNames := ingredient.NewFallbackGenerator(
		ingredient.NewRemoteGenerator(aiService.Text(), exec),
		ingredient.RuleGenerator{},
	)
	ingredients := ingredient.NewService(store, writer, exec, aiService.Image(), uploads, altNames, m, ingredient.Options{
		MinSimilarity: cfg.Matcher.MinSimilarity,
		CacheSize:     cfg.Matcher.CacheSize,
		CacheTTL:      cfg.Matcher.CacheTTL,
	})

	// 排程：連線檢查與離線佇列重送
	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(monitor, cfg.Schedule.FlushSpec); err != nil {
		common.LogFatal("Failed to schedule offline queue flush", zap.Error(err))
	}
	scheduler.Start(ctx)
	scheduler.RunNow(monitor.Name())

	// 匯入資料夾
	var watcher *inbox.Watcher
	if cfg.Inbox.Enabled {
		watcher, err = inbox.NewWatcher(cfg.Inbox.Dir, cfg.Inbox.Extensions, func(ctx context.Context, sessionID string, src *source.RawSource) error {
			_, err := pipeline.Start(ctx, sessionID, src)
			return err
		})
		if err != nil {
			common.LogFatal("Failed to initialize inbox watcher", zap.Error(err))
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				common.LogError("Inbox watcher stopped", zap.Error(err))
			}
		}()
	}

	router := api.SetupRouter(cfg, api.Services{
		Pipeline:    pipeline,
		Batches:     batches,
		Ingredients: ingredients,
		Recipes:     repo,
		Outbox:      writer,
		Health: health.Options{
			Version:      cfg.App.Version,
			BatchStatus:  batches.Status,
			OfflineQueue: queue.Len,
			Online:       monitor.Online,
			Probes:       probes,
		},
		Gatherer: registry,
	})

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	if watcher != nil {
		_ = watcher.Close()
	}
	scheduler.Stop()
	batches.Close()

	common.LogInfo("Server exited")
}

// openCheckpointKV 依設定選擇進度儲存後端
func openCheckpointKV(cfg config.CheckpointConfig, probes map[string]health.Probe) (checkpoint.KV, func(), error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv := checkpoint.NewRedisKV(client, cfg.TTL)
		probes["checkpoint"] = kv.Ping
		return kv, func() { _ = client.Close() }, nil
	case "memory":
		common.LogWarn("進度儲存使用記憶體，重新啟動後進度會遺失")
		return checkpoint.NewMemoryKV(), func() {}, nil
	default:
		kv, err := checkpoint.OpenBoltKV(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	}
}

// openEntityStore 依設定選擇實體儲存後端
func openEntityStore(ctx context.Context, cfg config.EntityConfig) (entity.Store, func(), error) {
	if cfg.Backend == "postgres" {
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	common.LogWarn("實體儲存使用記憶體，資料不會保存")
	return entity.NewMemoryStore(), func() {}, nil
}
