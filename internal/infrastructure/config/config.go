package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Gemini      GeminiConfig     `mapstructure:"gemini"`
	AI          AIConfig         `mapstructure:"ai"`
	Resilience  ResilienceConfig `mapstructure:"resilience"`
	Checkpoint  CheckpointConfig `mapstructure:"checkpoint"`
	Entity      EntityConfig     `mapstructure:"entity"`
	Upload      UploadConfig     `mapstructure:"upload"`
	Ingest      IngestConfig     `mapstructure:"ingest"`
	Matcher     MatcherConfig    `mapstructure:"matcher"`
	Schedule    ScheduleConfig   `mapstructure:"schedule"`
	Inbox       InboxConfig      `mapstructure:"inbox"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogDir      string           `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxJSONBytes   int64         `mapstructure:"max_json_bytes"` // 非 multipart 請求體上限
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	ImageModel string        `mapstructure:"image_model"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// GeminiConfig Gemini 配置，作為文字生成的備援
type GeminiConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// AIConfig AI 快取設定
type AIConfig struct {
	CacheEnabled bool          `mapstructure:"cache_enabled"`
	CacheSize    int           `mapstructure:"cache_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// ResilienceConfig 重試策略設定
type ResilienceConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	ExtractRetries    int           `mapstructure:"extract_retries"`
	ServerErrorBase   time.Duration `mapstructure:"server_error_base"`
	ServerErrorJitter time.Duration `mapstructure:"server_error_jitter"`
	RateLimitBase     time.Duration `mapstructure:"rate_limit_base"`
	LogFloodLimit     int           `mapstructure:"log_flood_limit"`
}

// CheckpointConfig 進度儲存設定
type CheckpointConfig struct {
	Backend   string        `mapstructure:"backend"` // bolt | redis | memory
	Path      string        `mapstructure:"path"`
	Namespace string        `mapstructure:"namespace"`
	TTL       time.Duration `mapstructure:"ttl"`
	Redis     RedisConfig   `mapstructure:"redis"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EntityConfig 資料儲存設定
type EntityConfig struct {
	Backend string `mapstructure:"backend"` // memory | postgres
	DSN     string `mapstructure:"dsn"`
}

// UploadConfig 檔案上傳設定
type UploadConfig struct {
	Dir           string   `mapstructure:"dir"`
	PublicBaseURL string   `mapstructure:"public_base_url"`
	MaxSizeBytes  int64    `mapstructure:"max_size_bytes"`
	AllowedTypes  []string `mapstructure:"allowed_types"`
}

// IngestConfig 匯入流程設定
type IngestConfig struct {
	MinTextLength      int `mapstructure:"min_text_length"`
	MinFileLength      int `mapstructure:"min_file_length"`
	MinURLLength       int `mapstructure:"min_url_length"`
	DuplicateThreshold int `mapstructure:"duplicate_threshold"`
	BatchWorkers       int `mapstructure:"batch_workers"`
	BatchQueueSize     int `mapstructure:"batch_queue_size"`
}

// MatcherConfig 食材圖片比對設定
type MatcherConfig struct {
	MinSimilarity float64       `mapstructure:"min_similarity"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// ScheduleConfig 排程設定
type ScheduleConfig struct {
	FlushSpec string `mapstructure:"flush_spec"`
}

// InboxConfig 匯入資料夾監看設定
type InboxConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Dir        string   `mapstructure:"dir"`
	Extensions []string `mapstructure:"extensions"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Requests   int           `mapstructure:"requests"` // 每個客戶端在 window 內的請求數
	Window     time.Duration `mapstructure:"window"`
	MaxClients int           `mapstructure:"max_clients"`
}

// LoadConfig 載入設定，.env 檔案可有可無
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用環境變量
	_ = v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("entity.dsn", "DATABASE_URL")
	_ = v.BindEnv("checkpoint.redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration", "openrouter_api_key:", maskAPIKey(v.GetString("openrouter.api_key")), "openrouter_model:", v.GetString("openrouter.model"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-ingest")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "150s")
	v.SetDefault("server.max_json_bytes", 2*1024*1024)

	// OpenRouter 設定
	v.SetDefault("openrouter.enabled", true)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "qwen/qwen2.5-vl-72b-instruct:free")
	v.SetDefault("openrouter.image_model", "google/gemini-2.5-flash-image-preview")
	v.SetDefault("openrouter.max_tokens", 4096)
	v.SetDefault("openrouter.timeout", "60s")

	// Gemini 設定
	v.SetDefault("gemini.enabled", false)
	v.SetDefault("gemini.model", "gemini-2.0-flash")

	// AI 快取
	v.SetDefault("ai.cache_enabled", true)
	v.SetDefault("ai.cache_size", 256)
	v.SetDefault("ai.cache_ttl", "1h")

	// 重試策略
	v.SetDefault("resilience.max_retries", 3)
	v.SetDefault("resilience.extract_retries", 4)
	v.SetDefault("resilience.server_error_base", "1s")
	v.SetDefault("resilience.server_error_jitter", "1s")
	v.SetDefault("resilience.rate_limit_base", "5s")
	v.SetDefault("resilience.log_flood_limit", 20)

	// 進度儲存
	v.SetDefault("checkpoint.backend", "bolt")
	v.SetDefault("checkpoint.path", "data/checkpoints.db")
	v.SetDefault("checkpoint.namespace", "recipe-ingest")
	v.SetDefault("checkpoint.ttl", "168h")
	v.SetDefault("checkpoint.redis.addr", "localhost:6379")

	// 資料儲存
	v.SetDefault("entity.backend", "memory")

	// 上傳
	v.SetDefault("upload.dir", "data/uploads")
	v.SetDefault("upload.public_base_url", "http://localhost:8080/uploads")
	v.SetDefault("upload.max_size_bytes", 10*1024*1024) // 10MB
	v.SetDefault("upload.allowed_types", []string{"application/pdf", "image/jpeg", "image/png", "image/webp"})

	// 匯入流程
	v.SetDefault("ingest.min_text_length", 30)
	v.SetDefault("ingest.min_file_length", 50)
	v.SetDefault("ingest.min_url_length", 100)
	v.SetDefault("ingest.duplicate_threshold", 65)
	v.SetDefault("ingest.batch_workers", 3)
	v.SetDefault("ingest.batch_queue_size", 50)

	// 比對
	v.SetDefault("matcher.min_similarity", 0.8)
	v.SetDefault("matcher.cache_size", 1024)
	v.SetDefault("matcher.cache_ttl", "10m")

	// 排程
	v.SetDefault("schedule.flush_spec", "*/1 * * * *")

	// 匯入資料夾
	v.SetDefault("inbox.enabled", false)
	v.SetDefault("inbox.dir", "data/inbox")
	v.SetDefault("inbox.extensions", []string{".pdf", ".jpg", ".jpeg", ".png", ".webp", ".txt"})

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.max_clients", 10000)

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	if config.Resilience.MaxRetries <= 0 {
		return fmt.Errorf("invalid resilience max retries")
	}
	if config.Resilience.ExtractRetries <= 0 {
		return fmt.Errorf("invalid resilience extract retries")
	}

	switch config.Checkpoint.Backend {
	case "bolt":
		if config.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint path is required for bolt backend")
		}
	case "redis":
		if config.Checkpoint.Redis.Addr == "" {
			return fmt.Errorf("checkpoint redis addr is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported checkpoint backend: %s", config.Checkpoint.Backend)
	}

	switch config.Entity.Backend {
	case "memory":
	case "postgres":
		if config.Entity.DSN == "" {
			return fmt.Errorf("entity dsn is required for postgres backend")
		}
	default:
		return fmt.Errorf("unsupported entity backend: %s", config.Entity.Backend)
	}

	if config.Upload.MaxSizeBytes <= 0 {
		return fmt.Errorf("invalid upload max size")
	}
	if config.Ingest.DuplicateThreshold < 0 || config.Ingest.DuplicateThreshold > 100 {
		return fmt.Errorf("duplicate threshold must be within 0-100")
	}
	if config.Ingest.BatchWorkers <= 0 || config.Ingest.BatchQueueSize <= 0 {
		return fmt.Errorf("invalid batch workers or queue size")
	}
	if config.Matcher.MinSimilarity < 0 || config.Matcher.MinSimilarity > 1 {
		return fmt.Errorf("matcher min similarity must be within 0-1")
	}
	if config.OpenRouter.Enabled && config.OpenRouter.APIKey == "" && !config.Gemini.Enabled {
		return fmt.Errorf("openrouter api key is required when no fallback provider is enabled")
	}
	return nil
}
