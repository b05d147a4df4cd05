package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 下流のコードは解決済みの値を受け取るのみで、環境変数を再解決しない。
type Config struct {
	// Database
	DatabaseURL string

	// Service credential（パイプライントリガーとソース管理APIの認証）
	ServiceToken string

	// AI Enrichment（未設定の場合エンリッチメントは無効化される）
	AIAPIKey    string
	AIEndpoint  string
	AIModel     string
	AITimeout   time.Duration
	AIBatchSize int

	// Pipeline
	OperationBudget  int
	SourcesPerRun    int
	InsertBatchSize  int
	InterSourceDelay time.Duration
	FallbackDelay    time.Duration

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Rate Limit（トリガーエンドポイント、req/min）
	RateLimitTrigger int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// AI_API_KEYは任意であり、未設定の場合はエンリッチメントなしで動作する。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ServiceToken = os.Getenv("SERVICE_TOKEN")
	if cfg.ServiceToken == "" {
		missing = append(missing, "SERVICE_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	cfg.AIEndpoint = getEnvString("AI_ENDPOINT", "https://api.openai.com/v1/chat/completions")
	cfg.AIModel = getEnvString("AI_MODEL", "gpt-4o-mini")
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 30*time.Second)
	cfg.AIBatchSize = getEnvInt("AI_BATCH_SIZE", 10)

	// 予算の既定値45は、1呼び出しあたり50サブリクエストという
	// ホスティングプラットフォームの上限に安全マージンを残した値。
	cfg.OperationBudget = getEnvInt("OPERATION_BUDGET", 45)
	cfg.SourcesPerRun = getEnvInt("SOURCES_PER_RUN", 10)
	cfg.InsertBatchSize = getEnvInt("INSERT_BATCH_SIZE", 20)
	cfg.InterSourceDelay = getEnvDuration("INTER_SOURCE_DELAY", 200*time.Millisecond)
	cfg.FallbackDelay = getEnvDuration("FALLBACK_DELAY", 50*time.Millisecond)

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)

	cfg.RateLimitTrigger = getEnvInt("RATE_LIMIT_TRIGGER", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// EnrichmentEnabled はAIエンリッチメントが有効かどうかを返す。
// APIキーが設定されていない場合はfalse（グレースフルデグラデーション）。
func (c *Config) EnrichmentEnabled() bool {
	return c.AIAPIKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
