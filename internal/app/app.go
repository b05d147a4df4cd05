// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newspulse/internal/config"
	"github.com/hitoshi/newspulse/internal/database"
	"github.com/hitoshi/newspulse/internal/enrich"
	"github.com/hitoshi/newspulse/internal/handler"
	"github.com/hitoshi/newspulse/internal/ingest"
	"github.com/hitoshi/newspulse/internal/logger"
	"github.com/hitoshi/newspulse/internal/metrics"
	"github.com/hitoshi/newspulse/internal/middleware"
	"github.com/hitoshi/newspulse/internal/repository"
	"github.com/hitoshi/newspulse/internal/security"
	sourcepkg "github.com/hitoshi/newspulse/internal/source"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("enrichment_enabled", cfg.EnrichmentEnabled()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandRun:
		return runOnce(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildRunner はパイプラインRunnerと依存サービスを構築する。
// serveモードとrun（1回実行）モードの双方から使用する。
func buildRunner(cfg *config.Config, db *sql.DB, collector *metrics.Collector) *ingest.Runner {
	sourceRepo := repository.NewPostgresSourceRepo(db)
	articleRepo := repository.NewPostgresArticleRepo(db)
	topicRepo := repository.NewPostgresTopicRepo(db)
	lease := repository.NewPostgresRunLease(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	fetcher := ingest.NewFetcher(
		ssrfGuard, sanitizer, slog.Default(),
		cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	batcher := ingest.NewBatcher(
		articleRepo, slog.Default(),
		cfg.InsertBatchSize, cfg.FallbackDelay,
	)

	aiClient := enrich.NewClient(
		&http.Client{Timeout: cfg.AITimeout},
		slog.Default(),
		cfg.AIEndpoint, cfg.AIAPIKey, cfg.AIModel,
	)
	coordinator := enrich.NewCoordinator(
		aiClient, articleRepo, topicRepo, slog.Default(),
		cfg.EnrichmentEnabled(), cfg.AIBatchSize, cfg.FallbackDelay,
	)

	return ingest.NewRunner(
		sourceRepo, fetcher, batcher, coordinator, lease, collector,
		slog.Default(),
		cfg.OperationBudget, cfg.SourcesPerRun, cfg.InterSourceDelay,
	)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	runner := buildRunner(cfg, db, collector)

	ssrfGuard := security.NewSSRFGuard()
	detector := sourcepkg.NewFeedDetector(ssrfGuard)
	sourceService := sourcepkg.NewService(
		repository.NewPostgresSourceRepo(db), detector, slog.Default(),
	)

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitTrigger),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		ServiceToken:  cfg.ServiceToken,
		RateLimiter:   rateLimiter,
		Logger:        slog.Default(),
		Runner:        runner,
		SourceService: sourceService,
		DB:            db,
		Gatherer:      registry,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // 同期実行のトリガーはフェッチ分の時間がかかる
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runOnce はパイプラインを1回だけ実行し、サマリーを標準出力に書いて終了する。
// cronなどの外部スケジューラからの起動用。
func runOnce(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	runner := buildRunner(cfg, db, collector)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	return json.NewEncoder(os.Stdout).Encode(summary)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
