package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newspulse/internal/metrics"
	"github.com/hitoshi/newspulse/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	ServiceToken string
	RateLimiter  *middleware.RateLimiter
	Logger       *slog.Logger

	// パイプライン
	Runner PipelineRunner

	// ソース管理
	SourceService SourceServiceInterface

	// ヘルスチェック
	DB *sql.DB

	// メトリクス（nilの場合は/metricsを公開しない）
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → ServiceAuthMiddleware
//
// /healthと/metricsは認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	runHandler := NewRunHandler(deps.Runner, deps.Logger)
	sourceHandler := NewSourceHandler(deps.SourceService)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.DB))

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- サービス認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewServiceAuthMiddleware(deps.ServiceToken))

		// POST /internal/runs - パイプライン実行トリガー（レート制限付き）
		r.With(deps.RateLimiter.TriggerMiddleware()).Post("/internal/runs", runHandler.TriggerRun)

		// ソース管理
		r.Route("/api/sources", func(r chi.Router) {
			r.Get("/", sourceHandler.ListSources)
			r.Post("/", sourceHandler.RegisterSource)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
