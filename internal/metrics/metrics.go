// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/newspulse/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// パイプライン実行（Runner）から実行単位で記録される。
type Collector struct {
	runs             prometheus.Counter
	runsStoppedEarly prometheus.Counter
	runDuration      prometheus.Histogram
	budgetConsumed   prometheus.Histogram
	sourcesSucceeded prometheus.Counter
	sourcesFailed    prometheus.Counter
	articlesCreated  prometheus.Counter
	duplicates       prometheus.Counter
	enrichAttempted  prometheus.Counter
	enrichSucceeded  prometheus.Counter
	enrichFailed     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_runs_total",
			Help: "パイプライン実行の合計数",
		}),
		runsStoppedEarly: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_runs_stopped_early_total",
			Help: "予算枯渇により途中で打ち切られた実行の合計数",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newspulse_run_duration_seconds",
			Help:    "パイプライン実行の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		budgetConsumed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newspulse_budget_consumed",
			Help:    "1実行あたりの消費予算単位数",
			Buckets: []float64{0, 5, 10, 20, 30, 40, 45, 50},
		}),
		sourcesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_sources_succeeded_total",
			Help: "処理に成功したソースの合計数",
		}),
		sourcesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_sources_failed_total",
			Help: "処理に失敗したソースの合計数",
		}),
		articlesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_articles_created_total",
			Help: "新規作成された記事の合計数",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_duplicates_skipped_total",
			Help: "リンク重複によりスキップされた記事の合計数",
		}),
		enrichAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_enrichment_attempted_total",
			Help: "AI解析を試行した記事の合計数",
		}),
		enrichSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_enrichment_succeeded_total",
			Help: "AI解析に成功した記事の合計数",
		}),
		enrichFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspulse_enrichment_failed_total",
			Help: "AI解析に失敗した記事の合計数",
		}),
	}

	reg.MustRegister(
		c.runs,
		c.runsStoppedEarly,
		c.runDuration,
		c.budgetConsumed,
		c.sourcesSucceeded,
		c.sourcesFailed,
		c.articlesCreated,
		c.duplicates,
		c.enrichAttempted,
		c.enrichSucceeded,
		c.enrichFailed,
	)

	return c
}

// RecordRun は1回のパイプライン実行の集計結果を記録する。
func (c *Collector) RecordRun(summary *model.RunSummary, budgetConsumed int, duration time.Duration) {
	c.runs.Inc()
	if summary.StoppedEarly {
		c.runsStoppedEarly.Inc()
	}
	c.runDuration.Observe(duration.Seconds())
	c.budgetConsumed.Observe(float64(budgetConsumed))
	c.sourcesSucceeded.Add(float64(summary.Succeeded))
	c.sourcesFailed.Add(float64(summary.Failed))
	c.articlesCreated.Add(float64(summary.ArticlesCreated))
	c.duplicates.Add(float64(summary.DuplicatesSkipped))
	c.enrichAttempted.Add(float64(summary.AIAnalysis.Attempted))
	c.enrichSucceeded.Add(float64(summary.AIAnalysis.Successful))
	c.enrichFailed.Add(float64(summary.AIAnalysis.Failed))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
