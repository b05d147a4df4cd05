package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/newspulse/internal/ingest"
	"github.com/hitoshi/newspulse/internal/model"
	"github.com/hitoshi/newspulse/internal/repository"
)

// AnalysisClient はAI解析クライアントのインターフェース。
// テスト時にモックに差し替え可能。
type AnalysisClient interface {
	AnalyzeBatch(ctx context.Context, articles []*model.Article) (map[string]Analysis, error)
	AnalyzeOne(ctx context.Context, article *model.Article) (*Analysis, error)
}

// Coordinator は新規記事のエンリッチメントを調整する。
// 記事をバッチサイズごとに分割し、1バッチ＝1回のAPI呼び出し（1予算単位）で
// 解析する。バッチ呼び出しが失敗した場合は1記事ずつのフォールバック解析
// （1記事＝1予算単位）に切り替える。個別記事の失敗は隔離され、
// 残りの記事の解析は継続される。
// APIキーが設定されていない場合、解析は一切試行されない（グレースフルデグラデーション）。
type Coordinator struct {
	client        AnalysisClient
	articleRepo   repository.ArticleRepository
	topicRepo     repository.TopicRepository
	logger        *slog.Logger
	enabled       bool
	batchSize     int
	fallbackDelay time.Duration
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。
// batchSizeが0以下の場合はデフォルト値10を使用する。
// fallbackDelayは個別フォールバック呼び出しの間に挿入される待機時間。
// enabledがfalseの場合、EnrichArticlesは何も試行せずゼロ値の集計を返す。
func NewCoordinator(
	client AnalysisClient,
	articleRepo repository.ArticleRepository,
	topicRepo repository.TopicRepository,
	logger *slog.Logger,
	enabled bool,
	batchSize int,
	fallbackDelay time.Duration,
) *Coordinator {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Coordinator{
		client:        client,
		articleRepo:   articleRepo,
		topicRepo:     topicRepo,
		logger:        logger,
		enabled:       enabled,
		batchSize:     batchSize,
		fallbackDelay: fallbackDelay,
	}
}

// EnrichArticles は新規記事の感情・トピック解析を実行し、試行結果を返す。
// 解析結果のDB書き込み（感情ラベル更新、トピックのupsertと関連付け）は
// 外部フィードへの呼び出しではないため予算の対象外。
func (c *Coordinator) EnrichArticles(ctx context.Context, budget *ingest.Budget, articles []*model.Article) ingest.EnrichStats {
	stats := ingest.EnrichStats{}

	if !c.enabled || len(articles) == 0 {
		return stats
	}

	for offset := 0; offset < len(articles); offset += c.batchSize {
		end := offset + c.batchSize
		if end > len(articles) {
			end = len(articles)
		}
		chunk := articles[offset:end]

		// バッチ解析は1予算単位。確保できない場合は残りを試行せずに打ち切る。
		if !budget.Reserve(1) {
			c.logger.Warn("予算不足によりエンリッチメントを打ち切ります",
				slog.Int("remaining_articles", len(articles)-offset),
			)
			return stats
		}

		results, err := c.client.AnalyzeBatch(ctx, chunk)
		if err != nil {
			c.logger.Warn("バッチ解析に失敗したため1記事ずつのフォールバックに切り替えます",
				slog.Int("batch_size", len(chunk)),
				slog.String("error", err.Error()),
			)
			if done := c.fallbackAnalyze(ctx, budget, chunk, &stats); done {
				return stats
			}
			continue
		}

		stats.Attempted += len(chunk)
		for _, article := range chunk {
			analysis, ok := results[article.ID]
			if !ok {
				stats.Failed++
				continue
			}
			if c.apply(ctx, article, &analysis) {
				stats.Successful++
			} else {
				stats.Failed++
			}
		}
	}

	return stats
}

// fallbackAnalyze はバッチ失敗時の1記事ずつの解析を行う。
// AIプロバイダーへの連続アクセスを避けるため、呼び出しの間に待機を挟む。
// 各解析前に予算を1単位予約し、枯渇した場合はtrueを返して打ち切る。
func (c *Coordinator) fallbackAnalyze(ctx context.Context, budget *ingest.Budget, articles []*model.Article, stats *ingest.EnrichStats) bool {
	for i, article := range articles {
		if i > 0 && c.fallbackDelay > 0 {
			select {
			case <-ctx.Done():
				return true
			case <-time.After(c.fallbackDelay):
			}
		}
		if !budget.Reserve(1) {
			return true
		}

		stats.Attempted++
		analysis, err := c.client.AnalyzeOne(ctx, article)
		if err != nil {
			stats.Failed++
			c.logger.Warn("記事の個別解析に失敗しました",
				slog.String("article_id", article.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if c.apply(ctx, article, analysis) {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}

	return false
}

// apply は解析結果を記事に書き込む。
// 感情ラベルの更新に失敗した場合はfalseを返す。
// トピックの書き込み失敗はログに記録するのみで、記事の成功判定には影響しない。
func (c *Coordinator) apply(ctx context.Context, article *model.Article, analysis *Analysis) bool {
	if err := c.articleRepo.UpdateSentiment(ctx, article.ID, analysis.Sentiment); err != nil {
		c.logger.Error("感情ラベルの保存に失敗しました",
			slog.String("article_id", article.ID),
			slog.String("error", err.Error()),
		)
		return false
	}

	for _, name := range analysis.Topics {
		topic, err := c.topicRepo.FindOrCreate(ctx, name)
		if err != nil {
			c.logger.Error("トピックの作成に失敗しました",
				slog.String("article_id", article.ID),
				slog.String("topic", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := c.topicRepo.AttachTopic(ctx, article.ID, topic.ID); err != nil {
			c.logger.Error("トピックの関連付けに失敗しました",
				slog.String("article_id", article.ID),
				slog.String("topic_id", topic.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return true
}

// compile-time interface check
var _ ingest.Enricher = (*Coordinator)(nil)
var _ AnalysisClient = (*Client)(nil)
