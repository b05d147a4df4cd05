package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newspulse/internal/model"
	"github.com/hitoshi/newspulse/internal/repository"
)

// Batcher はパース済みエントリのバッチ永続化を行う。
// エントリをバッチサイズごとに分割し、1バッチ＝1回の外部呼び出し（1予算単位）で
// 挿入する。バッチ呼び出しが失敗した場合は1件ずつのフォールバック挿入
// （1件＝1予算単位）に切り替え、個別の失敗がバッチ全体を道連れにしないよう隔離する。
type Batcher struct {
	articleRepo   repository.ArticleRepository
	logger        *slog.Logger
	batchSize     int
	fallbackDelay time.Duration
}

// NewBatcher はBatcherの新しいインスタンスを生成する。
// batchSizeが0以下の場合はデフォルト値20を使用する。
func NewBatcher(
	articleRepo repository.ArticleRepository,
	logger *slog.Logger,
	batchSize int,
	fallbackDelay time.Duration,
) *Batcher {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Batcher{
		articleRepo:   articleRepo,
		logger:        logger,
		batchSize:     batchSize,
		fallbackDelay: fallbackDelay,
	}
}

// PersistResult は1ソース分の永続化結果を表す。
type PersistResult struct {
	// Created は今回の実行で新規作成された記事。エンリッチメント対象となる。
	Created []*model.Article
	// Duplicates はカノニカルリンク重複によりスキップされた件数。
	Duplicates int
	// Skipped は予算不足により挿入されなかった件数。
	Skipped int
	// Failed はフォールバック挿入で個別に失敗した件数。
	Failed int
	// StoppedEarly は予算枯渇により途中で打ち切られたかどうか。
	StoppedEarly bool
}

// Complete は全エントリが挿入まで到達した（予算スキップが発生しなかった）
// ことを表す。ソースのlast_fetched_at前進の判定に使用する。
func (r *PersistResult) Complete() bool {
	return !r.StoppedEarly && r.Skipped == 0
}

// Persist はエントリ群をバッチ単位で永続化する。
// 各バッチの挿入前に予算を1単位予約する。予算が確保できない場合、
// 残りの全エントリをスキップとして計上し打ち切る。
func (b *Batcher) Persist(ctx context.Context, budget *Budget, source *model.Source, items []model.FeedItem) *PersistResult {
	result := &PersistResult{}

	for offset := 0; offset < len(items); offset += b.batchSize {
		end := offset + b.batchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[offset:end]

		if !budget.Reserve(1) {
			result.Skipped += len(items) - offset
			result.StoppedEarly = true
			b.logger.Warn("予算不足により記事の挿入を打ち切ります",
				slog.String("source_id", source.ID),
				slog.Int("skipped", result.Skipped),
			)
			return result
		}

		articles := b.toArticles(source, chunk)
		inserted, err := b.articleRepo.BatchInsert(ctx, articles)
		if err != nil {
			b.logger.Warn("バッチ挿入に失敗したため1件ずつのフォールバックに切り替えます",
				slog.String("source_id", source.ID),
				slog.Int("batch_size", len(articles)),
				slog.String("error", err.Error()),
			)
			if done := b.fallbackInsert(ctx, budget, source, articles, result); done {
				// 予算枯渇: 残りのバッチもスキップとして計上
				result.Skipped += len(items) - end
				result.StoppedEarly = true
				return result
			}
			continue
		}

		result.Created = append(result.Created, inserted.Created...)
		result.Duplicates += inserted.Duplicates
	}

	return result
}

// fallbackInsert はバッチ失敗時の1件ずつの挿入を行う。
// 各挿入前に予算を1単位予約し、枯渇した場合はtrueを返して打ち切る。
// 個別の挿入失敗はFailedに計上して次のエントリへ継続する（隔離）。
func (b *Batcher) fallbackInsert(ctx context.Context, budget *Budget, source *model.Source, articles []*model.Article, result *PersistResult) bool {
	for i, article := range articles {
		if i > 0 && b.fallbackDelay > 0 {
			select {
			case <-ctx.Done():
				result.Skipped += len(articles) - i
				return true
			case <-time.After(b.fallbackDelay):
			}
		}

		if !budget.Reserve(1) {
			result.Skipped += len(articles) - i
			return true
		}

		created, err := b.articleRepo.Insert(ctx, article)
		if err != nil {
			result.Failed++
			b.logger.Warn("記事の個別挿入に失敗しました",
				slog.String("source_id", source.ID),
				slog.String("link", article.Link),
				slog.String("error", err.Error()),
			)
			continue
		}

		if created {
			result.Created = append(result.Created, article)
		} else {
			result.Duplicates++
		}
	}

	return false
}

// toArticles はFeedItemから永続化用のArticleを構築する。
func (b *Batcher) toArticles(source *model.Source, items []model.FeedItem) []*model.Article {
	now := time.Now()
	articles := make([]*model.Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, &model.Article{
			ID:          uuid.New().String(),
			SourceID:    source.ID,
			Title:       item.Title,
			Description: item.Description,
			Link:        item.Link,
			PublishedAt: item.PublishedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return articles
}
