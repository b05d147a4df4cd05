package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newspulse/internal/model"
	"github.com/hitoshi/newspulse/internal/repository"
)

// ErrRunInProgress は別の実行がリースを保持している場合に返される。
var ErrRunInProgress = errors.New("パイプラインは既に実行中です")

// FeedFetcherService はフィードフェッチの実行インターフェース。
type FeedFetcherService interface {
	// FetchFeed はソースのフィードをフェッチしてパースし、正規化済みエントリを返す。
	FetchFeed(ctx context.Context, source *model.Source) ([]model.FeedItem, error)
}

// ArticlePersister はエントリのバッチ永続化のインターフェース。
type ArticlePersister interface {
	// Persist はエントリ群をバッチ単位で永続化する。
	Persist(ctx context.Context, budget *Budget, source *model.Source, items []model.FeedItem) *PersistResult
}

// EnrichStats はAIエンリッチメントの試行結果の集計を表す。
type EnrichStats struct {
	Attempted  int
	Successful int
	Failed     int
}

// Enricher は新規記事のAIエンリッチメントのインターフェース。
type Enricher interface {
	// EnrichArticles は新規記事の感情・トピック解析を実行し、試行結果を返す。
	// 予算が確保できない記事、または解析が無効化されている場合は試行せずに戻る。
	EnrichArticles(ctx context.Context, budget *Budget, articles []*model.Article) EnrichStats
}

// RunMetrics は実行結果のメトリクス記録のインターフェース。
type RunMetrics interface {
	RecordRun(summary *model.RunSummary, budgetConsumed int, duration time.Duration)
}

// 実行フェーズ。構造化ログでの進行状況の識別に使用する。
const (
	phaseSelecting  = "selecting_sources"
	phaseProcessing = "processing_source"
	phaseFinalizing = "finalizing"
	phaseDone       = "done"
)

// Runner はパイプライン実行全体を調整する。
// ソース選択、逐次フェッチ、バッチ永続化、エンリッチメント、
// 終了時のタイムスタンプ前進を1回の実行として束ねる。
// 実行は単一ゴルーチンで逐次的に行われ、リースにより多重起動が防止される。
type Runner struct {
	sourceRepo       repository.SourceRepository
	fetcher          FeedFetcherService
	batcher          ArticlePersister
	enricher         Enricher
	lease            repository.RunLease
	metrics          RunMetrics
	logger           *slog.Logger
	budgetLimit      int
	sourcesPerRun    int
	interSourceDelay time.Duration
}

// NewRunner はRunnerの新しいインスタンスを生成する。
// sourcesPerRunが0以下の場合はデフォルト値10を使用する。
func NewRunner(
	sourceRepo repository.SourceRepository,
	fetcher FeedFetcherService,
	batcher ArticlePersister,
	enricher Enricher,
	lease repository.RunLease,
	metrics RunMetrics,
	logger *slog.Logger,
	budgetLimit int,
	sourcesPerRun int,
	interSourceDelay time.Duration,
) *Runner {
	if sourcesPerRun <= 0 {
		sourcesPerRun = 10
	}
	return &Runner{
		sourceRepo:       sourceRepo,
		fetcher:          fetcher,
		batcher:          batcher,
		enricher:         enricher,
		lease:            lease,
		metrics:          metrics,
		logger:           logger,
		budgetLimit:      budgetLimit,
		sourcesPerRun:    sourcesPerRun,
		interSourceDelay: interSourceDelay,
	}
}

// Run はパイプラインを1回実行し、集計結果を返す。
// 別の実行がリースを保持している場合はErrRunInProgressを返す。
// ソース単位の失敗はサマリーに記録して継続する。エラーが返るのは
// リース取得やソース一覧取得などの構造的な失敗のみ。
func (r *Runner) Run(ctx context.Context) (*model.RunSummary, error) {
	acquired, err := r.lease.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("実行リースの取得に失敗しました: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if releaseErr := r.lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			r.logger.Error("実行リースの解放に失敗しました",
				slog.String("error", releaseErr.Error()),
			)
		}
	}()

	start := time.Now()
	budget := NewBudget(r.budgetLimit)
	summary := &model.RunSummary{
		Errors:          []model.SourceError{},
		SkippedArticles: []model.SkippedArticles{},
	}

	r.logger.Info("パイプライン実行を開始します",
		slog.String("phase", phaseSelecting),
		slog.Int("budget_limit", budget.Limit()),
		slog.Int("sources_per_run", r.sourcesPerRun),
	)

	active, err := r.sourceRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("アクティブソースの取得に失敗しました: %w", err)
	}

	selected := SelectSources(active, r.sourcesPerRun)
	var advanceIDs []string

	for i, source := range selected {
		if i > 0 && r.interSourceDelay > 0 {
			select {
			case <-ctx.Done():
				summary.StoppedEarly = true
			case <-time.After(r.interSourceDelay):
			}
		}
		if ctx.Err() != nil {
			summary.StoppedEarly = true
		}
		if summary.StoppedEarly {
			break
		}

		// フェッチは1予算単位。確保できない場合はここで打ち切る。
		if !budget.Reserve(1) {
			summary.StoppedEarly = true
			r.logger.Warn("予算不足によりソース処理を打ち切ります",
				slog.Int("remaining_sources", len(selected)-i),
			)
			break
		}

		summary.Processed++
		r.logger.Info("ソースを処理します",
			slog.String("phase", phaseProcessing),
			slog.String("source_id", source.ID),
			slog.String("source_name", source.Name),
			slog.Int("budget_remaining", budget.Remaining()),
		)

		items, err := r.fetcher.FetchFeed(ctx, source)
		if err != nil {
			summary.RecordSourceError(source.ID, source.Name, err.Error())
			// エラー記録は予算外。失敗ソースのlast_fetched_atは前進させない。
			if updateErr := r.sourceRepo.UpdateLastError(ctx, source.ID, err.Error()); updateErr != nil {
				r.logger.Error("ソースエラーの記録に失敗しました",
					slog.String("source_id", source.ID),
					slog.String("error", updateErr.Error()),
				)
			}
			continue
		}

		result := r.batcher.Persist(ctx, budget, source, items)
		summary.ArticlesCreated += len(result.Created)
		summary.DuplicatesSkipped += result.Duplicates
		summary.RecordSkippedArticles(source.ID, source.Name, result.Skipped)
		if result.StoppedEarly {
			summary.StoppedEarly = true
		}
		summary.Succeeded++

		stats := r.enricher.EnrichArticles(ctx, budget, result.Created)
		summary.AIAnalysis.Attempted += stats.Attempted
		summary.AIAnalysis.Successful += stats.Successful
		summary.AIAnalysis.Failed += stats.Failed

		// 全エントリが挿入まで到達したソースのみタイムスタンプを前進させる。
		// 予算不足でスキップが発生したソースは次回の実行で再フェッチされる
		// （重複排除により二重挿入は起きない）。
		if result.Complete() {
			advanceIDs = append(advanceIDs, source.ID)
		}
	}

	summary.SkippedSources = len(selected) - summary.Processed
	summary.HasMoreWork = summary.StoppedEarly ||
		summary.SkippedSources > 0 ||
		len(active) > len(selected)

	// ファイナライズ: 成功ソースのlast_fetched_atを1回のUPDATEで前進させる。
	// 外部フィードへの呼び出しではないため予算の対象外。
	r.logger.Info("実行をファイナライズします",
		slog.String("phase", phaseFinalizing),
		slog.Int("advance_count", len(advanceIDs)),
	)
	if err := r.sourceRepo.AdvanceLastFetched(ctx, advanceIDs, time.Now()); err != nil {
		// 前進に失敗したソースは次回再フェッチされるだけなので実行自体は成功とする
		r.logger.Error("last_fetched_atの前進に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordRun(summary, budget.Consumed(), duration)
	}

	r.logger.Info("パイプライン実行が完了しました",
		slog.String("phase", phaseDone),
		slog.Int("processed", summary.Processed),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("articles_created", summary.ArticlesCreated),
		slog.Int("duplicates_skipped", summary.DuplicatesSkipped),
		slog.Int("skipped_sources", summary.SkippedSources),
		slog.Bool("stopped_early", summary.StoppedEarly),
		slog.Bool("has_more_work", summary.HasMoreWork),
		slog.Int("budget_consumed", budget.Consumed()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return summary, nil
}
