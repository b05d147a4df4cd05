// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/newspulse/internal/model"
)

// SourceRepository はソース（Source Registry）の永続化インターフェース。
type SourceRepository interface {
	// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)

	// FindByFeedURL はフィードURLでソースを検索する。見つからない場合はnilを返す。
	FindByFeedURL(ctx context.Context, feedURL string) (*model.Source, error)

	// ListActive はアクティブなソースを全件取得する。
	// 並び順の保証はない。実行ごとの選択順はingest.SelectSourcesが決定する。
	ListActive(ctx context.Context) ([]*model.Source, error)

	// List は全ソースを作成日時昇順で取得する。管理API用。
	List(ctx context.Context) ([]*model.Source, error)

	// Create はソースを作成する。
	Create(ctx context.Context, source *model.Source) error

	// UpdateLastError はソースの直近エラーメッセージを記録する。
	// last_fetched_atは変更しない。
	UpdateLastError(ctx context.Context, sourceID, errMsg string) error

	// AdvanceLastFetched は指定ソース群のlast_fetched_atを1回のUPDATEで前進させ、
	// last_errorをクリアする。実行終了時のファイナライズで使用する。
	AdvanceLastFetched(ctx context.Context, sourceIDs []string, fetchedAt time.Time) error
}

// BatchInsertResult はバッチ挿入の結果を表す。
type BatchInsertResult struct {
	// Created は今回の呼び出しで新規作成された記事。
	Created []*model.Article
	// Duplicates はカノニカルリンク重複によりスキップされた件数。
	Duplicates int
}

// ArticleRepository は記事データの永続化インターフェース。
// カノニカルリンクの一意制約を重複排除のバックストップとして利用する。
type ArticleRepository interface {
	// BatchInsert は複数記事を1回の外部呼び出しで挿入する。
	// リンク重複の行はスキップされ、新規作成された記事と重複件数を返す。
	BatchInsert(ctx context.Context, articles []*model.Article) (*BatchInsertResult, error)

	// Insert は記事を1件挿入する。リンク重複の場合はfalseを返す（エラーではない）。
	Insert(ctx context.Context, article *model.Article) (bool, error)

	// UpdateSentiment は記事の感情ラベルを更新する。
	UpdateSentiment(ctx context.Context, articleID string, sentiment model.Sentiment) error
}

// TopicRepository はトピックと記事関連の永続化インターフェース。
type TopicRepository interface {
	// FindOrCreate は名前（大文字小文字を区別しない）でトピックを取得し、
	// 存在しない場合は作成する。一意インデックスが競合時のバックストップとなる。
	FindOrCreate(ctx context.Context, name string) (*model.Topic, error)

	// AttachTopic は記事とトピックの関連を冪等に作成する。
	AttachTopic(ctx context.Context, articleID, topicID string) error
}

// RunLease はパイプライン実行の多重起動を防ぐリースのインターフェース。
type RunLease interface {
	// TryAcquire はリースの取得を試みる。取得できない場合はfalseを返す。
	TryAcquire(ctx context.Context) (bool, error)

	// Release は取得済みリースを解放する。
	Release(ctx context.Context) error
}
