package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newspulse/internal/model"
)

// PostgresTopicRepo はPostgreSQLを使用したトピックリポジトリ。
// lower(name)の一意インデックスが同時作成の競合に対するバックストップとなる。
type PostgresTopicRepo struct {
	db *sql.DB
}

// NewPostgresTopicRepo はPostgresTopicRepoを生成する。
func NewPostgresTopicRepo(db *sql.DB) *PostgresTopicRepo {
	return &PostgresTopicRepo{db: db}
}

// FindOrCreate は名前（大文字小文字を区別しない）でトピックを取得し、
// 存在しない場合は作成する。
// 手順: 正規化名で検索 → 不在なら挿入 → 競合（同時挿入）の場合は再検索。
func (r *PostgresTopicRepo) FindOrCreate(ctx context.Context, name string) (*model.Topic, error) {
	topic, err := r.findByNormalizedName(ctx, name)
	if err != nil {
		return nil, err
	}
	if topic != nil {
		return topic, nil
	}

	now := time.Now()
	created := &model.Topic{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO topics (id, name, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (lower(name)) DO NOTHING`,
		created.ID, created.Name, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("トピックの作成に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("トピック作成件数の取得に失敗しました: %w", err)
	}
	if affected > 0 {
		return created, nil
	}

	// 同時挿入に敗れた場合は勝者の行を取得する
	topic, err = r.findByNormalizedName(ctx, name)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, fmt.Errorf("トピックの作成競合後に行が見つかりません: %s", name)
	}

	return topic, nil
}

// findByNormalizedName はlower(name)でトピックを検索する。見つからない場合はnilを返す。
func (r *PostgresTopicRepo) findByNormalizedName(ctx context.Context, name string) (*model.Topic, error) {
	topic := &model.Topic{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM topics WHERE lower(name) = lower($1)`,
		name,
	).Scan(&topic.ID, &topic.Name, &topic.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("トピックの検索に失敗しました: %w", err)
	}

	return topic, nil
}

// AttachTopic は記事とトピックの関連を冪等に作成する。
func (r *PostgresTopicRepo) AttachTopic(ctx context.Context, articleID, topicID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO article_topics (article_id, topic_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		articleID, topicID,
	)
	if err != nil {
		return fmt.Errorf("記事トピック関連の作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TopicRepository = (*PostgresTopicRepo)(nil)
