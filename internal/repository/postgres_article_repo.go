package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/newspulse/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
// articles.linkの一意制約を重複排除のバックストップとして利用する。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// BatchInsert は複数記事を1回の外部呼び出し（マルチVALUES INSERT）で挿入する。
// ON CONFLICT (link) DO NOTHINGによりリンク重複の行はスキップされ、
// RETURNING idで実際に作成された行を特定する。IDで照合するため、
// 同一バッチ内にリンクが重複する記事が混入しても敗者は重複として計上される。
// articlesが空の場合は空の結果を返す。
func (r *PostgresArticleRepo) BatchInsert(ctx context.Context, articles []*model.Article) (*BatchInsertResult, error) {
	if len(articles) == 0 {
		return &BatchInsertResult{}, nil
	}

	// マルチVALUESのプレースホルダを動的に構築
	const columnsPerRow = 9
	placeholders := make([]string, 0, len(articles))
	args := make([]interface{}, 0, len(articles)*columnsPerRow)

	for i, a := range articles {
		base := i * columnsPerRow
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			a.ID, a.SourceID, a.Title, nullString(a.Description), a.Link,
			a.PublishedAt, nullSentiment(a.Sentiment), a.CreatedAt, a.UpdatedAt,
		)
	}

	query := `INSERT INTO articles (id, source_id, title, description, link, published_at, sentiment, created_at, updated_at)
		 VALUES ` + strings.Join(placeholders, ", ") + `
		 ON CONFLICT (link) DO NOTHING
		 RETURNING id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事のバッチ挿入に失敗しました: %w", err)
	}
	defer rows.Close()

	createdIDs := make(map[string]bool, len(articles))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("バッチ挿入結果の読み取りに失敗しました: %w", err)
		}
		createdIDs[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("バッチ挿入結果の走査に失敗しました: %w", err)
	}

	result := &BatchInsertResult{}
	for _, a := range articles {
		if createdIDs[a.ID] {
			result.Created = append(result.Created, a)
		} else {
			result.Duplicates++
		}
	}

	return result, nil
}

// Insert は記事を1件挿入する。
// リンク重複の場合はfalseを返す。重複は正常系でありエラーではない。
func (r *PostgresArticleRepo) Insert(ctx context.Context, article *model.Article) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, source_id, title, description, link, published_at, sentiment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (link) DO NOTHING`,
		article.ID, article.SourceID, article.Title, nullString(article.Description),
		article.Link, article.PublishedAt, nullSentiment(article.Sentiment),
		article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("記事の挿入に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// UpdateSentiment は記事の感情ラベルを更新する。
func (r *PostgresArticleRepo) UpdateSentiment(ctx context.Context, articleID string, sentiment model.Sentiment) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET sentiment = $2, updated_at = now() WHERE id = $1`,
		articleID, string(sentiment),
	)
	if err != nil {
		return fmt.Errorf("感情ラベルの更新に失敗しました: %w", err)
	}
	return nil
}

// nullSentiment は*model.Sentimentをsql.NullStringに変換する。
func nullSentiment(s *model.Sentiment) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
