package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/newspulse/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

const sourceColumns = `id, name, feed_url, active, last_fetched_at, last_error, created_at, updated_at`

// scanSource は1行分のソースを読み取る。
func scanSource(scan func(dest ...interface{}) error) (*model.Source, error) {
	source := &model.Source{}
	var lastFetchedAt sql.NullTime
	var lastError sql.NullString

	if err := scan(
		&source.ID, &source.Name, &source.FeedURL, &source.Active,
		&lastFetchedAt, &lastError, &source.CreatedAt, &source.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastFetchedAt.Valid {
		source.LastFetchedAt = &lastFetchedAt.Time
	}
	source.LastError = nullStringValue(lastError)

	return source, nil
}

// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id,
	)

	source, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}

	return source, nil
}

// FindByFeedURL はフィードURLでソースを検索する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByFeedURL(ctx context.Context, feedURL string) (*model.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE feed_url = $1`, feedURL,
	)

	source, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードURLによるソースの検索に失敗しました: %w", err)
	}

	return source, nil
}

// ListActive はアクティブなソースを全件取得する。
func (r *PostgresSourceRepo) ListActive(ctx context.Context) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE active = TRUE`,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティブソースの一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// List は全ソースを作成日時昇順で取得する。
func (r *PostgresSourceRepo) List(ctx context.Context) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// collectSources はクエリ結果の全行をソースとして読み取る。
func collectSources(rows *sql.Rows) ([]*model.Source, error) {
	var sources []*model.Source
	for rows.Next() {
		source, err := scanSource(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ソース行の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の走査に失敗しました: %w", err)
	}

	return sources, nil
}

// Create はソースを作成する。
func (r *PostgresSourceRepo) Create(ctx context.Context, source *model.Source) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, feed_url, active, last_fetched_at, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		source.ID, source.Name, source.FeedURL, source.Active,
		source.LastFetchedAt, nullString(source.LastError),
		source.CreatedAt, source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ソースの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateLastError はソースの直近エラーメッセージを記録する。
// last_fetched_atは変更しない（成功していないため前進させない）。
func (r *PostgresSourceRepo) UpdateLastError(ctx context.Context, sourceID, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET last_error = $2, updated_at = now() WHERE id = $1`,
		sourceID, nullString(errMsg),
	)
	if err != nil {
		return fmt.Errorf("ソースエラーの記録に失敗しました: %w", err)
	}
	return nil
}

// AdvanceLastFetched は指定ソース群のlast_fetched_atを1回のUPDATEで前進させる。
// 成功したソースのlast_errorは同時にクリアされる。
// sourceIDsが空の場合は何もしない。
func (r *PostgresSourceRepo) AdvanceLastFetched(ctx context.Context, sourceIDs []string, fetchedAt time.Time) error {
	if len(sourceIDs) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE sources
		 SET last_fetched_at = $1, last_error = NULL, updated_at = now()
		 WHERE id = ANY($2)`,
		fetchedAt, pq.Array(sourceIDs),
	)
	if err != nil {
		return fmt.Errorf("last_fetched_atの一括更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
