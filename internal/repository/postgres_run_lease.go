package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// runLeaseKey はアドバイザリロックのキー。パイプライン実行の排他専用。
const runLeaseKey = 0x4E505231 // "NPR1"

// PostgresRunLease はPostgreSQLのアドバイザリロックによる実行リース。
// セッションスコープのロックのため、接続が切れた場合も自動的に解放される。
type PostgresRunLease struct {
	db   *sql.DB
	conn *sql.Conn
}

// NewPostgresRunLease はPostgresRunLeaseを生成する。
func NewPostgresRunLease(db *sql.DB) *PostgresRunLease {
	return &PostgresRunLease{db: db}
}

// TryAcquire はリースの取得を試みる。
// 他の実行がロックを保持している場合はfalseを返す（ブロックしない）。
func (l *PostgresRunLease) TryAcquire(ctx context.Context) (bool, error) {
	// アドバイザリロックはセッション単位のため、専用の接続を確保する
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("リース用接続の取得に失敗しました: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock($1)`, runLeaseKey,
	).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("実行リースの取得に失敗しました: %w", err)
	}

	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release は取得済みリースを解放する。
func (l *PostgresRunLease) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}

	_, err := l.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, runLeaseKey)
	closeErr := l.conn.Close()
	l.conn = nil

	if err != nil {
		return fmt.Errorf("実行リースの解放に失敗しました: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("リース用接続のクローズに失敗しました: %w", closeErr)
	}
	return nil
}

// compile-time interface check
var _ RunLease = (*PostgresRunLease)(nil)
