// Package model はドメインモデルを定義する。
package model

import "time"

// Source は取り込み対象の配信フィード（ソース）を表す。
// パイプラインはソースを削除しない。無効化はActiveフラグで行う。
type Source struct {
	ID            string
	Name          string
	FeedURL       string
	Active        bool
	LastFetchedAt *time.Time // 一度も成功していない場合はnil
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FeedItem はフィードパーサーが生成する正規化済みの未保存エントリを表す。
// Persistence Batcherに渡された後は破棄され、そのままの形では永続化されない。
type FeedItem struct {
	Title       string
	Description string // サニタイズ済み
	Link        string // 正規化済みカノニカルリンク（重複排除キー）
	PublishedAt time.Time
}
