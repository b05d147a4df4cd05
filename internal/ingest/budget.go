// Package ingest はフィード取り込みパイプラインの中核を提供する。
// 予算トラッカー、ソース選択、フェッチ/パース、バッチ永続化、実行コーディネーターを含む。
package ingest

// Budget は1回の実行で消費できる外部呼び出し数を追跡する。
// 外部呼び出し（フィードのHTTP GET、記事のバッチINSERT、AIプロバイダー呼び出し）は
// 実行前に必ずReserveを通す。実行ループは単一ゴルーチンで動作するため、
// 同期は行わない。
type Budget struct {
	limit    int
	consumed int
}

// NewBudget は上限limitのBudgetを生成する。limitが負の場合は0として扱う。
func NewBudget(limit int) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

// Reserve はn単位の消費を試みる。
// 残量が足りる場合は消費してtrueを、足りない場合は消費せずfalseを返す。
// 部分的な予約は行わない（全量確保できない場合は一切消費しない）。
func (b *Budget) Reserve(n int) bool {
	if n <= 0 {
		return true
	}
	if b.consumed+n > b.limit {
		return false
	}
	b.consumed += n
	return true
}

// Remaining は残りの予算単位数を返す。
func (b *Budget) Remaining() int {
	return b.limit - b.consumed
}

// Consumed は消費済みの予算単位数を返す。
func (b *Budget) Consumed() int {
	return b.consumed
}

// Limit は予算の上限を返す。
func (b *Budget) Limit() int {
	return b.limit
}
