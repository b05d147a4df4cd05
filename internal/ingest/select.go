package ingest

import (
	"sort"

	"github.com/hitoshi/newspulse/internal/model"
)

// SelectSources は実行対象のソースを選択する。
// 一度もフェッチされていないソース（LastFetchedAtがnil）を最優先とし、
// 次にLastFetchedAtの古い順に並べる。同時刻の場合はCreatedAt、
// さらに同じ場合はIDで順序を安定させる。
// 結果はlimit件に制限される。入力スライスは変更しない。
func SelectSources(sources []*model.Source, limit int) []*model.Source {
	if limit <= 0 || len(sources) == 0 {
		return nil
	}

	ordered := make([]*model.Source, len(sources))
	copy(ordered, sources)

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]

		// 未フェッチのソースが最優先
		if a.LastFetchedAt == nil && b.LastFetchedAt != nil {
			return true
		}
		if a.LastFetchedAt != nil && b.LastFetchedAt == nil {
			return false
		}
		if a.LastFetchedAt != nil && b.LastFetchedAt != nil &&
			!a.LastFetchedAt.Equal(*b.LastFetchedAt) {
			return a.LastFetchedAt.Before(*b.LastFetchedAt)
		}

		// 決定的な順序のためのタイブレーク
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	return ordered
}
