package ingest

import (
	"testing"
	"time"

	"github.com/hitoshi/newspulse/internal/model"
)

func makeSource(id string, lastFetchedAt *time.Time, createdAt time.Time) *model.Source {
	return &model.Source{
		ID:            id,
		Name:          "source-" + id,
		FeedURL:       "https://example.com/" + id + "/feed",
		Active:        true,
		LastFetchedAt: lastFetchedAt,
		CreatedAt:     createdAt,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// 未フェッチのソースが最優先、次にlast_fetched_atの古い順であることを確認する。
func TestSelectSourcesOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	sources := []*model.Source{
		makeSource("recent", timePtr(base.Add(48*time.Hour)), base),
		makeSource("never", nil, base),
		makeSource("old", timePtr(base.Add(1*time.Hour)), base),
	}

	selected := SelectSources(sources, 10)

	if len(selected) != 3 {
		t.Fatalf("選択数 = %d, want 3", len(selected))
	}
	want := []string{"never", "old", "recent"}
	for i, id := range want {
		if selected[i].ID != id {
			t.Errorf("selected[%d].ID = %s, want %s", i, selected[i].ID, id)
		}
	}
}

func TestSelectSourcesCap(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	var sources []*model.Source
	for i := 0; i < 15; i++ {
		sources = append(sources, makeSource(
			string(rune('a'+i)),
			timePtr(base.Add(time.Duration(i)*time.Hour)),
			base,
		))
	}

	selected := SelectSources(sources, 10)
	if len(selected) != 10 {
		t.Fatalf("選択数 = %d, want 10", len(selected))
	}
	// 最も古いソースから順に選ばれること
	if selected[0].ID != "a" {
		t.Errorf("selected[0].ID = %s, want a", selected[0].ID)
	}
}

// 同時刻の場合はCreatedAt、さらにIDで順序が安定することを確認する。
func TestSelectSourcesTieBreak(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	fetched := timePtr(base.Add(time.Hour))

	sources := []*model.Source{
		makeSource("b", fetched, base.Add(time.Minute)),
		makeSource("c", fetched, base),
		makeSource("a", fetched, base),
	}

	selected := SelectSources(sources, 10)

	want := []string{"a", "c", "b"}
	for i, id := range want {
		if selected[i].ID != id {
			t.Errorf("selected[%d].ID = %s, want %s", i, selected[i].ID, id)
		}
	}
}

func TestSelectSourcesInputNotModified(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	sources := []*model.Source{
		makeSource("z", timePtr(base.Add(time.Hour)), base),
		makeSource("a", nil, base),
	}

	SelectSources(sources, 1)

	if sources[0].ID != "z" || sources[1].ID != "a" {
		t.Error("入力スライスの順序が変更されている")
	}
}

func TestSelectSourcesEmptyAndZeroLimit(t *testing.T) {
	if got := SelectSources(nil, 10); got != nil {
		t.Errorf("空入力でnilを返すべき: %v", got)
	}
	sources := []*model.Source{makeSource("a", nil, time.Now())}
	if got := SelectSources(sources, 0); got != nil {
		t.Errorf("limit 0でnilを返すべき: %v", got)
	}
}
