package enrich

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/newspulse/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func makeArticle(id, title string) *model.Article {
	return &model.Article{
		ID:          id,
		Title:       title,
		Link:        "https://example.com/" + id,
		PublishedAt: time.Now(),
	}
}

// chatCompletionBody はテスト用にチャット補完レスポンスを構築する。
func chatCompletionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestAnalyzeBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("リクエストボディの解析に失敗: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("model = %v", req["model"])
		}

		content := `{"results":[
			{"index":0,"sentiment":"positive","topics":["Tech","AI"]},
			{"index":1,"sentiment":"NEGATIVE","topics":["Economy"]},
			{"index":2,"sentiment":"confused","topics":["X"]}
		]}`
		w.Write(chatCompletionBody(t, content))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-key", "test-model")

	articles := []*model.Article{
		makeArticle("a1", "First"),
		makeArticle("a2", "Second"),
		makeArticle("a3", "Third"),
	}

	results, err := client.AnalyzeBatch(context.Background(), articles)
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}

	if got := results["a1"].Sentiment; got != model.SentimentPositive {
		t.Errorf("a1 sentiment = %q", got)
	}
	// 感情ラベルは大文字小文字を区別せず受理される
	if got := results["a2"].Sentiment; got != model.SentimentNegative {
		t.Errorf("a2 sentiment = %q", got)
	}
	// 不正なラベルの記事は結果に含まれない
	if _, ok := results["a3"]; ok {
		t.Error("不正な感情ラベルの記事は除外されるべき")
	}
	if !reflect.DeepEqual(results["a1"].Topics, []string{"Tech", "AI"}) {
		t.Errorf("a1 topics = %v", results["a1"].Topics)
	}
}

func TestAnalyzeBatchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-key", "test-model")

	if _, err := client.AnalyzeBatch(context.Background(), []*model.Article{makeArticle("a1", "t")}); err == nil {
		t.Fatal("非200ステータスはエラーになるべき")
	}
}

func TestAnalyzeBatchInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatCompletionBody(t, "I cannot respond in JSON, sorry."))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-key", "test-model")

	if _, err := client.AnalyzeBatch(context.Background(), []*model.Article{makeArticle("a1", "t")}); err == nil {
		t.Fatal("JSONでない応答はエラーになるべき")
	}
}

func TestAnalyzeBatchEmpty(t *testing.T) {
	client := NewClient(http.DefaultClient, testLogger(), "http://unused.invalid", "k", "m")

	results, err := client.AnalyzeBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("空入力はエラーではない: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v", results)
	}
}

func TestAnalyzeOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatCompletionBody(t, `{"results":[{"index":0,"sentiment":"neutral","topics":["Science"]}]}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-key", "test-model")

	analysis, err := client.AnalyzeOne(context.Background(), makeArticle("a1", "Solo"))
	if err != nil {
		t.Fatalf("AnalyzeOne failed: %v", err)
	}
	if analysis.Sentiment != model.SentimentNeutral {
		t.Errorf("sentiment = %q", analysis.Sentiment)
	}
}

func TestNormalizeTopics(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			"空白除去と空文字列の除外",
			[]string{" Tech ", "", "  "},
			[]string{"Tech"},
		},
		{
			"大文字小文字を区別しない重複排除（最初の表記を保持）",
			[]string{"AI", "ai", "Ai", "Economy"},
			[]string{"AI", "Economy"},
		},
		{
			"上限5件への切り詰め",
			[]string{"a", "b", "c", "d", "e", "f", "g"},
			[]string{"a", "b", "c", "d", "e"},
		},
		{
			"空入力",
			nil,
			[]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeTopics(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeTopics(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("normalizeTopics(%v)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}
