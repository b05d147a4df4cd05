package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newspulse/internal/middleware"
	"github.com/hitoshi/newspulse/internal/model"
)

// mockSourceService はテスト用のSourceServiceInterfaceモック。
type mockSourceService struct {
	registered  *model.Source
	registerErr error
	sources     []*model.Source
	listErr     error
}

func (m *mockSourceService) Register(_ context.Context, name, inputURL string) (*model.Source, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return m.registered, nil
}

func (m *mockSourceService) List(_ context.Context) ([]*model.Source, error) {
	return m.sources, m.listErr
}

func TestRegisterSourceSuccess(t *testing.T) {
	created := &model.Source{
		ID:        "src-1",
		Name:      "Example News",
		FeedURL:   "https://example.com/feed.xml",
		Active:    true,
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	h := NewSourceHandler(&mockSourceService{registered: created})

	req := httptest.NewRequest(http.MethodPost, "/api/sources",
		strings.NewReader(`{"name":"Example News","url":"https://example.com"}`))
	rec := httptest.NewRecorder()

	h.RegisterSource(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディの解析に失敗: %v", err)
	}
	if body["id"] != "src-1" {
		t.Errorf("id = %v", body["id"])
	}
	if body["feedUrl"] != "https://example.com/feed.xml" {
		t.Errorf("feedUrl = %v", body["feedUrl"])
	}
	if body["active"] != true {
		t.Errorf("active = %v", body["active"])
	}
}

func TestRegisterSourceInvalidJSON(t *testing.T) {
	h := NewSourceHandler(&mockSourceService{})

	req := httptest.NewRequest(http.MethodPost, "/api/sources", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.RegisterSource(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegisterSourceEmptyURL(t *testing.T) {
	h := NewSourceHandler(&mockSourceService{})

	req := httptest.NewRequest(http.MethodPost, "/api/sources", strings.NewReader(`{"name":"x","url":""}`))
	rec := httptest.NewRecorder()

	h.RegisterSource(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディの解析に失敗: %v", err)
	}
	if body.Code != model.ErrCodeInvalidURL {
		t.Errorf("code = %q, want INVALID_URL", body.Code)
	}
}

// サービス層のAPIErrorが対応するHTTPステータスに変換されること。
func TestRegisterSourceServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *model.APIError
		wantStatus int
	}{
		{"重複ソース", model.NewDuplicateSourceError("https://example.com/feed.xml"), http.StatusConflict},
		{"SSRFブロック", model.NewSSRFBlockedError(), http.StatusBadRequest},
		{"フィード未検出", model.NewFeedNotDetectedError("https://example.com"), http.StatusUnprocessableEntity},
		{"フィード取得失敗", model.NewFetchFailedError("connection refused"), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSourceHandler(&mockSourceService{registerErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/sources",
				strings.NewReader(`{"name":"x","url":"https://example.com"}`))
			rec := httptest.NewRecorder()

			h.RegisterSource(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body middleware.ErrorResponseBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディの解析に失敗: %v", err)
			}
			if body.Code != tt.err.Code {
				t.Errorf("code = %q, want %q", body.Code, tt.err.Code)
			}
		})
	}
}

func TestListSources(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	h := NewSourceHandler(&mockSourceService{
		sources: []*model.Source{
			{ID: "src-1", Name: "A", FeedURL: "https://a.example.com/feed", Active: true, CreatedAt: now},
			{ID: "src-2", Name: "B", FeedURL: "https://b.example.com/feed", Active: false, LastError: "timeout", CreatedAt: now},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	rec := httptest.NewRecorder()

	h.ListSources(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディの解析に失敗: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("len = %d, want 2", len(body))
	}
	if body[1]["lastError"] != "timeout" {
		t.Errorf("lastError = %v", body[1]["lastError"])
	}
	// エラーのないソースではlastErrorは省略される
	if _, ok := body[0]["lastError"]; ok {
		t.Error("lastErrorは空の場合省略されるべき")
	}
}

// ソース0件でも空配列（nullではない）を返すこと。
func TestListSourcesEmpty(t *testing.T) {
	h := NewSourceHandler(&mockSourceService{})

	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	rec := httptest.NewRecorder()

	h.ListSources(rec, req)

	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}
