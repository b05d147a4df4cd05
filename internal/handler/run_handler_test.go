package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/newspulse/internal/ingest"
	"github.com/hitoshi/newspulse/internal/middleware"
	"github.com/hitoshi/newspulse/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockRunner はテスト用のPipelineRunnerモック。
type mockRunner struct {
	summary *model.RunSummary
	err     error
}

func (m *mockRunner) Run(_ context.Context) (*model.RunSummary, error) {
	return m.summary, m.err
}

func TestTriggerRunSuccess(t *testing.T) {
	runner := &mockRunner{
		summary: &model.RunSummary{
			Processed:         3,
			Succeeded:         2,
			Failed:            1,
			ArticlesCreated:   15,
			DuplicatesSkipped: 4,
			HasMoreWork:       true,
			StoppedEarly:      true,
			AIAnalysis:        model.AIAnalysisSummary{Attempted: 15, Successful: 12, Failed: 3},
		},
	}
	h := NewRunHandler(runner, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	rec := httptest.NewRecorder()

	h.TriggerRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディの解析に失敗: %v", err)
	}

	if body["processed"] != float64(3) {
		t.Errorf("processed = %v, want 3", body["processed"])
	}
	if body["articlesCreated"] != float64(15) {
		t.Errorf("articlesCreated = %v, want 15", body["articlesCreated"])
	}
	if body["hasMoreWork"] != true {
		t.Errorf("hasMoreWork = %v, want true", body["hasMoreWork"])
	}
	if body["stoppedEarly"] != true {
		t.Errorf("stoppedEarly = %v, want true", body["stoppedEarly"])
	}

	ai, ok := body["aiAnalysis"].(map[string]any)
	if !ok {
		t.Fatalf("aiAnalysis = %v", body["aiAnalysis"])
	}
	if ai["attempted"] != float64(15) {
		t.Errorf("aiAnalysis.attempted = %v, want 15", ai["attempted"])
	}
}

// 別の実行が進行中の場合は409 Conflictを返すこと。
func TestTriggerRunInProgress(t *testing.T) {
	h := NewRunHandler(&mockRunner{err: ingest.ErrRunInProgress}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	rec := httptest.NewRecorder()

	h.TriggerRun(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディの解析に失敗: %v", err)
	}
	if body.Code != model.ErrCodeRunInProgress {
		t.Errorf("code = %q, want RUN_IN_PROGRESS", body.Code)
	}
}

// 構造的失敗は500 Internal Server Errorを返すこと。
func TestTriggerRunStructuralFailure(t *testing.T) {
	h := NewRunHandler(&mockRunner{err: errors.New("database connection lost")}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	rec := httptest.NewRecorder()

	h.TriggerRun(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディの解析に失敗: %v", err)
	}
	if body.Code != model.ErrCodeRunFailed {
		t.Errorf("code = %q, want RUN_FAILED", body.Code)
	}
}
