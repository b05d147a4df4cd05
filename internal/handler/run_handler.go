package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newspulse/internal/ingest"
	"github.com/hitoshi/newspulse/internal/middleware"
	"github.com/hitoshi/newspulse/internal/model"
)

// PipelineRunner はパイプライン実行のインターフェース。
type PipelineRunner interface {
	// Run はパイプラインを1回実行し、集計結果を返す。
	Run(ctx context.Context) (*model.RunSummary, error)
}

// RunHandler はパイプライン実行トリガーのHTTPハンドラー。
type RunHandler struct {
	runner PipelineRunner
	logger *slog.Logger
}

// NewRunHandler はRunHandlerを生成する。
func NewRunHandler(runner PipelineRunner, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runner: runner,
		logger: logger,
	}
}

// TriggerRun はパイプライン実行をトリガーする。
// POST /internal/runs
// 実行は同期的に行われ、完了後に集計サマリーを200で返す。
// 別の実行が進行中の場合は409、構造的失敗の場合は500を返す。
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewRunInProgressError())
			return
		}
		h.logger.Error("パイプライン実行に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewRunFailedError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(summary)
}
