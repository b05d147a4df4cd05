package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/newspulse/internal/middleware"
	"github.com/hitoshi/newspulse/internal/model"
)

// SourceServiceInterface はソースハンドラーが必要とするサービスインターフェース。
type SourceServiceInterface interface {
	// Register はURLからフィードを検出しソースとして登録する。
	Register(ctx context.Context, name, inputURL string) (*model.Source, error)
	// List は全ソースを取得する。
	List(ctx context.Context) ([]*model.Source, error)
}

// SourceHandler はソース管理のHTTPハンドラー。
type SourceHandler struct {
	service SourceServiceInterface
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(service SourceServiceInterface) *SourceHandler {
	return &SourceHandler{
		service: service,
	}
}

// registerSourceRequest はソース登録リクエストのボディ。
type registerSourceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// sourceResponse はソース情報のAPIレスポンス。
type sourceResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	FeedURL       string     `json:"feedUrl"`
	Active        bool       `json:"active"`
	LastFetchedAt *time.Time `json:"lastFetchedAt"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// toSourceResponse はモデルをAPIレスポンス形式に変換する。
func toSourceResponse(src *model.Source) sourceResponse {
	return sourceResponse{
		ID:            src.ID,
		Name:          src.Name,
		FeedURL:       src.FeedURL,
		Active:        src.Active,
		LastFetchedAt: src.LastFetchedAt,
		LastError:     src.LastError,
		CreatedAt:     src.CreatedAt,
	}
}

// RegisterSource はソース登録を処理する。
// POST /api/sources
func (h *SourceHandler) RegisterSource(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.URL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	src, err := h.service.Register(r.Context(), req.Name, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSourceResponse(src))
}

// ListSources はソース一覧を取得する。
// GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		responses = append(responses, toSourceResponse(src))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}
