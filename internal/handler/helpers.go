// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newspulse/internal/middleware"
	"github.com/hitoshi/newspulse/internal/model"
)

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorはコードに応じたステータスで返し、それ以外は詳細をログのみに
// 記録して500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}

	slog.Error("サービス処理に失敗しました",
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// statusForAPIError はAPIErrorのコードに対応するHTTPステータスコードを返す。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeRunInProgress, model.ErrCodeDuplicateSource:
		return http.StatusConflict
	case model.ErrCodeInvalidURL, model.ErrCodeSSRFBlocked, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeFeedNotDetected, model.ErrCodeFetchFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
