// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIや呼び出し元に提示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, source, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeRunInProgress   = "RUN_IN_PROGRESS"
	ErrCodeRunFailed       = "RUN_FAILED"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFeedNotDetected = "FEED_NOT_DETECTED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeDuplicateSource = "DUPLICATE_SOURCE"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
)

// NewUnauthorizedError は認証失敗エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "サービス認証に失敗しました。",
		Category: "auth",
		Action:   "正しいサービストークンをAuthorizationヘッダーに指定してください。",
	}
}

// NewRunInProgressError は実行中の多重起動エラーを生成する。
func NewRunInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeRunInProgress,
		Message:  "別のパイプライン実行が進行中です。",
		Category: "system",
		Action:   "現在の実行が完了してから再度トリガーしてください。",
	}
}

// NewRunFailedError はパイプラインの構造的失敗エラーを生成する。
func NewRunFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRunFailed,
		Message:  fmt.Sprintf("パイプライン実行を開始できませんでした: %s", reason),
		Category: "system",
		Action:   "データベース接続と設定を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "source",
		Action:   "RSS/AtomフィードのURLを直接入力するか、フィードが公開されているページのURLを確認してください。",
	}
}

// NewFetchFailedError はフィード取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLへのアクセスに失敗しました: %s", reason),
		Category: "source",
		Action:   "URLが正しいこと、対象サイトが応答することを確認してください。",
	}
}

// NewDuplicateSourceError は登録済みフィードURLの再登録エラーを生成する。
func NewDuplicateSourceError(feedURL string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSource,
		Message:  fmt.Sprintf("このフィードURLは既に登録されています: %s", feedURL),
		Category: "source",
		Action:   "ソース一覧から該当ソースを確認してください。",
	}
}
