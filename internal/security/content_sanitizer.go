// Package security はフィード取得まわりのセキュリティ機能を提供する。
//
// ContentSanitizerService はフィードから取り込んだ記事の説明文をサニタイズし、
// XSSなどのセキュリティリスクから下流の利用者を保護する。
// bluemondayライブラリの許可リストベースのポリシーで、
// 安全なタグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は記事説明文のサニタイズ機能のインターフェースを定義する。
// 記事の保存前に適用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLを含む説明文をサニタイズして安全なHTMLを返す。
	// 最小限のタグ（p, br, ul, ol, li, blockquote, strong, em, code）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 記事説明文は要約テキストとしての利用を想定しているため、
// リンクや画像は通さず、構造と強調の最小限のタグのみを許可する。
// script, iframe, style等は許可リストに含めないことで自動的に除去される。
// on*イベント属性はbluemondayのデフォルトで許可されない。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "code",
		"strong", "em",
	)

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLを含む説明文をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
