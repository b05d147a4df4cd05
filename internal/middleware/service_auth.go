// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hitoshi/newspulse/internal/model"
)

// NewServiceAuthMiddleware はAuthorizationヘッダーのBearerトークンを
// サービストークンと照合するミドルウェアを返す。
// 比較はタイミング攻撃を避けるため定数時間で行う。
// 認証失敗時は統一エラーフォーマットで401 Unauthorizedを返す。
func NewServiceAuthMiddleware(serviceToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(serviceToken)) != 1 {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを抽出する。
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}
