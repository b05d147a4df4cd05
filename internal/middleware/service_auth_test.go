package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestServiceAuthValidToken(t *testing.T) {
	handler := NewServiceAuthMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServiceAuthInvalidToken(t *testing.T) {
	handler := NewServiceAuthMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディの解析に失敗: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want UNAUTHORIZED", body.Code)
	}
}

func TestServiceAuthMissingHeader(t *testing.T) {
	handler := NewServiceAuthMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestServiceAuthMalformedHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Bearerプレフィックスなし", "secret-token"},
		{"Basic認証", "Basic c2VjcmV0"},
		{"トークンが空", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewServiceAuthMiddleware("secret-token")(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
			req.Header.Set("Authorization", tt.value)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

// Bearerプレフィックスは大文字小文字を区別しないこと。
func TestServiceAuthCaseInsensitivePrefix(t *testing.T) {
	handler := NewServiceAuthMiddleware("secret-token")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	req.Header.Set("Authorization", "bearer secret-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
