package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(perSecond float64, burst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		TriggerRate:     rate.Limit(perSecond),
		TriggerBurst:    burst,
		CleanupInterval: time.Hour,
	})
}

// バースト分のリクエストは通過し、超過分は429になること。
func TestTriggerMiddlewareBurstExhaustion(t *testing.T) {
	rl := newTestRateLimiter(0.01, 2)
	defer rl.Stop()

	handler := rl.TriggerMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429レスポンスにはRetry-Afterヘッダーが必要")
	}
}

// 呼び出し元ごとに独立したリミッターが使われること。
func TestTriggerMiddlewarePerCaller(t *testing.T) {
	rl := newTestRateLimiter(0.01, 1)
	defer rl.Stop()

	handler := rl.TriggerMiddleware()(okHandler())

	req1 := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	req1.RemoteAddr = "10.0.0.1:1000"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	// 同一IPの2回目は拒否される
	req2 := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	req2.RemoteAddr = "10.0.0.1:2000"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("同一IPの2回目: status = %d, want 429", rec2.Code)
	}

	// 別IPは影響を受けない
	req3 := httptest.NewRequest(http.MethodPost, "/internal/runs", nil)
	req3.RemoteAddr = "10.0.0.2:3000"
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, req3)

	if rec3.Code != http.StatusOK {
		t.Errorf("別IP: status = %d, want 200", rec3.Code)
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

func TestNewRateLimiterConfigDefaults(t *testing.T) {
	cfg := NewRateLimiterConfig(0)
	if cfg.TriggerBurst != 10 {
		t.Errorf("TriggerBurst = %d, want 10", cfg.TriggerBurst)
	}

	cfg = NewRateLimiterConfig(30)
	if cfg.TriggerBurst != 30 {
		t.Errorf("TriggerBurst = %d, want 30", cfg.TriggerBurst)
	}
	if cfg.TriggerRate != rate.Limit(0.5) {
		t.Errorf("TriggerRate = %v, want 0.5", cfg.TriggerRate)
	}
}
