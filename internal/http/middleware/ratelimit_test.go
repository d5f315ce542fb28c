package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, rate float64, burst int) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(rate, burst)
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterRefills(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 2)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d should pass within burst", i)
		}
	}
	ok, wait := rl.Allow("1.2.3.4")
	if ok {
		t.Fatalf("expected burst to be exhausted")
	}
	if wait <= 0 || wait > time.Second {
		t.Fatalf("unexpected wait %v", wait)
	}
	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Fatalf("other clients have their own bucket")
	}

	*now = now.Add(time.Second)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatalf("expected a token after one second")
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 1)
	rl.Allow("1.2.3.4")
	*now = now.Add(time.Hour)
	rl.evictIdle(10 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.clients) != 0 {
		t.Fatalf("expected idle bucket to be evicted, have %d", len(rl.clients))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 0.5, 1)
	handler := RateLimit(rl)(okHandler(nil))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/bot/create_invoice_link", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
}
