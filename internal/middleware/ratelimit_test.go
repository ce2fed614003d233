package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("key", 5, time.Minute); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, retryIn := rl.Allow("key", 5, time.Minute)
	if ok {
		t.Fatal("sixth attempt should be rejected")
	}
	if retryIn <= 0 || retryIn > time.Minute {
		t.Errorf("retryIn = %v", retryIn)
	}
}

func TestAllowSeparateKeys(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("a", 1, time.Minute)
	if ok, _ := rl.Allow("a", 1, time.Minute); ok {
		t.Fatal("a should be limited")
	}
	if ok, _ := rl.Allow("b", 1, time.Minute); !ok {
		t.Fatal("b should be unaffected")
	}
}

func TestAllowWindowReset(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("key", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if ok, _ := rl.Allow("key", 1, time.Millisecond); !ok {
		t.Fatal("attempt after window reset should be allowed")
	}
}

func TestCleanup(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("stale", 1, time.Millisecond)
	rl.Allow("fresh", 1, time.Minute)
	time.Sleep(5 * time.Millisecond)
	rl.Cleanup()

	if _, ok := rl.windows["stale"]; ok {
		t.Error("stale window should be removed")
	}
	if _, ok := rl.windows["fresh"]; !ok {
		t.Error("fresh window should survive")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	handler := RateLimit(rl, RealIP, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/auth/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/auth/login", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:1234"
	if got := RealIP(r); got != "10.0.0.7" {
		t.Errorf("RealIP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := RealIP(r); got != "203.0.113.9" {
		t.Errorf("RealIP with XFF = %q", got)
	}
}
