package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestStore(rate float64, burst int, now *time.Time) *rateLimiterStore {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: rate, BurstSize: burst})
	store.now = func() time.Time { return *now }
	return store
}

func doRateLimited(mw echo.MiddlewareFunc, ip, tenant string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots", nil)
	req.Header.Set("X-Real-IP", ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if tenant != "" {
		c.Set("tenant_id", tenant)
	}
	return rec, mw(okHandler)(c)
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mw := rateLimit(newTestStore(1, 3, &now))

	for i := 0; i < 3; i++ {
		rec, err := doRateLimited(mw, "10.0.0.1", "")
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("expected X-RateLimit-Limit 1, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mw := rateLimit(newTestStore(1, 2, &now))

	doRateLimited(mw, "10.0.0.1", "")
	doRateLimited(mw, "10.0.0.1", "")
	rec, err := doRateLimited(mw, "10.0.0.1", "")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0")
	}
}

func TestRateLimit_Refills(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mw := rateLimit(newTestStore(1, 1, &now))

	if _, err := doRateLimited(mw, "10.0.0.1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := doRateLimited(mw, "10.0.0.1", ""); err == nil {
		t.Fatal("expected second request to be limited")
	}
	now = now.Add(time.Second)
	if _, err := doRateLimited(mw, "10.0.0.1", ""); err != nil {
		t.Errorf("expected token after refill, got %v", err)
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mw := rateLimit(newTestStore(1, 1, &now))

	if _, err := doRateLimited(mw, "10.0.0.1", "clinic_a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := doRateLimited(mw, "10.0.0.2", "clinic_a"); err != nil {
		t.Errorf("other IP must have its own bucket: %v", err)
	}
	if _, err := doRateLimited(mw, "10.0.0.1", "clinic_b"); err != nil {
		t.Errorf("other tenant must have its own bucket: %v", err)
	}
	if _, err := doRateLimited(mw, "10.0.0.1", "clinic_a"); err == nil {
		t.Error("expected exhausted bucket to be limited")
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 || cfg.BurstSize != 200 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestTokenBucket_RetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTokenBucket(0.25, 1, now)
	if ok, _ := b.take(now); !ok {
		t.Fatal("expected first take to succeed")
	}
	ok, retry := b.take(now)
	if ok {
		t.Fatal("expected bucket to be empty")
	}
	if retry != 5 {
		t.Errorf("expected retry after 5s, got %d", retry)
	}
}

func TestTokenBucket_RetryAfterWithZeroRate(t *testing.T) {
	now := time.Now()
	b := newTokenBucket(0, 0, now)
	ok, retry := b.take(now)
	if ok {
		t.Fatal("expected empty bucket")
	}
	if retry != 1 {
		t.Errorf("expected retry after 1s, got %d", retry)
	}
}
