package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeRateLimiter struct {
	count int64
	calls []string
}

func (f *fakeRateLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.calls = append(f.calls, scope)
	f.count++
	return f.count <= limit, f.count, nil
}

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	store := &fakeRateLimiter{}
	policy := NewRateLimitPolicy("Webhook", time.Minute, 2)

	handled := 0
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", nil)
	req.RemoteAddr = "203.0.113.9:4455"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if handled != 2 {
		t.Fatalf("expected 2 handled requests, got %d", handled)
	}
	if len(store.calls) != 2 || store.calls[0] != "webhook:203.0.113.9" {
		t.Fatalf("unexpected limiter scopes: %v", store.calls)
	}
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	store := &fakeRateLimiter{}
	policy := NewRateLimitPolicy("webhook", time.Minute, 1)

	handled := 0
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if handled != 1 {
		t.Fatalf("expected exactly 1 handled request, got %d", handled)
	}
	if store.calls[0] != "webhook:198.51.100.7" {
		t.Fatalf("expected forwarded IP in scope, got %q", store.calls[0])
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := &fakeRateLimiter{}
	handler := RateLimit(RateLimitPolicy{}, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.calls) != 0 {
		t.Fatalf("expected limiter untouched, got %d calls", len(store.calls))
	}
}
