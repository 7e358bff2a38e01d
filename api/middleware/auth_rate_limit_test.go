package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubLimiterStore struct {
	counts map[string]int64
	keys   []string
}

func newStubLimiterStore() *stubLimiterStore {
	return &stubLimiterStore{counts: map[string]int64{}}
}

func (s *stubLimiterStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.counts[key]++
	s.keys = append(s.keys, key)
	return s.counts[key], nil
}

func loginRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:51234"
	return req
}

func TestAuthRateLimitAllowsUnderLimit(t *testing.T) {
	store := newStubLimiterStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 3, 3)

	served := 0
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(`{"email":"admin@example.com","password":"x"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if served != 3 {
		t.Fatalf("expected 3 served requests, got %d", served)
	}
}

func TestAuthRateLimitBlocksByIP(t *testing.T) {
	store := newStubLimiterStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 0)

	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, loginRequest(`{"email":"admin@example.com"}`))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", last.Code)
	}
	if !strings.Contains(last.Body.String(), "RATE_LIMIT") {
		t.Fatalf("expected RATE_LIMIT code in body: %s", last.Body.String())
	}
}

func TestAuthRateLimitBlocksByEmailAcrossIPs(t *testing.T) {
	store := newStubLimiterStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)

	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var last *httptest.ResponseRecorder
	for i, addr := range []string{"198.51.100.1:1", "198.51.100.2:2", "198.51.100.3:3"} {
		last = httptest.NewRecorder()
		req := loginRequest(`{"email":"Admin@Example.COM"}`)
		req.RemoteAddr = addr
		handler.ServeHTTP(last, req)
		if i < 2 && last.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, last.Code)
		}
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected email throttle across IPs, got %d", last.Code)
	}

	for _, key := range store.keys {
		if strings.Contains(key, "admin@example.com") {
			t.Fatalf("raw email must not appear in limiter keys: %s", key)
		}
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", 0, 0, 0)
	served := false
	handler := AuthRateLimit(policy, newStubLimiterStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{}`))
	if !served {
		t.Fatalf("disabled policy must pass requests through")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := loginRequest(`{}`)
	req.Header.Set("X-Forwarded-For", " 192.0.2.44 , 10.0.0.1")
	if ip := clientIP(req); ip != "192.0.2.44" {
		t.Fatalf("expected first forwarded hop, got %q", ip)
	}

	req = loginRequest(`{}`)
	if ip := clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("expected remote addr host, got %q", ip)
	}
}
