package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimitedServer(t *testing.T, addr string) *httptest.Server {
	t.Helper()
	limiter := NewRateLimiter(redis.NewClient(&redis.Options{Addr: addr}))
	srv := httptest.NewServer(limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})))
	t.Cleanup(srv.Close)
	return srv
}

func TestRateLimiterEnforcesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := newLimitedServer(t, mr.Addr())

	for i := 0; i < rateLimitMax; i++ {
		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d should pass, got status %d", i, resp.StatusCode)
		}
	}

	// One over the limit is rejected with the standard payload
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("over-limit request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Error != "Too many requests, please try again later." {
		t.Fatalf("unexpected error message: %q", payload.Error)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	srv := newLimitedServer(t, addr)

	// With redis unreachable the request passes through
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected pass-through, got status %d", resp.StatusCode)
	}
}
