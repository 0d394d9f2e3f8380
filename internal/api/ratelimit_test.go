package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/rbac-core/internal/infrastructure/ratelimit"
)

func testLimiter(t *testing.T, limit int) (*ratelimit.Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return ratelimit.New(client, limit, time.Minute), mr
}

func TestRateLimit_Signin(t *testing.T) {
	limiter, _ := testLimiter(t, 2)
	env := testServer(t, withLimiter(limiter))

	for i := range 2 {
		w := env.do(t, http.MethodPost, "/api/auth/signin", signinBody("nobody@b.com", "x"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d status = %d, want 400", i+1, w.Code)
		}
	}

	w := env.do(t, http.MethodPost, "/api/auth/signin", signinBody("nobody@b.com", "x"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if resp, _ := envelopeOf(t, w); resp.Message != msgTooManyRequests || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("envelope = %+v", resp)
	}

	// Signup has its own budget.
	if w := env.do(t, http.MethodPost, "/api/auth/signup", signupBody("a@b.com")); w.Code != http.StatusOK {
		t.Errorf("signup status = %d, want 200", w.Code)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter, mr := testLimiter(t, 1)
	env := testServer(t, withLimiter(limiter))
	mr.Close()

	for range 3 {
		w := env.do(t, http.MethodPost, "/api/auth/signin", signinBody("nobody@b.com", "x"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400 with redis down", w.Code)
		}
	}
}

func TestRateLimit_NotAppliedToRefresh(t *testing.T) {
	limiter, _ := testLimiter(t, 1)
	env := testServer(t, withLimiter(limiter))

	for range 3 {
		if w := env.do(t, http.MethodPost, "/api/auth/refresh", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("refresh status = %d, want 401", w.Code)
		}
	}
}
