package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	appctx "github.com/staywise/guest-services/backend/internal/context"
)

// fakeRedisCounter counts INCRs in memory and can simulate a Redis outage.
type fakeRedisCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeRedisCounter() *fakeRedisCounter {
	return &fakeRedisCounter{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Duration),
	}
}

func (f *fakeRedisCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeRedisCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	f.expires[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("user-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("user-1") {
		t.Error("request over the limit should be rejected")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	if !rl.Allow("user-1") {
		t.Fatal("first request for user-1 should be allowed")
	}
	if !rl.Allow("user-2") {
		t.Error("user-2 should not be affected by user-1's usage")
	}
	if rl.Allow("user-1") {
		t.Error("user-1 should be over the limit")
	}
}

func TestRateLimiterRemaining(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	if got := rl.Remaining("user-1"); got != 5 {
		t.Errorf("Remaining = %d, want 5", got)
	}
	rl.Allow("user-1")
	rl.Allow("user-1")
	if got := rl.Remaining("user-1"); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
}

func TestMessageSendLimiterOnlyThrottlesWrites(t *testing.T) {
	limiter := NewMessageSendRateLimiter(1)

	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	handler := limiter.Limit(next)

	withUser := func(method string) *http.Request {
		req := httptest.NewRequest(method, "/threads/x/messages", nil)
		ctx := context.WithValue(req.Context(), appctx.UserIDKey, "user-1")
		return req.WithContext(ctx)
	}

	// Reads always pass
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withUser("GET"))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d status = %d", i, rec.Code)
		}
	}

	// First write passes, second is throttled
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser("POST"))
	if rec.Code != http.StatusOK {
		t.Fatalf("first POST status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser("POST"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second POST status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("throttled response should carry Retry-After")
	}
}

func redisLimitRequest(method, user string) *http.Request {
	req := httptest.NewRequest(method, "/threads/x/messages", nil)
	if user == "" {
		return req
	}
	return req.WithContext(context.WithValue(req.Context(), appctx.UserIDKey, user))
}

func TestRedisLimiterThrottlesWrites(t *testing.T) {
	counter := newFakeRedisCounter()
	limiter := NewRedisRateLimiter(counter, "msg_send", 2, time.Minute)
	handler := limiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Reads and unauthenticated requests pass without touching Redis
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, redisLimitRequest("GET", "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, redisLimitRequest("POST", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("unauthenticated POST status = %d", rec.Code)
	}
	if len(counter.counts) != 0 {
		t.Fatalf("counter touched for passthrough requests: %v", counter.counts)
	}

	// Writes count against the window
	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, redisLimitRequest("POST", "user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %d status = %d", i+1, rec.Code)
		}
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, redisLimitRequest("POST", "user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third POST status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("throttled response should carry Retry-After")
	}

	// Another user has a counter of their own
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, redisLimitRequest("POST", "user-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("user-2 POST status = %d", rec.Code)
	}

	if counter.expires["msg_send:user-1"] != time.Minute {
		t.Errorf("window expiry = %v, want 1m", counter.expires["msg_send:user-1"])
	}
}

// A Redis outage must not take message sends down with it.
func TestRedisLimiterFailsOpen(t *testing.T) {
	counter := newFakeRedisCounter()
	counter.err = errors.New("connection refused")
	limiter := NewRedisRateLimiter(counter, "msg_send", 1, time.Minute)
	handler := limiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, redisLimitRequest("POST", "user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %d status = %d, want pass on Redis failure", i+1, rec.Code)
		}
	}
}
