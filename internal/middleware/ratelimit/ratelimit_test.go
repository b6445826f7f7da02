package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterWindows(t *testing.T) {
	c := NewMemoryCounter(time.Hour)
	defer c.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := c.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, _ := c.Incr(ctx, "other", time.Minute)
	assert.Equal(t, int64(1), n)

	now = now.Add(time.Minute)
	n, _ = c.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(1), n, "window should reset")

	now = now.Add(2 * time.Minute)
	c.cleanupExpired()
	assert.Equal(t, 0, c.ActiveKeys())
}

func TestLimiterAllow(t *testing.T) {
	c := NewMemoryCounter(time.Hour)
	defer c.Stop()
	l := NewLimiter(c, Config{Limit: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "other clients are independent")

	m := l.GetMetrics()
	assert.Equal(t, int64(3), m.Allowed)
	assert.Equal(t, int64(1), m.Rejected)
	assert.Equal(t, "memory", l.Backend())
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}
func (failingCounter) Name() string { return "failing" }

func TestLimiterFailsOpen(t *testing.T) {
	l := NewLimiter(failingCounter{}, Config{Limit: 1})
	ok, err := l.Allow(context.Background(), "ip")
	assert.True(t, ok)
	assert.Error(t, err)
	assert.Equal(t, int64(1), l.GetMetrics().CounterErrors)
}

func TestMiddleware(t *testing.T) {
	c := NewMemoryCounter(time.Hour)
	defer c.Stop()
	l := NewLimiter(c, Config{Limit: 1, Window: 30 * time.Second})

	h := l.Middleware(func(*http.Request) string { return "9.9.9.9" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
}

func TestMiddlewareCustomOnLimit(t *testing.T) {
	c := NewMemoryCounter(time.Hour)
	defer c.Stop()
	l := NewLimiter(c, Config{Limit: 1})
	called := false
	h := l.Middleware(func(*http.Request) string { return "ip" }, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/token", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/token", nil))
	assert.True(t, called)
}

func TestDialRedisRejectsBadURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "http://localhost:6379")
	assert.Error(t, err)
}

func TestRedisCounterUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	c := NewRedisCounter(rdb)
	defer c.Close()

	_, err := c.Incr(context.Background(), "k", time.Minute)
	assert.Error(t, err)
	assert.Equal(t, "redis", c.Name())
}
