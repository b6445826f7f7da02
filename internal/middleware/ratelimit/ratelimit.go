package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	applog "housefin/internal/log"
)

// Counter counts hits for a key inside a fixed window.
type Counter interface {
	// Incr records a hit and returns the number of hits in the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Name() string
}

// Config holds rate limiter configuration
type Config struct {
	Limit  int
	Window time.Duration
	// Prefix namespaces keys so several limiters can share one counter.
	Prefix string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Limit:  10,
		Window: time.Minute,
		Prefix: "ratelimit",
	}
}

// Limiter allows at most Limit hits per key and window.
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	prefix  string
	metrics *Metrics
}

// Metrics for monitoring rate limit behavior
type Metrics struct {
	Allowed       int64
	Rejected      int64
	CounterErrors int64
}

// NewLimiter creates a limiter backed by counter
func NewLimiter(counter Counter, config Config) *Limiter {
	def := DefaultConfig()
	if config.Limit <= 0 {
		config.Limit = def.Limit
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.Prefix == "" {
		config.Prefix = def.Prefix
	}
	return &Limiter{
		counter: counter,
		limit:   int64(config.Limit),
		window:  config.Window,
		prefix:  config.Prefix,
		metrics: &Metrics{},
	}
}

// Allow checks if a hit for key should be allowed. Counter failures fail
// open and are reported through the returned error.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.counter.Incr(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		atomic.AddInt64(&l.metrics.CounterErrors, 1)
		return true, err
	}
	if n > l.limit {
		atomic.AddInt64(&l.metrics.Rejected, 1)
		return false, nil
	}
	atomic.AddInt64(&l.metrics.Allowed, 1)
	return true, nil
}

// Backend names the counter implementation in use.
func (l *Limiter) Backend() string {
	return l.counter.Name()
}

// GetMetrics returns current rate limiting metrics
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		Allowed:       atomic.LoadInt64(&l.metrics.Allowed),
		Rejected:      atomic.LoadInt64(&l.metrics.Rejected),
		CounterErrors: atomic.LoadInt64(&l.metrics.CounterErrors),
	}
}

// Middleware creates HTTP middleware for rate limiting
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientIP := extractIP(r)

			allowed, err := l.Allow(ctx, clientIP)
			if err != nil {
				applog.FromContext(ctx).WithComponent(applog.ComponentRateLimit).WarnContext(ctx,
					"Rate limit counter unavailable, allowing request",
					applog.FieldClientIP, clientIP,
					applog.FieldError, err.Error())
			}
			if !allowed {
				applog.FromContext(ctx).WithComponent(applog.ComponentRateLimit).WarnContext(ctx,
					"Rate limit exceeded",
					applog.FieldClientIP, clientIP,
					applog.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
