package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is a process-local fixed-window counter.
type MemoryCounter struct {
	mu           sync.Mutex
	windows      map[string]*window
	now          func() time.Time
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type window struct {
	start time.Time
	ttl   time.Duration
	hits  int64
}

// NewMemoryCounter creates a counter and starts its cleanup goroutine
func NewMemoryCounter(cleanupInterval time.Duration) *MemoryCounter {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	c := &MemoryCounter{
		windows:     make(map[string]*window),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go c.startCleanup(cleanupInterval)
	return c
}

func (c *MemoryCounter) Name() string { return "memory" }

// Incr implements Counter
func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || now.Sub(w.start) >= w.ttl {
		c.windows[key] = &window{start: now, ttl: ttl, hits: 1}
		return 1, nil
	}
	w.hits++
	return w.hits, nil
}

func (c *MemoryCounter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCounter) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, w := range c.windows {
		if now.Sub(w.start) >= w.ttl {
			delete(c.windows, key)
		}
	}
}

// ActiveKeys returns the number of currently tracked keys
func (c *MemoryCounter) ActiveKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// Stop shuts down the cleanup goroutine
func (c *MemoryCounter) Stop() {
	c.shutdownOnce.Do(func() {
		close(c.stopCleanup)
	})
}
