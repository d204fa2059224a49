// Package memory provides an in-memory counter cache with TTL support.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache"
)

func init() {
	cache.RegisterDriver("memory", func(config map[string]any, _ *slog.Logger) (cache.Cache, error) {
		// Apply defaults (Reva-style)
		cleanupInterval := 5 * time.Minute

		if v, ok := config["cleanup_interval_seconds"]; ok {
			if secs, ok := toInt(v); ok && secs > 0 {
				cleanupInterval = time.Duration(secs) * time.Second
			}
		}

		return New(cleanupInterval), nil
	})
}

// toInt converts various numeric types to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// counterItem represents a counter with expiration.
type counterItem struct {
	value     int64
	expiresAt time.Time
}

func (c *counterItem) expiredAt(now time.Time) bool {
	return !now.Before(c.expiresAt)
}

// Cache is an in-memory counter store.
type Cache struct {
	mu        sync.Mutex
	counters  map[string]*counterItem
	now       func() time.Time
	stopClean chan struct{}
	closeOnce sync.Once
}

// New creates a new in-memory cache.
// cleanupInterval specifies how often to run the cleanup goroutine (0 disables).
func New(cleanupInterval time.Duration) *Cache {
	return newWithClock(cleanupInterval, time.Now)
}

func newWithClock(cleanupInterval time.Duration, now func() time.Time) *Cache {
	c := &Cache{
		counters:  make(map[string]*counterItem),
		now:       now,
		stopClean: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}

	return c
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopClean:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, v := range c.counters {
		if v.expiredAt(now) {
			delete(c.counters, k)
		}
	}
}

// Increment adds delta to a counter and returns the new value and reset time.
func (c *Cache) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl <= 0 {
		ttl = cache.TTLRateLimit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	counter, ok := c.counters[key]
	if !ok || counter.expiredAt(now) {
		expiresAt := now.Add(ttl)
		c.counters[key] = &counterItem{
			value:     delta,
			expiresAt: expiresAt,
		}
		return delta, expiresAt, nil
	}

	counter.value += delta
	return counter.value, counter.expiresAt, nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counter, ok := c.counters[key]
	if !ok || counter.expiredAt(c.now()) {
		return 0, nil
	}
	return counter.value, nil
}

// Reset drops a counter.
func (c *Cache) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counters, key)
	return nil
}

// Len returns the number of tracked counters, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counters)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.stopClean) })
	return nil
}

var _ cache.Cache = (*Cache)(nil)
