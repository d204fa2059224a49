// Package cache provides expiring counters for rate limiting.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// TTLRateLimit is the default rate limit window.
const TTLRateLimit = 1 * time.Minute

// Counter provides atomic increments over a fixed window.
type Counter interface {
	// Increment adds delta to the counter and returns the new value and the
	// time the window resets. If the key doesn't exist it is created with ttl.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error)

	// GetCount returns the current counter value. Returns 0 if not found.
	GetCount(ctx context.Context, key string) (int64, error)

	// Reset drops the counter.
	Reset(ctx context.Context, key string) error
}

// Cache is a Counter that holds resources.
type Cache interface {
	Counter
	Close() error
}

// Factory builds a driver from its [cache.drivers.<name>] map.
type Factory func(config map[string]any, log *slog.Logger) (Cache, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Factory{}
)

// RegisterDriver makes a driver available by name. Called from driver init functions.
func RegisterDriver(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("cache: driver registered twice: " + name)
	}
	drivers[name] = f
}

// AvailableDrivers returns registered driver names, sorted.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFromConfig builds the named driver. An empty name selects "memory".
// driverConfigs is the [cache.drivers] table; the entry for driver, if any,
// is passed to the factory.
func NewFromConfig(driver string, driverConfigs map[string]any, log *slog.Logger) (Cache, error) {
	if driver == "" {
		driver = "memory"
	}

	driversMu.RLock()
	f, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cache driver %q (available: %v)", driver, AvailableDrivers())
	}

	var cfg map[string]any
	if raw, ok := driverConfigs[driver]; ok {
		if m, ok := raw.(map[string]any); ok {
			cfg = m
		} else {
			return nil, fmt.Errorf("cache.drivers.%s must be a table", driver)
		}
	}
	return f(cfg, log)
}
