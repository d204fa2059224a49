// Package deps provides shared dependencies for all services.
package deps

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/events"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/notifications"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/requests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/pairinbox-go/internal/store"
)

var (
	sharedDeps     *Deps
	sharedDepsOnce sync.Once
)

// Deps holds shared dependencies for all services.
// This is the pairinbox-go equivalent of Reva's sharedconf, adapted for a
// single process where every service shares one queue and one bus.
type Deps struct {
	// Pairing core
	Queue     *requests.Queue
	Bus       *events.Bus
	Panel     *panel.Panel
	Presenter *notifications.Presenter

	// UIState persists the section's expanded/collapsed flag.
	UIState store.UIStateStore

	// Config (for handlers that need config values)
	Config *config.Config

	// Cache provides counters for interceptors (rate limiting)
	Cache cache.Counter

	// RealIP provides trusted-proxy-aware client IP extraction.
	// This is the single source of truth for client identity in logging and rate limiting.
	RealIP *realip.TrustedProxies

	// Clock is the time source handlers use for "now". Nil means time.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

// Now returns the current time from Clock.
func (d *Deps) Now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

// SetDeps sets the shared dependencies. Must be called once at startup
// before any services are constructed.
func SetDeps(d *Deps) {
	sharedDepsOnce.Do(func() {
		sharedDeps = d
	})
}

// GetDeps returns the shared dependencies.
// Returns nil if SetDeps has not been called.
func GetDeps() *Deps {
	return sharedDeps
}

// ResetDeps is for testing only. Resets the singleton.
func ResetDeps() {
	sharedDeps = nil
	sharedDepsOnce = sync.Once{}
}
