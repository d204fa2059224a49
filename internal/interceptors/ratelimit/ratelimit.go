// Package ratelimit is a fixed-window limiter over the cache counters,
// keyed by client IP. The api service applies it to pair request submission.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/api"
	svccfg "github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/pairinbox-go/internal/interceptors"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

func init() {
	interceptors.MustRegister("ratelimit", New)
}

// Config is one profile from [http.interceptors.ratelimit.profiles.<name>].
type Config struct {
	RequestsPerWindow int64 `mapstructure:"requests_per_window"`
	WindowSeconds     int   `mapstructure:"window_seconds"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = 100
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
}

// KeyFunc maps a request to the identity it is counted against.
type KeyFunc func(*http.Request) string

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	counter cache.Counter
	key     KeyFunc
	limit   int64
	window  time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewLimiter builds a Limiter. now may be nil.
func NewLimiter(counter cache.Counter, key KeyFunc, limit int64, window time.Duration, now func() time.Time, log *slog.Logger) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		counter: counter,
		key:     key,
		limit:   limit,
		window:  window,
		now:     now,
		log:     logutil.NoopIfNil(log),
	}
}

// New is the interceptor constructor registered as "ratelimit".
func New(conf map[string]any, log *slog.Logger) (interceptors.Middleware, error) {
	var c Config
	if err := svccfg.Decode(conf, &c); err != nil {
		return nil, err
	}

	d := deps.GetDeps()
	if d == nil || d.Cache == nil {
		return nil, fmt.Errorf("ratelimit: shared cache is not configured")
	}

	l := NewLimiter(d.Cache, d.RealIP.GetClientIPString, c.RequestsPerWindow,
		time.Duration(c.WindowSeconds)*time.Second, d.Now, log)
	return l.Wrap, nil
}

// Allow counts one hit against key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.counter.Increment(ctx, "ratelimit:"+key, 1, l.window)
	if err != nil {
		return Decision{}, err
	}
	dec := Decision{
		Allowed:   count <= l.limit,
		Count:     count,
		Remaining: max(l.limit-count, 0),
	}
	if !dec.Allowed {
		dec.RetryAfter = max(resetAt.Sub(l.now()), time.Second)
	}
	return dec, nil
}

// Wrap rejects requests over the limit with 429 and Retry-After. Counter
// failures let the request through.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.key(r)
		dec, err := l.Allow(r.Context(), key)
		if err != nil {
			l.log.Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
		if !dec.Allowed {
			secs := int64((dec.RetryAfter + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
			l.log.Debug("rate limited", "key", key, "count", dec.Count, "limit", l.limit)
			api.WriteTooManyRequests(w, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
