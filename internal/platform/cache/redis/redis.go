// Package redis provides a Redis/Valkey counter cache.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/valkey-io/valkey-go"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

func init() {
	cache.RegisterDriver("redis", func(config map[string]any, log *slog.Logger) (cache.Cache, error) {
		cfg := DefaultConfig()
		if err := decodeConfig(config, cfg); err != nil {
			return nil, err
		}
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		logutil.NoopIfNil(log).Info("redis cache connected", "addr", cfg.Addr, "db", cfg.DB)
		return c, nil
	})
}

// Config holds Redis connection configuration.
type Config struct {
	Addr         string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"-"`
	WriteTimeout time.Duration `mapstructure:"-"`
	KeyPrefix    string        `mapstructure:"key_prefix"`

	DialTimeoutMS  int `mapstructure:"dial_timeout_ms"`
	WriteTimeoutMS int `mapstructure:"write_timeout_ms"`
}

// DefaultConfig returns sensible defaults for Redis connection.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		DB:           0,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "pairinbox:",
	}
}

func decodeConfig(raw map[string]any, cfg *Config) error {
	if len(raw) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid cache.drivers.redis config: %w", err)
	}
	if cfg.DialTimeoutMS > 0 {
		cfg.DialTimeout = time.Duration(cfg.DialTimeoutMS) * time.Millisecond
	}
	if cfg.WriteTimeoutMS > 0 {
		cfg.WriteTimeout = time.Duration(cfg.WriteTimeoutMS) * time.Millisecond
	}
	return nil
}

// Cache stores counters in Redis. Windows are Redis key expirations.
type Cache struct {
	client valkey.Client
	prefix string
}

// New connects and pings. It fails fast when the server is unreachable.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultConfig().DialTimeout
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{cfg.Addr},
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		Dialer:           net.Dialer{Timeout: dialTimeout},
		ConnWriteTimeout: cfg.WriteTimeout,
		DisableCache:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis health check failed: %w", err)
	}

	return &Cache{client: client, prefix: cfg.KeyPrefix}, nil
}

// Increment runs INCRBY and starts the window on the first hit. A key left
// without expiry (for example after a crash between the two calls) gets one.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl <= 0 {
		ttl = cache.TTLRateLimit
	}
	k := c.prefix + key

	count, err := c.client.Do(ctx, c.client.B().Incrby().Key(k).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis INCRBY %s: %w", key, err)
	}

	pttl, err := c.client.Do(ctx, c.client.B().Pttl().Key(k).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis PTTL %s: %w", key, err)
	}
	if pttl < 0 {
		if err := c.client.Do(ctx, c.client.B().Pexpire().Key(k).Milliseconds(ttl.Milliseconds()).Build()).Error(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis PEXPIRE %s: %w", key, err)
		}
		pttl = ttl.Milliseconds()
	}

	return count, time.Now().Add(time.Duration(pttl) * time.Millisecond), nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsInt64()
	if valkey.IsValkeyNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return n, nil
}

// Reset drops a counter.
func (c *Cache) Reset(ctx context.Context, key string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

var _ cache.Cache = (*Cache)(nil)
