// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ExternalBasePath is the optional path prefix for app endpoints.
	// Example: "/inbox" or empty string
	ExternalBasePath string `toml:"external_base_path"`

	// ListenAddr is the address to listen on.
	// Example: ":9300"
	ListenAddr string `toml:"listen_addr"`

	// Server holds server-level settings.
	Server ServerConfig `toml:"server"`

	Logging LoggingConfig `toml:"logging"`

	// Pairing configures the pending pair request queue.
	Pairing PairingConfig `toml:"pairing"`

	// Store selects the driver that persists panel expansion state.
	Store StoreConfig `toml:"store"`

	// Cache configuration
	Cache CacheConfig `toml:"cache"`

	TUI TUIConfig `toml:"tui"`

	// HTTP holds per-service HTTP configuration (Reva-style).
	HTTP HTTPConfig `toml:"http"`
}

// HTTPConfig holds per-service HTTP configuration.
// Services are configured under [http.services.<svcname>].
// Interceptors are configured under [http.interceptors.<name>].
type HTTPConfig struct {
	// Services maps service names to their raw config maps.
	// Each service decodes its own config via cfg.Decode() with Setter interface.
	Services map[string]map[string]any `toml:"services"`

	// Interceptors maps interceptor names to their raw config maps.
	// Ratelimit profiles live at [http.interceptors.ratelimit.profiles.<name>].
	// Per-service opt-in is [http.services.<svc>.ratelimit] with profile = "<name>".
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies lists CIDRs whose X-Forwarded-For header is honored
	// when deriving the client IP for logging and rate limiting.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in strict mode, debug in dev mode.
	Level string `toml:"level"`

	// File redirects log output to a file. Required when the TUI owns the terminal;
	// if empty in that case logs are discarded.
	File string `toml:"file"`
}

// PairingConfig holds pair request settings.
type PairingConfig struct {
	// RequestTTLSeconds is how long a request stays pending. Default: 30.
	RequestTTLSeconds int `toml:"request_ttl_seconds"`

	// SweepSchedule is the cron spec for background expiry. Default: "@every 1s".
	SweepSchedule string `toml:"sweep_schedule"`

	// SectionTag keys the persisted expansion state. Default: "pair_requests".
	SectionTag string `toml:"section_tag"`

	// NotificationHistory bounds the retained toast list. Default: 20.
	NotificationHistory int `toml:"notification_history"`
}

// RequestTTL returns RequestTTLSeconds as a duration.
func (p PairingConfig) RequestTTL() time.Duration {
	return time.Duration(p.RequestTTLSeconds) * time.Second
}

// StoreConfig holds expansion-state store settings.
type StoreConfig struct {
	// Driver is one of memory, json, sqlite.
	Driver string `toml:"driver"`

	// DataDir holds the json file or sqlite database.
	DataDir string `toml:"data_dir"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is the cache driver name: "memory" (default) or "redis".
	Driver string `toml:"driver"`

	// Drivers holds per-driver configuration (Reva-style).
	// Example: [cache.drivers.redis] address = "localhost:6379"
	Drivers map[string]any `toml:"drivers"`
}

// TUIConfig controls the terminal panel.
type TUIConfig struct {
	Enabled bool `toml:"enabled"`
}

// BuildServiceConfig returns the raw service config map for a given service name.
// Returns nil if the service is not configured in [http.services.<name>].
func (c *Config) BuildServiceConfig(serviceName string) map[string]any {
	if c.HTTP.Services == nil {
		return nil
	}
	svcCfg, ok := c.HTTP.Services[serviceName]
	if !ok {
		return nil
	}
	// Return a copy to prevent mutation
	result := make(map[string]any)
	for k, v := range svcCfg {
		result[k] = v
	}
	return result
}

// Redacted returns a string representation of the config with secrets redacted.
// The redis password is the only secret.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  ExternalBasePath: %q,\n", c.ExternalBasePath))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString(fmt.Sprintf("  Server: {TrustedProxies: %v},\n", c.Server.TrustedProxies))
	sb.WriteString("  Logging: {\n")
	sb.WriteString(fmt.Sprintf("    Level: %q,\n", c.Logging.Level))
	sb.WriteString(fmt.Sprintf("    File: %q,\n", c.Logging.File))
	sb.WriteString("  },\n")
	sb.WriteString("  Pairing: {\n")
	sb.WriteString(fmt.Sprintf("    RequestTTLSeconds: %d,\n", c.Pairing.RequestTTLSeconds))
	sb.WriteString(fmt.Sprintf("    SweepSchedule: %q,\n", c.Pairing.SweepSchedule))
	sb.WriteString(fmt.Sprintf("    SectionTag: %q,\n", c.Pairing.SectionTag))
	sb.WriteString(fmt.Sprintf("    NotificationHistory: %d,\n", c.Pairing.NotificationHistory))
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	sb.WriteString("  },\n")
	sb.WriteString("  Cache: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Cache.Driver))
	if redis, ok := c.Cache.Drivers["redis"].(map[string]any); ok {
		sb.WriteString(fmt.Sprintf("    Redis.Address: %v,\n", redis["address"]))
		if _, ok := redis["password"]; ok {
			sb.WriteString("    Redis.Password: [REDACTED],\n")
		}
	}
	sb.WriteString("  },\n")
	sb.WriteString(fmt.Sprintf("  TUI: {Enabled: %v},\n", c.TUI.Enabled))
	sb.WriteString("  HTTP: {\n")
	sb.WriteString(fmt.Sprintf("    ServicesCount: %d,\n", len(c.HTTP.Services)))
	if len(c.HTTP.Services) > 0 {
		names := make([]string, 0, len(c.HTTP.Services))
		for name := range c.HTTP.Services {
			names = append(names, fmt.Sprintf("%q", name))
		}
		sort.Strings(names)
		sb.WriteString("    Services: [" + strings.Join(names, ", ") + "],\n")
	}
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}
