// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr       *string
	ExternalBasePath *string
	LoggingLevel     *string
	LoggingFile      *string
	StoreDriver      *string
	StoreDataDir     *string
	TUIEnabled       *string // "true", "false", or "" (unset)
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode string `toml:"mode"`

	ExternalBasePath string `toml:"external_base_path"`
	ListenAddr       string `toml:"listen_addr"`

	Server  *ServerConfig   `toml:"server"`
	Logging *loggingConfig  `toml:"logging"`
	Pairing *pairingConfig  `toml:"pairing"`
	Store   *StoreConfig    `toml:"store"`
	Cache   *cacheConfig    `toml:"cache"`
	TUI     *tuiConfig      `toml:"tui"`
	HTTP    *httpFileConfig `toml:"http"`
}

// httpFileConfig holds per-service HTTP configuration from TOML.
type httpFileConfig struct {
	Services     map[string]map[string]any `toml:"services"`
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// loggingConfig holds logging settings from TOML.
type loggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type pairingConfig struct {
	RequestTTLSeconds   *int   `toml:"request_ttl_seconds"`
	SweepSchedule       string `toml:"sweep_schedule"`
	SectionTag          string `toml:"section_tag"`
	NotificationHistory *int   `toml:"notification_history"`
}

// cacheConfig holds cache settings from TOML.
type cacheConfig struct {
	Driver  string         `toml:"driver"`
	Drivers map[string]any `toml:"drivers"`
}

type tuiConfig struct {
	Enabled *bool `toml:"enabled"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	// Step 1: Load TOML file if provided
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keyStr := k.String()
				if keyStr == "request_ttl" || keyStr == "pairing.request_ttl" {
					return nil, fmt.Errorf("config key 'request_ttl' is not supported; use 'pairing.request_ttl_seconds'")
				}
				keys = append(keys, keyStr)
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	// Step 2: Determine effective mode
	modeStr := "strict" // default
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	// Step 3: Start from mode preset
	cfg := presetForMode(mode)

	// Step 4: Overlay TOML values
	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	// Step 5: Overlay CLI flags
	if err := overlayFlags(cfg, opts.FlagOverrides); err != nil {
		return nil, err
	}

	// Step 6: Validate enum fields (fatal on invalid values)
	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	switch mode {
	case ModeDev:
		return DevConfig()
	default:
		return StrictConfig()
	}
}

// StrictConfig returns production-safe strict defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:             string(ModeStrict),
		ExternalBasePath: "",
		ListenAddr:       ":9300",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Pairing: PairingConfig{
			RequestTTLSeconds:   30,
			SweepSchedule:       "@every 1s",
			SectionTag:          "pair_requests",
			NotificationHistory: 20,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".pairinbox/data",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
	}
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.ListenAddr = "127.0.0.1:9300"
	cfg.Logging.Level = "debug"
	cfg.Store.Driver = "memory"
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil && len(fc.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = fc.Server.TrustedProxies
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.File != "" {
			cfg.Logging.File = fc.Logging.File
		}
	}

	if fc.Pairing != nil {
		if fc.Pairing.RequestTTLSeconds != nil {
			cfg.Pairing.RequestTTLSeconds = *fc.Pairing.RequestTTLSeconds
		}
		if fc.Pairing.SweepSchedule != "" {
			cfg.Pairing.SweepSchedule = fc.Pairing.SweepSchedule
		}
		if fc.Pairing.SectionTag != "" {
			cfg.Pairing.SectionTag = fc.Pairing.SectionTag
		}
		if fc.Pairing.NotificationHistory != nil {
			cfg.Pairing.NotificationHistory = *fc.Pairing.NotificationHistory
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Drivers != nil {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}

	if fc.TUI != nil && fc.TUI.Enabled != nil {
		cfg.TUI.Enabled = *fc.TUI.Enabled
	}

	if fc.HTTP != nil {
		if fc.HTTP.Services != nil {
			cfg.HTTP.Services = fc.HTTP.Services
		}
		if fc.HTTP.Interceptors != nil {
			cfg.HTTP.Interceptors = fc.HTTP.Interceptors
		}
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) error {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.ExternalBasePath != nil && *f.ExternalBasePath != "" {
		cfg.ExternalBasePath = *f.ExternalBasePath
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.LoggingFile != nil && *f.LoggingFile != "" {
		cfg.Logging.File = *f.LoggingFile
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.StoreDataDir != nil && *f.StoreDataDir != "" {
		cfg.Store.DataDir = *f.StoreDataDir
	}
	if f.TUIEnabled != nil && *f.TUIEnabled != "" {
		switch strings.ToLower(*f.TUIEnabled) {
		case "true":
			cfg.TUI.Enabled = true
		case "false":
			cfg.TUI.Enabled = false
		default:
			return fmt.Errorf("invalid --tui value %q: must be true or false", *f.TUIEnabled)
		}
	}
	return nil
}

// validateEnums checks enum and range fields after all overlays.
func validateEnums(cfg *Config) error {
	// logging.level validation
	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.Pairing.RequestTTLSeconds <= 0 {
		return fmt.Errorf("invalid pairing.request_ttl_seconds %d: must be positive", cfg.Pairing.RequestTTLSeconds)
	}
	if _, err := cron.ParseStandard(cfg.Pairing.SweepSchedule); err != nil {
		return fmt.Errorf("invalid pairing.sweep_schedule %q: %w", cfg.Pairing.SweepSchedule, err)
	}
	if strings.TrimSpace(cfg.Pairing.SectionTag) == "" {
		return fmt.Errorf("invalid pairing.section_tag: must not be empty")
	}
	if cfg.Pairing.NotificationHistory < 0 {
		return fmt.Errorf("invalid pairing.notification_history %d: must not be negative", cfg.Pairing.NotificationHistory)
	}

	switch cfg.Store.Driver {
	case "memory":
	case "json", "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the %s driver", cfg.Store.Driver)
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, json, sqlite", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case "memory", "redis", "":
		// valid (empty defaults to memory)
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory or redis", cfg.Cache.Driver)
	}

	if cfg.ExternalBasePath != "" {
		if !strings.HasPrefix(cfg.ExternalBasePath, "/") {
			return fmt.Errorf("invalid external_base_path %q: must start with '/'", cfg.ExternalBasePath)
		}
		if strings.Contains(cfg.ExternalBasePath, "..") {
			return fmt.Errorf("invalid external_base_path %q: must not contain '..'", cfg.ExternalBasePath)
		}
	}

	// http.interceptors.ratelimit validation (fail fast)
	if err := validateRatelimitConfig(cfg); err != nil {
		return err
	}

	return nil
}

// validateRatelimitConfig validates ratelimit interceptor configuration.
// Profiles are defined at [http.interceptors.ratelimit.profiles.<name>].
// Services opt-in via [http.services.<svc>.ratelimit] with profile = "<name>".
// If a service references a profile, that profile must exist.
func validateRatelimitConfig(cfg *Config) error {
	profiles := make(map[string]bool)
	if cfg.HTTP.Interceptors != nil {
		if rlCfg, ok := cfg.HTTP.Interceptors["ratelimit"]; ok {
			if profilesRaw, ok := rlCfg["profiles"]; ok {
				profilesMap, ok := profilesRaw.(map[string]any)
				if !ok {
					return fmt.Errorf("http.interceptors.ratelimit.profiles must be a map")
				}
				for name, profile := range profilesMap {
					if _, ok := profile.(map[string]any); !ok {
						return fmt.Errorf("http.interceptors.ratelimit.profiles.%s must be a map", name)
					}
					profiles[name] = true
				}
			}
		}
	}

	for svcName, svcCfg := range cfg.HTTP.Services {
		rlMap, ok := svcCfg["ratelimit"].(map[string]any)
		if !ok {
			continue
		}
		if profileStr, ok := rlMap["profile"].(string); ok && !profiles[profileStr] {
			return fmt.Errorf("http.services.%s.ratelimit references undefined profile %q", svcName, profileStr)
		}
	}

	return nil
}
