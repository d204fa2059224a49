// Package api provides the /api/* endpoints.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/api"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/api/eventstream"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/api/inbox/pairrequests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service/httpwrap"
	"github.com/MahdiBaghbani/pairinbox-go/internal/interceptors"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

func init() {
	service.MustRegister("api", New)
}

// Config holds api service configuration.
type Config struct {
	// Ratelimit holds rate limiting configuration for this service.
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`

	// EventStream configures the websocket endpoint.
	EventStream EventStreamConfig `mapstructure:"event_stream"`
}

// RatelimitConfig holds the per-service rate limiting opt-in.
type RatelimitConfig struct {
	// Profile is the name of the ratelimit profile to use from
	// [http.interceptors.ratelimit.profiles.<name>]. It guards request
	// submission only.
	Profile string `mapstructure:"profile"`
}

// EventStreamConfig holds websocket settings.
type EventStreamConfig struct {
	// Enabled mounts GET /api/pair-requests/events. Default: true.
	Enabled *bool `mapstructure:"enabled"`

	// AllowedOrigins lists origins (or hosts) allowed to connect from a
	// browser. Empty means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.EventStream.Enabled == nil {
		enabled := true
		c.EventStream.Enabled = &enabled
	}
}

// Service is the API service.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new API service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "api", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Queue == nil || d.Panel == nil {
		return nil, errors.New("api: pair request queue and panel are required")
	}

	requestsHandler := pairrequests.NewHandler(d.Queue, d.Panel, d.Now, log)

	// Build ratelimit middleware for submission if profile is configured
	var submitMiddleware interceptors.Middleware
	if c.Ratelimit.Profile != "" {
		var interceptorsCfg map[string]map[string]any
		if d.Config != nil {
			interceptorsCfg = d.Config.HTTP.Interceptors
		}
		mw, err := interceptors.Build(interceptorsCfg, "ratelimit", c.Ratelimit.Profile, log)
		if err != nil {
			return nil, fmt.Errorf("api: %w", err)
		}
		submitMiddleware = mw
	}

	r := chi.NewRouter()

	r.Get("/healthz", api.NewHealthHandler(d.Queue.Count, d.Now))

	r.Route("/pair-requests", func(r chi.Router) {
		r.Get("/", requestsHandler.HandleList)
		if submitMiddleware != nil {
			r.With(submitMiddleware).Post("/", requestsHandler.HandleSubmit)
		} else {
			r.Post("/", requestsHandler.HandleSubmit)
		}
		r.Put("/section", requestsHandler.HandleSection)

		if *c.EventStream.Enabled && d.Bus != nil {
			stream := eventstream.NewHandler(d.Bus, d.Queue, d.Panel, c.EventStream.AllowedOrigins, d.Now, log)
			r.Method(http.MethodGet, "/events", stream)
		}

		r.Get("/{requesterId}", requestsHandler.HandleGet)
		r.Post("/{requesterId}/accept", requestsHandler.HandleAccept)
		r.Post("/{requesterId}/deny", requestsHandler.HandleDeny)
	})

	if *c.EventStream.Enabled && d.Bus == nil {
		log.Warn("event stream disabled: no event bus in shared deps")
	}

	return &Service{router: r, conf: &c, log: log}, nil
}

// Handler returns the service's HTTP handler with RawPath clearing.
func (s *Service) Handler() http.Handler {
	return httpwrap.ClearRawPath(s.router)
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "api"
}

// Unprotected returns paths that don't require authentication. The server
// has no authentication layer, so this only documents the public surface.
func (s *Service) Unprotected() []string {
	return []string{"/healthz"}
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
