// Package ui provides the /ui/* endpoints as a registry service.
package ui

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/ui"
	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service/httpwrap"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

func init() {
	service.MustRegister("ui", New)
}

// Config holds ui service configuration (service-local knobs only).
type Config struct {
	// RefreshSeconds is the page's meta refresh interval. Default: 1.
	RefreshSeconds int `mapstructure:"refresh_seconds"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.RefreshSeconds <= 0 {
		c.RefreshSeconds = 1
	}
}

// Service is the UI service.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new UI service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "ui", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Panel == nil {
		return nil, errors.New("ui: panel is required")
	}

	basePath := ""
	if d.Config != nil {
		basePath = d.Config.ExternalBasePath
	}

	opts := ui.Options{
		BasePath:       basePath,
		RefreshSeconds: c.RefreshSeconds,
		Clock:          d.Now,
		Logger:         log,
	}
	if d.Presenter != nil {
		opts.Toasts = d.Presenter
	}

	// Templates are embedded in the ui package
	uiHandler, err := ui.NewHandler(d.Panel, opts)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Get("/pair-requests", uiHandler.PairRequests)
	r.Get("/pair-requests/section", uiHandler.Section)
	r.Post("/pair-requests/toggle", uiHandler.Toggle)
	r.Post("/pair-requests/{requesterId}/accept", uiHandler.Accept)
	r.Post("/pair-requests/{requesterId}/deny", uiHandler.Deny)

	return &Service{router: r, conf: &c, log: log}, nil
}

// Handler returns the service's HTTP handler with RawPath clearing.
func (s *Service) Handler() http.Handler {
	return httpwrap.ClearRawPath(s.router)
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "ui"
}

// Unprotected returns paths that don't require authentication.
func (s *Service) Unprotected() []string {
	return []string{"/pair-requests"}
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
