// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

var ErrMissingSharedDeps = errors.New("shared deps not initialized: call deps.SetDeps() before server.New()")

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	services   map[string]service.Service // keyed by service name (api, ui)

	// mountedServices tracks services for lifecycle management (Close on shutdown).
	// Stored in mount order; closed in reverse order during shutdown.
	mountedServices []service.Service
}

// New creates a new Server with the given configuration.
// Services are passed as a name->service map; nil entries are skipped.
// Returns an error if SharedDeps is not initialized.
func New(cfg *config.Config, logger *slog.Logger, services map[string]service.Service) (*Server, error) {
	logger = logutil.NoopIfNil(logger)

	if deps.GetDeps() == nil {
		return nil, ErrMissingSharedDeps
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		services: services,
	}

	// No WriteTimeout: the event stream holds its connection open.
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves until Shutdown.
// It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server",
		"addr", ln.Addr().String(),
		"external_base_path", s.cfg.ExternalBasePath,
		"services", len(s.mountedServices),
	)
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	httpErr := s.httpServer.Shutdown(ctx)

	// Close services in reverse mount order (last mounted = first closed)
	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		prefix := svc.Prefix()
		if prefix == "" {
			prefix = "(root)"
		}
		if err := svc.Close(); err != nil {
			s.logger.Warn("service close error", "service", prefix, "error", err)
			continue
		}
		s.logger.Debug("service closed", "service", prefix)
	}

	return httpErr
}
