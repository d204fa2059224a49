package server

import (
	"net/http"
	"slices"
	"sort"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/pairinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/deps"
	httpmw "github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/middleware"
)

// mountOrder returns service names with core services first, in their
// declared order, then the rest sorted.
func mountOrder(services map[string]service.Service) []string {
	var names []string
	for _, name := range service.CoreServices {
		if _, ok := services[name]; ok {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range services {
		if !slices.Contains(service.CoreServices, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// mountService mounts a service and tracks it for lifecycle management.
func (s *Server) mountService(r chi.Router, svc service.Service) {
	if svc == nil {
		return
	}

	if prefix := svc.Prefix(); prefix == "" {
		r.Mount("/", svc.Handler())
	} else {
		r.Mount("/"+prefix, svc.Handler())
	}

	s.mountedServices = append(s.mountedServices, svc)
}

// setupRoutes creates the chi router with all services mounted.
func (s *Server) setupRoutes() chi.Router {
	d := deps.GetDeps()
	r := chi.NewRouter()

	// Always-on transport middleware (order is invariant):
	// RequestID -> request-scoped logger -> access log -> recoverer
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger, d.RealIP))
	r.Use(httpmw.AccessLogMiddleware(s.logger, d.RealIP))
	r.Use(chimw.Recoverer)

	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, s.mountAppEndpoints)
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts the services under the base path and sends the
// bare base path to the pair request page when the ui service is mounted.
func (s *Server) mountAppEndpoints(r chi.Router) {
	for _, name := range mountOrder(s.services) {
		s.mountService(r, s.services[name])
	}

	if s.services["ui"] != nil {
		target := s.cfg.ExternalBasePath + "/ui/pair-requests"
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}
