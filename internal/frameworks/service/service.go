package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

// Service is an HTTP surface mounted at /<Prefix>/ under the external base
// path. Close runs once during server shutdown.
type Service interface {
	Handler() http.Handler
	Prefix() string
	Close() error
	Unprotected() []string
}

// NewService is the constructor function type for services.
type NewService func(conf map[string]any, log *slog.Logger) (Service, error)

// ConfigLookup returns the [http.services.<name>] table, or nil when the
// table is absent.
type ConfigLookup func(name string) map[string]any

// BuildAll constructs every core service plus each registered service that
// has a config table. On failure the services already built are closed.
func BuildAll(lookup ConfigLookup, log *slog.Logger) (map[string]Service, error) {
	log = logutil.NoopIfNil(log)
	built := make(map[string]Service)
	for _, name := range RegisteredServices() {
		var conf map[string]any
		if lookup != nil {
			conf = lookup(name)
		}
		if conf == nil && !IsCore(name) {
			continue
		}
		svc, err := Get(name)(conf, log.With("service", name))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("service %s: %w", name, err), closeAll(built))
		}
		built[name] = svc
	}
	for _, name := range CoreServices {
		if _, ok := built[name]; !ok {
			return nil, errors.Join(fmt.Errorf("core service %q not registered", name), closeAll(built))
		}
	}
	return built, nil
}

func closeAll(services map[string]Service) error {
	var errs []error
	for name, svc := range services {
		if err := svc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
