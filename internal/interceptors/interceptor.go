// Package interceptors holds named HTTP middleware that services opt into
// by profile.
package interceptors

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Middleware is an HTTP middleware function.
type Middleware func(http.Handler) http.Handler

// NewInterceptor builds a Middleware from one profile's config map.
type NewInterceptor func(conf map[string]any, log *slog.Logger) (Middleware, error)

// Build resolves [http.interceptors.<name>.profiles.<profile>] and passes it
// to the registered constructor for name.
func Build(interceptorsCfg map[string]map[string]any, name, profile string, log *slog.Logger) (Middleware, error) {
	newFn, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("interceptor %q not registered", name)
	}
	conf, err := GetProfileConfig(interceptorsCfg, name, profile)
	if err != nil {
		return nil, err
	}
	mw, err := newFn(conf, log)
	if err != nil {
		return nil, fmt.Errorf("interceptor %q profile %q: %w", name, profile, err)
	}
	if mw == nil {
		return nil, fmt.Errorf("interceptor %q returned nil middleware", name)
	}
	return mw, nil
}
