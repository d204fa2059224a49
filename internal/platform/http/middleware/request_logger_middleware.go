// Package middleware provides always-on transport middleware for HTTP servers.
package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/realip"
)

// RequestLoggerMiddleware attaches a request-scoped logger to the request
// context carrying request_id, method, path and client_ip. Handlers pick it
// up with appctx.LoggerOr.
//
// Must run after chimw.RequestID so GetReqID returns a value.
func RequestLoggerMiddleware(base *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := appctx.WithLogger(r.Context(), baseFields(base, trustedProxies, r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func baseFields(base *slog.Logger, trustedProxies *realip.TrustedProxies, r *http.Request) *slog.Logger {
	return base.With(
		"request_id", chimw.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path, // no query string
		"client_ip", trustedProxies.GetClientIPString(r),
	)
}
