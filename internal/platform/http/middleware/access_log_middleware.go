package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/http/realip"
)

// AccessLogMiddleware writes one "request" record per request with status,
// bytes and duration_ms added to the request-scoped logger's fields.
// Server errors log at error level. Health probes and the long-lived event
// stream log at debug so they do not flood the log.
func AccessLogMiddleware(log *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger, ok := appctx.LoggerFromContext(r.Context())
				if !ok {
					logger = baseFields(log, trustedProxies, r)
				}

				// Only response fields here; the context logger already has
				// the base fields and re-adding them duplicates keys.
				logger.Log(r.Context(), accessLevel(r, ww.Status()), "request",
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func accessLevel(r *http.Request, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case strings.HasSuffix(r.URL.Path, "/healthz"), strings.HasSuffix(r.URL.Path, "/pair-requests/events"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
