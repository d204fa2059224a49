// Package httpwrap provides HTTP handler wrappers for service layer use.
package httpwrap

import "net/http"

// ClearRawPath wraps a handler and clears r.URL.RawPath before routing.
// With RawPath cleared chi routes on the decoded Path, so a needlessly
// escaped {requesterId} matches the id the queue stores.
func ClearRawPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.RawPath = ""
		next.ServeHTTP(w, r)
	})
}
