package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the body of GET /api/healthz.
type HealthResponse struct {
	Status  string    `json:"status"`
	Pending int       `json:"pending"`
	Time    time.Time `json:"time"`
}

// NewHealthHandler reports liveness along with the number of pending pair
// requests. pending and now may be nil.
func NewHealthHandler(pending func() int, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Time: now().UTC()}
		if pending != nil {
			resp.Pending = pending()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
