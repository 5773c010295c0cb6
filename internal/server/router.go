package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sparrowflix/contentcache/internal/cache"
)

// Diagnostics is the minimal surface the router needs from the cache manager
// to serve operational endpoints.
type Diagnostics interface {
	Stats() cache.Stats
	Healthy(ctx context.Context) error
}

// NewDiagnosticsHandler exposes /healthz and /stats over the supplied manager.
// Both endpoints are read-only and carry no correctness contract; /metrics is
// mounted separately by the caller.
func NewDiagnosticsHandler(diag Diagnostics) http.Handler {
	if diag == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "cache manager unavailable", http.StatusServiceUnavailable)
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := diag.Healthy(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, diag.Stats())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
