package api //nolint:revive // package name is intentional

import "net/http"

// Routes registers all API endpoints on the mux using method-qualified
// patterns.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/cache/get", h.CacheGet)
	mux.HandleFunc("POST /v1/cache/set", h.CacheSet)
	mux.HandleFunc("POST /v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /v1/cache/stats", h.CacheStats)

	mux.HandleFunc("POST /v1/listeners", h.ListenersCreate)
	mux.HandleFunc("GET /v1/listeners", h.ListenersList)
	mux.HandleFunc("DELETE /v1/listeners", h.ListenersDelete)

	mux.HandleFunc("POST /v1/memory/{sessionID}", h.MemoryAppend)
	mux.HandleFunc("POST /v1/memory/{sessionID}/query", h.MemoryQuery)
	mux.HandleFunc("POST /v1/memory/{sessionID}/consolidate", h.MemoryConsolidate)
	mux.HandleFunc("DELETE /v1/memory/{sessionID}", h.MemoryEndSession)

	mux.HandleFunc("GET /health/live", h.HealthLive)
	mux.HandleFunc("GET /health/ready", h.HealthReady)
}
