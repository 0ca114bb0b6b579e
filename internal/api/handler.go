// Package api provides the HTTP handlers for the cache engine: response
// cache lookups and writes, invalidation, listener registration, and the
// tiered memory surface.
package api //nolint:revive // package name is intentional

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/cachemux/internal/cache"
	"github.com/blueberrycongee/cachemux/internal/listener"
	"github.com/blueberrycongee/cachemux/internal/memory"
	cmerrors "github.com/blueberrycongee/cachemux/pkg/errors"
)

// maxBodyBytes bounds request bodies to keep oversized payloads from
// reaching the JSON decoder.
const maxBodyBytes = 16 * 1024 * 1024

// Handler handles HTTP requests for the cache engine.
type Handler struct {
	service     *cache.Service
	invalidator *cache.InvalidationController
	memory      *memory.TierManager
	listeners   *listener.Registry
	logger      *slog.Logger
}

// NewHandler creates a new API handler. memory and listeners may be nil
// when those surfaces are disabled.
func NewHandler(service *cache.Service, invalidator *cache.InvalidationController, mem *memory.TierManager, listeners *listener.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:     service,
		invalidator: invalidator,
		memory:      mem,
		listeners:   listeners,
		logger:      logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	cacheErr, ok := err.(*cmerrors.CacheError)
	if !ok {
		cacheErr = cmerrors.NewInternalError(err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(cacheErr.HTTPStatusCode())

	resp := ErrorResponse{
		Error: ErrorDetail{
			Message: cacheErr.Message,
			Type:    cacheErr.Type,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// decode reads and unmarshals a JSON request body into v.
func (h *Handler) decode(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cmerrors.NewInvalidRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}

// HealthLive handles GET /health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady handles GET /health/ready. Readiness requires the exact
// store backend to answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
