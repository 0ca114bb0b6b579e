package api //nolint:revive // package name is intentional

import (
	"net/http"

	"github.com/blueberrycongee/cachemux/internal/auth"
	"github.com/blueberrycongee/cachemux/internal/listener"
	cmerrors "github.com/blueberrycongee/cachemux/pkg/errors"
)

type registerListenerRequest struct {
	URL                string `json:"url"`
	CheckIntervalMs    int    `json:"check_interval_ms"`
	Namespace          string `json:"namespace,omitempty"`
	InvalidateOnChange bool   `json:"invalidate_on_change"`
}

// ListenersCreate handles POST /v1/listeners.
func (h *Handler) ListenersCreate(w http.ResponseWriter, r *http.Request) {
	if h.listeners == nil {
		h.writeError(w, cmerrors.NewInvalidRequestError("listener surface is disabled"))
		return
	}

	var req registerListenerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := auth.CheckNamespace(r.Context(), req.Namespace); err != nil {
		h.writeError(w, err)
		return
	}

	id, err := h.listeners.Register(r.Context(), &listener.Listener{
		URL:                req.URL,
		CheckIntervalMs:    req.CheckIntervalMs,
		Namespace:          req.Namespace,
		InvalidateOnChange: req.InvalidateOnChange,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"listener_id": id})
}

// ListenersList handles GET /v1/listeners.
func (h *Handler) ListenersList(w http.ResponseWriter, r *http.Request) {
	if h.listeners == nil {
		h.writeError(w, cmerrors.NewInvalidRequestError("listener surface is disabled"))
		return
	}

	list, err := h.listeners.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []*listener.Listener{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"listeners": list})
}

// ListenersDelete handles DELETE /v1/listeners?id=.
func (h *Handler) ListenersDelete(w http.ResponseWriter, r *http.Request) {
	if h.listeners == nil {
		h.writeError(w, cmerrors.NewInvalidRequestError("listener surface is disabled"))
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, cmerrors.NewInvalidRequestError("id query parameter is required"))
		return
	}

	if err := h.listeners.Unregister(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
