package api //nolint:revive // package name is intentional

import (
	"net/http"

	"github.com/blueberrycongee/cachemux/internal/auth"
	"github.com/blueberrycongee/cachemux/internal/memory"
	cmerrors "github.com/blueberrycongee/cachemux/pkg/errors"
)

type memoryAppendRequest struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Namespace string `json:"namespace,omitempty"`
}

// MemoryAppend handles POST /v1/memory/{sessionID}.
func (h *Handler) MemoryAppend(w http.ResponseWriter, r *http.Request) {
	if h.memory == nil {
		h.writeError(w, cmerrors.NewInvalidRequestError("memory surface is disabled"))
		return
	}

	var req memoryAppendRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := auth.CheckNamespace(r.Context(), req.Namespace); err != nil {
		h.writeError(w, err)
		return
	}

	item, err := h.memory.Append(r.Context(), req.Namespace, r.PathValue("sessionID"), req.Role, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

type memoryQueryRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// MemoryQuery handles POST /v1/memory/{sessionID}/query.
func (h *Handler) MemoryQuery(w http.ResponseWriter, r *http.Request) {
	if h.memory == nil {
		h.writeError(w, cmerrors.NewInvalidRequestError("memory surface is disabled"))
		return
	}

	var req memoryQueryRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Query == "" {
		h.writeError(w, cmerrors.NewInvalidRequestError("query is required"))
		return
	}

	if err := auth.CheckNamespace(r.Context(), req.Namespace); err != nil {
		h.writeError(w, err)
		return
	}

	results, err := h.memory.Query(r.Context(), req.Namespace, r.PathValue("sessionID"), req.Query, req.Limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if results == nil {
		results = []memory.Retrieved{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type memoryConsolidateRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// MemoryConsolidate handles POST /v1/memory/{sessionID}/consolidate.
func (h *Handler) MemoryConsolidate(w http.ResponseWriter, r *http.Request) {
	if h.memory == nil {
		h.writeError(w, cmerrors.NewInvalidRequestError("memory surface is disabled"))
		return
	}

	var req memoryConsolidateRequest
	if r.ContentLength > 0 {
		if err := h.decode(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	if err := auth.CheckNamespace(r.Context(), req.Namespace); err != nil {
		h.writeError(w, err)
		return
	}

	report, err := h.memory.Consolidate(r.Context(), req.Namespace, r.PathValue("sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// MemoryEndSession handles DELETE /v1/memory/{sessionID}. It drops the
// session's hot and warm tiers; admitted long-term facts survive.
func (h *Handler) MemoryEndSession(w http.ResponseWriter, r *http.Request) {
	if h.memory == nil {
		h.writeError(w, cmerrors.NewInvalidRequestError("memory surface is disabled"))
		return
	}

	h.memory.EndSession(r.PathValue("sessionID"))
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
