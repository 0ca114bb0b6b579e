package api //nolint:revive // package name is intentional

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/cachemux/internal/auth"
	"github.com/blueberrycongee/cachemux/internal/cache"
	cmerrors "github.com/blueberrycongee/cachemux/pkg/errors"
	"github.com/blueberrycongee/cachemux/pkg/types"
)

type cacheGetRequest struct {
	types.CacheRequest

	// Semantic enables the similarity fallback after an exact miss.
	Semantic bool `json:"semantic,omitempty"`

	// Threshold overrides the configured similarity threshold.
	Threshold float64 `json:"threshold,omitempty"`
}

type freshness struct {
	CreatedAt int64 `json:"created_at"`
	AgeMs     int64 `json:"age_ms"`
}

type cacheGetResponse struct {
	Hit       bool            `json:"hit"`
	Source    string          `json:"source"`
	Value     json.RawMessage `json:"value,omitempty"`
	Score     float64         `json:"score,omitempty"`
	Freshness *freshness      `json:"freshness,omitempty"`
}

// CacheGet handles POST /v1/cache/get.
func (h *Handler) CacheGet(w http.ResponseWriter, r *http.Request) {
	var req cacheGetRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := auth.CheckNamespace(r.Context(), req.Namespace); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.Lookup(r.Context(), &req.CacheRequest, cache.LookupOptions{
		Semantic:  req.Semantic,
		Threshold: req.Threshold,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := cacheGetResponse{
		Hit:    result.Hit,
		Source: result.Source,
	}
	if result.Hit {
		resp.Value = json.RawMessage(result.Value)
		resp.Score = result.Score
		if result.CreatedAt > 0 {
			resp.Freshness = &freshness{
				CreatedAt: result.CreatedAt,
				AgeMs:     time.Since(time.Unix(result.CreatedAt, 0)).Milliseconds(),
			}
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type cacheSetRequest struct {
	types.CacheRequest

	Value      json.RawMessage `json:"value"`
	TTLSeconds int             `json:"ttl_seconds,omitempty"`
	SourceURL  string          `json:"source_url,omitempty"`
	Semantic   bool            `json:"semantic,omitempty"`
}

// CacheSet handles POST /v1/cache/set.
func (h *Handler) CacheSet(w http.ResponseWriter, r *http.Request) {
	var req cacheSetRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := auth.CheckNamespace(r.Context(), req.Namespace); err != nil {
		h.writeError(w, err)
		return
	}

	if req.TTLSeconds < 0 {
		h.writeError(w, cmerrors.NewInvalidRequestError("ttl_seconds cannot be negative"))
		return
	}

	err := h.service.Store(r.Context(), &req.CacheRequest, []byte(req.Value), cache.StoreOptions{
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		Semantic:  req.Semantic,
		SourceURL: req.SourceURL,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type invalidateRequest struct {
	Pattern          string `json:"pattern,omitempty"`
	Namespace        string `json:"namespace,omitempty"`
	OlderThanSeconds int64  `json:"older_than_seconds,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// invalidateScope resolves the namespace an invalidation request
// effectively targets. Fingerprint keys have the form "namespace:hex",
// so a pattern with a literal prefix before the first ':' is scoped to
// that namespace. Filters with no derivable namespace (age-only, or a
// pattern whose namespace segment contains wildcards) can reach every
// tenant and therefore require a wildcard grant.
func invalidateScope(req *invalidateRequest) string {
	if req.Namespace != "" {
		return req.Namespace
	}
	if i := strings.IndexByte(req.Pattern, ':'); i > 0 {
		if ns := req.Pattern[:i]; !strings.ContainsAny(ns, "*?[") {
			return ns
		}
	}
	return "*"
}

// CacheInvalidate handles POST /v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := auth.CheckNamespace(r.Context(), invalidateScope(&req)); err != nil {
		h.writeError(w, err)
		return
	}

	purged, err := h.invalidator.Invalidate(r.Context(), cache.Filter{
		Pattern:   req.Pattern,
		Namespace: req.Namespace,
		OlderThan: time.Duration(req.OlderThanSeconds) * time.Second,
	}, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"purged_count": purged,
	})
}

// CacheStats handles GET /v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"exact": h.service.ExactStore().Stats(),
	}
	if m := h.service.Matcher(); m != nil {
		resp["semantic"] = m.Stats()
	}
	h.writeJSON(w, http.StatusOK, resp)
}
