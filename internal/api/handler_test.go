package api //nolint:revive // package name is intentional

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/cachemux/internal/auth"
	"github.com/blueberrycongee/cachemux/internal/cache"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic/embedding"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic/vector"
	"github.com/blueberrycongee/cachemux/internal/listener"
	"github.com/blueberrycongee/cachemux/internal/memory"
)

func newTestHandler(t *testing.T) (*Handler, *embedding.StaticEmbedder) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	emb := embedding.NewStaticEmbedder(3)
	matcher, err := semantic.NewMatcher(emb, vector.NewInMemStore(), semantic.Config{
		SimilarityThreshold: 0.9,
	})
	require.NoError(t, err)

	store := cache.NewMemoryStore(cache.DefaultMemoryStoreConfig())
	t.Cleanup(func() { _ = store.Close() })

	service := cache.NewService(store, matcher, logger, cache.ServiceConfig{})
	invalidator := cache.NewInvalidationController(store, matcher, logger)

	validator := memory.NewAdmissionValidator(matcher, 0)
	mem := memory.NewTierManager(matcher, validator, logger, memory.Config{
		L1Capacity: 2,
		L2Capacity: 4,
	})

	registry := listener.NewRegistry(listener.NewMemoryStore(), logger)

	return NewHandler(service, invalidator, mem, registry, logger), emb
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func cacheBody(content string, extra map[string]any) map[string]any {
	body := map[string]any{
		"provider": "openai",
		"model":    "gpt-4o",
		"messages": []map[string]string{
			{"role": "user", "content": content},
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func TestCacheGetSet_RoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/cache/get", cacheBody("capital of France?", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var miss cacheGetResponse
	decodeBody(t, rec, &miss)
	assert.False(t, miss.Hit)
	assert.Equal(t, "miss", miss.Source)

	rec = doRequest(t, h, http.MethodPost, "/v1/cache/set", cacheBody("capital of France?", map[string]any{
		"value": map[string]string{"answer": "Paris"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/cache/get", cacheBody("capital of France?", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var hit cacheGetResponse
	decodeBody(t, rec, &hit)
	assert.True(t, hit.Hit)
	assert.Equal(t, "exact", hit.Source)
	assert.JSONEq(t, `{"answer":"Paris"}`, string(hit.Value))
	require.NotNil(t, hit.Freshness)
	assert.Positive(t, hit.Freshness.CreatedAt)
	assert.GreaterOrEqual(t, hit.Freshness.AgeMs, int64(0))
}

func TestCacheGet_SemanticFallback(t *testing.T) {
	h, emb := newTestHandler(t)

	stored := "user: what is the capital of France?"
	paraphrase := "user: France's capital city is?"
	emb.Register(stored, []float64{1, 0, 0})
	emb.Register(paraphrase, []float64{1, 0, 0})

	rec := doRequest(t, h, http.MethodPost, "/v1/cache/set", cacheBody("what is the capital of France?", map[string]any{
		"value":    map[string]string{"answer": "Paris"},
		"semantic": true,
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/cache/get", cacheBody("France's capital city is?", map[string]any{
		"semantic":  true,
		"threshold": 0.5,
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var hit cacheGetResponse
	decodeBody(t, rec, &hit)
	assert.True(t, hit.Hit)
	assert.Equal(t, "semantic", hit.Source)
	assert.Positive(t, hit.Score)
	assert.Nil(t, hit.Freshness)
}

func TestCacheGet_MalformedBody(t *testing.T) {
	h, _ := newTestHandler(t)

	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/cache/get", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_error")
}

func TestCacheSet_MissingValue(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/cache/set", cacheBody("hi", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_error")
}

func TestCacheInvalidate(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, prompt := range []string{"q1", "q2"} {
		rec := doRequest(t, h, http.MethodPost, "/v1/cache/set", cacheBody(prompt, map[string]any{
			"value":     map[string]string{"a": prompt},
			"namespace": "tenant-a",
		}))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("unscoped filter rejected", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"reason": "no filter",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("namespace purge returns count", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"namespace": "tenant-a",
			"reason":    "doc updated",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success     bool  `json:"success"`
			PurgedCount int64 `json:"purged_count"`
		}
		decodeBody(t, rec, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, int64(2), resp.PurgedCount)
	})

	t.Run("repeat purge is idempotent", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"namespace": "tenant-a",
			"reason":    "doc updated",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			PurgedCount int64 `json:"purged_count"`
		}
		decodeBody(t, rec, &resp)
		assert.Zero(t, resp.PurgedCount)
	})
}

func doRequestAs(t *testing.T, h *Handler, key *auth.APIKey, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(method, path, reader)
	ctx := auth.WithAuthContext(context.Background(), &auth.AuthContext{APIKey: key})
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCacheInvalidate_ScopeEnforced(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/cache/set", cacheBody("q1", map[string]any{
		"value":     map[string]string{"a": "1"},
		"namespace": "tenant-b",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	scoped := &auth.APIKey{ID: "key-1", Namespaces: []string{"tenant-a"}}

	t.Run("pattern outside grant is forbidden", func(t *testing.T) {
		rec := doRequestAs(t, h, scoped, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"pattern": "tenant-b:*",
			"reason":  "cross-tenant attempt",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "forbidden_error")
	})

	t.Run("age-only filter needs wildcard grant", func(t *testing.T) {
		rec := doRequestAs(t, h, scoped, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"older_than_seconds": 1,
			"reason":             "stale sweep",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("wildcard namespace segment needs wildcard grant", func(t *testing.T) {
		rec := doRequestAs(t, h, scoped, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"pattern": "*:*",
			"reason":  "flush everything",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("granted namespace still works", func(t *testing.T) {
		rec := doRequestAs(t, h, scoped, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"namespace": "tenant-a",
			"reason":    "doc updated",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wildcard grant may purge by pattern", func(t *testing.T) {
		admin := &auth.APIKey{ID: "key-admin", Namespaces: []string{"*"}}
		rec := doRequestAs(t, h, admin, http.MethodPost, "/v1/cache/invalidate", map[string]any{
			"pattern": "tenant-b:*",
			"reason":  "tenant offboarded",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			PurgedCount int64 `json:"purged_count"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, int64(1), resp.PurgedCount)
	})
}

func TestInvalidateScope(t *testing.T) {
	tests := []struct {
		name string
		req  invalidateRequest
		want string
	}{
		{"explicit namespace wins", invalidateRequest{Namespace: "tenant-a", Pattern: "tenant-b:*"}, "tenant-a"},
		{"pattern prefix derives namespace", invalidateRequest{Pattern: "tenant-b:*"}, "tenant-b"},
		{"wildcard prefix is unscoped", invalidateRequest{Pattern: "*:abc"}, "*"},
		{"pattern without separator is unscoped", invalidateRequest{Pattern: "abc*"}, "*"},
		{"age-only filter is unscoped", invalidateRequest{OlderThanSeconds: 60}, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, invalidateScope(&tt.req))
		})
	}
}

func TestCacheGet_NamespaceForbidden(t *testing.T) {
	h, _ := newTestHandler(t)

	mux := http.NewServeMux()
	h.Routes(mux)

	data, err := json.Marshal(cacheBody("hi", map[string]any{"namespace": "tenant-b"}))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/cache/get", bytes.NewReader(data))
	ctx := auth.WithAuthContext(context.Background(), &auth.AuthContext{
		APIKey: &auth.APIKey{ID: "key-1", Namespaces: []string{"tenant-a"}},
	})
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden_error")
}

func TestListenerEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/listeners", map[string]any{
		"url":                  "https://docs.example.com/kb",
		"check_interval_ms":    5000,
		"namespace":            "tenant-a",
		"invalidate_on_change": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		ListenerID string `json:"listener_id"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ListenerID)

	rec = doRequest(t, h, http.MethodGet, "/v1/listeners", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Listeners []*listener.Listener `json:"listeners"`
	}
	decodeBody(t, rec, &listed)
	require.Len(t, listed.Listeners, 1)
	assert.Equal(t, "https://docs.example.com/kb", listed.Listeners[0].URL)
	assert.Equal(t, 5000, listed.Listeners[0].CheckIntervalMs)
	assert.Equal(t, "tenant-a", listed.Listeners[0].Namespace)
	assert.True(t, listed.Listeners[0].InvalidateOnChange)

	rec = doRequest(t, h, http.MethodDelete, "/v1/listeners?id="+created.ListenerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/v1/listeners?id="+created.ListenerID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/v1/listeners", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListenersCreate_InvalidURL(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/listeners", map[string]any{
		"url":               "not-a-url",
		"check_interval_ms": 5000,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_error")
}

func TestMemoryEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	appendTurn := func(content string) *httptest.ResponseRecorder {
		return doRequest(t, h, http.MethodPost, "/v1/memory/sess-1", map[string]any{
			"role":    "user",
			"content": content,
		})
	}

	rec := appendTurn("the deploy target is cluster-blue")
	require.Equal(t, http.StatusOK, rec.Code)

	var appended struct {
		Item memory.Item `json:"item"`
	}
	decodeBody(t, rec, &appended)
	assert.Equal(t, memory.TierL1, appended.Item.Tier)
	assert.Equal(t, "sess-1", appended.Item.SessionID)

	rec = appendTurn("lunch was pizza")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/memory/sess-1/query", map[string]any{
		"query": "deploy target",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var queried struct {
		Results []memory.Retrieved `json:"results"`
	}
	decodeBody(t, rec, &queried)
	require.Len(t, queried.Results, 1)
	assert.Contains(t, queried.Results[0].Item.Content, "cluster-blue")

	rec = doRequest(t, h, http.MethodPost, "/v1/memory/sess-1/consolidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report memory.ConsolidationReport
	decodeBody(t, rec, &report)
	assert.Equal(t, 2, report.Demoted)

	rec = doRequest(t, h, http.MethodDelete, "/v1/memory/sess-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryAppend_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/memory/sess-1", map[string]any{
		"role": "user",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/memory/sess-1/query", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")

	rec = doRequest(t, h, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheStats(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/cache/set", cacheBody("q", map[string]any{
		"value": "42",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	decodeBody(t, rec, &stats)
	assert.Contains(t, stats, "exact")
	assert.Contains(t, stats, "semantic")
}
