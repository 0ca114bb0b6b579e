package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, wantAuth func(*http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantAuth(r)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingResponse{Object: "list", Model: req.Model}
		// Answer out of order to exercise index slotting.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{
				Object:    "embedding",
				Index:     i,
				Embedding: []float64{float64(i), 1, 0},
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPEmbedder_EmbedBatch(t *testing.T) {
	srv := embeddingServer(t, func(r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
	})
	defer srv.Close()

	e, err := New(Config{APIKey: "sk-test", APIBase: srv.URL, Model: "text-embedding-3-small", Dimension: 3})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float64{0, 1, 0}, vecs[0])
	assert.Equal(t, []float64{1, 1, 0}, vecs[1])
}

func TestHTTPEmbedder_AzureAuthStyle(t *testing.T) {
	srv := embeddingServer(t, func(r *http.Request) {
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
	})
	defer srv.Close()

	e, err := New(Config{
		APIKey:     "azure-key",
		APIBase:    srv.URL,
		AuthStyle:  AuthHeader,
		APIVersion: "2024-02-01",
		Dimension:  3,
	})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	require.NoError(t, err)
}

func TestHTTPEmbedder_CircuitOpensOnRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := New(Config{APIKey: "sk-test", APIBase: srv.URL, Dimension: 3})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err = e.Embed(ctx, "text")
		require.Error(t, err)
	}

	_, err = e.Embed(ctx, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestHTTPEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
