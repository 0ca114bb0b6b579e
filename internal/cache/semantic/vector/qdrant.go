package vector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// QdrantStore implements Store using the Qdrant vector database over its
// HTTP API. Namespaces map to a payload field with an index filter, so a
// single collection serves all tenants.
// Reference: https://qdrant.tech/documentation/concepts/search/
type QdrantStore struct {
	client     *http.Client
	apiBase    string
	apiKey     string
	collection string
	dimension  int
}

// QdrantConfig holds configuration for the Qdrant store.
type QdrantConfig struct {
	APIBase    string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// NewQdrantStore creates a new Qdrant vector store.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("qdrant api_base is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &QdrantStore{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiBase:    cfg.APIBase,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}, nil
}

// EnsureCollection creates the collection and the namespace payload index
// if they do not exist.
func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := q.collectionExists(ctx)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}

	if !exists {
		createBody := map[string]any{
			"vectors": map[string]any{
				"size":     q.dimension,
				"distance": "Cosine",
			},
		}
		if err := q.do(ctx, http.MethodPut,
			fmt.Sprintf("/collections/%s", q.collection), createBody, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	// Keyword index makes namespace filters cheap.
	indexBody := map[string]any{
		"field_name":   "namespace",
		"field_schema": "keyword",
	}
	if err := q.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/index", q.collection), indexBody, nil); err != nil {
		return fmt.Errorf("create namespace index: %w", err)
	}

	return nil
}

func (q *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodGet,
		fmt.Sprintf("/collections/%s/exists", q.collection), nil, &result)
	if err != nil {
		return false, err
	}
	return result.Result.Exists, nil
}

// Search finds similar vectors in Qdrant, scoped to the namespace.
func (q *QdrantStore) Search(ctx context.Context, vec []float64, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 1
	}

	searchBody := map[string]any{
		"vector":       vec,
		"limit":        opts.TopK,
		"with_payload": true,
		"filter":       namespaceFilter(opts.Namespace),
	}

	var searchResp qdrantSearchResponse
	err := q.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", q.collection), searchBody, &searchResp)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		// Qdrant returns cosine similarity; distance = 1 - score.
		distance := 1 - r.Score
		if opts.DistanceThreshold > 0 && distance > opts.DistanceThreshold {
			continue
		}

		results = append(results, SearchResult{
			ID:       r.ID,
			Score:    r.Score,
			Distance: distance,
			Payload: Payload{
				Prompt:    r.Payload.Prompt,
				Value:     r.Payload.Value,
				Namespace: r.Payload.Namespace,
				Model:     r.Payload.Model,
				CreatedAt: r.Payload.CreatedAt,
			},
		})
	}

	return results, nil
}

// Insert stores a vector in Qdrant.
func (q *QdrantStore) Insert(ctx context.Context, entry Entry) error {
	return q.InsertBatch(ctx, []Entry{entry})
}

// InsertBatch stores multiple vectors in Qdrant.
func (q *QdrantStore) InsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]qdrantPoint, 0, len(entries))
	for _, e := range entries {
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := e.Payload.CreatedAt
		if createdAt == 0 {
			createdAt = time.Now().Unix()
		}

		points = append(points, qdrantPoint{
			ID:     id,
			Vector: e.Vector,
			Payload: qdrantPayload{
				Prompt:    e.Payload.Prompt,
				Value:     e.Payload.Value,
				Namespace: e.Payload.Namespace,
				Model:     e.Payload.Model,
				CreatedAt: createdAt,
			},
		})
	}

	err := q.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points", q.collection),
		map[string]any{"points": points}, nil)
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Delete removes a vector from Qdrant by ID.
func (q *QdrantStore) Delete(ctx context.Context, id string) error {
	err := q.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/delete", q.collection),
		map[string]any{"points": []string{id}}, nil)
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// DeleteNamespace removes every point with the given namespace payload.
// Qdrant's delete-by-filter does not report a count, so -1 is returned.
func (q *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	err := q.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/delete", q.collection),
		map[string]any{"filter": namespaceFilter(namespace)}, nil)
	if err != nil {
		return 0, fmt.Errorf("qdrant delete namespace: %w", err)
	}
	return -1, nil
}

// Ping checks if Qdrant is healthy.
func (q *QdrantStore) Ping(ctx context.Context) error {
	return q.do(ctx, http.MethodGet, "/collections", nil, nil)
}

// Close releases resources.
func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

// do executes one Qdrant API call, decoding the response into out when
// out is non-nil.
func (q *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant %s %s: status=%d, body=%s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func namespaceFilter(namespace string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   "namespace",
				"match": map[string]any{"value": namespace},
			},
		},
	}
}

// Qdrant API types

type qdrantPoint struct {
	ID      string        `json:"id"`
	Vector  []float64     `json:"vector"`
	Payload qdrantPayload `json:"payload"`
}

type qdrantPayload struct {
	Prompt    string `json:"prompt"`
	Value     string `json:"value"`
	Namespace string `json:"namespace,omitempty"`
	Model     string `json:"model,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

type qdrantSearchResponse struct {
	Result []qdrantSearchResult `json:"result"`
}

type qdrantSearchResult struct {
	ID      string        `json:"id"`
	Score   float64       `json:"score"`
	Payload qdrantPayload `json:"payload"`
}
