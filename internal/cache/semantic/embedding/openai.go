package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/blueberrycongee/cachemux/internal/resilience"
)

// AuthStyle selects how the API key is presented to the endpoint.
type AuthStyle string

const (
	// AuthBearer sends the key as "Authorization: Bearer <key>" (OpenAI).
	AuthBearer AuthStyle = "bearer"
	// AuthHeader sends the key as an "api-key" header (Azure OpenAI).
	AuthHeader AuthStyle = "api-key"
)

// HTTPEmbedder implements Embedder against any OpenAI-compatible
// embeddings endpoint, including Azure deployments.
type HTTPEmbedder struct {
	client     *http.Client
	apiKey     string
	endpoint   string
	model      string
	dimension  int
	authStyle  AuthStyle
	apiVersion string // appended as a query parameter when set (Azure)

	limiter *rate.Limiter // outbound request cap, nil = unlimited
	breaker *resilience.CircuitBreaker
}

// Config holds configuration for HTTPEmbedder.
type Config struct {
	APIKey     string
	APIBase    string // e.g. "https://api.openai.com/v1"
	Model      string
	Dimension  int
	Timeout    time.Duration
	AuthStyle  AuthStyle
	APIVersion string // Azure only, e.g. "2024-02-01"

	// MaxRequestsPerSecond caps outbound embedding calls. Zero means
	// unlimited.
	MaxRequestsPerSecond float64
}

// DefaultConfig returns defaults targeting OpenAI's embedding API.
func DefaultConfig() Config {
	return Config{
		APIBase:   "https://api.openai.com/v1",
		Model:     "text-embedding-3-small",
		Dimension: 1536,
		Timeout:   30 * time.Second,
		AuthStyle: AuthBearer,
	}
}

// New creates an HTTPEmbedder.
func New(cfg Config) (*HTTPEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api_key is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AuthStyle == "" {
		cfg.AuthStyle = AuthBearer
	}

	endpoint := cfg.APIBase + "/embeddings"
	if cfg.APIVersion != "" {
		endpoint += "?api-version=" + url.QueryEscape(cfg.APIVersion)
	}

	var limiter *rate.Limiter
	if cfg.MaxRequestsPerSecond > 0 {
		burst := int(cfg.MaxRequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), burst)
	}

	return &HTTPEmbedder{
		client:     &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		authStyle:  cfg.AuthStyle,
		apiVersion: cfg.APIVersion,
		limiter:    limiter,
		breaker:    resilience.NewCircuitBreaker("embedding", resilience.DefaultCircuitBreakerConfig()),
	}, nil
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if !e.breaker.Allow() {
		return nil, fmt.Errorf("embedding endpoint circuit open")
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("await rate limit: %w", err)
		}
	}

	reqBody := embeddingRequest{
		Model: e.model,
		Input: texts,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	switch e.authStyle {
	case AuthHeader:
		req.Header.Set("api-key", e.apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.breaker.RecordFailure()
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.breaker.RecordFailure()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	e.breaker.RecordSuccess()

	// Slot by index so out-of-order items land correctly.
	embeddings := make([][]float64, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}

	return embeddings, nil
}

// Model returns the embedding model name.
func (e *HTTPEmbedder) Model() string {
	return e.model
}

// Dimension returns the embedding dimension.
func (e *HTTPEmbedder) Dimension() int {
	return e.dimension
}

// Wire types

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}
