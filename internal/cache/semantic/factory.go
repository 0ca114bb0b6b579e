package semantic

import (
	"context"
	"fmt"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic/embedding"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic/vector"
)

// SecretResolver resolves secret references (env://, vault://) to values.
// Plain strings pass through unchanged.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// NewFromConfig creates a Matcher from configuration. Secret references
// in the API key fields are resolved through resolver when one is given.
func NewFromConfig(ctx context.Context, cfg Config, resolver SecretResolver) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	apiKey := cfg.EmbeddingAPIKey
	if resolver != nil && apiKey != "" {
		resolved, err := resolver.Resolve(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("resolve embedding api key: %w", err)
		}
		apiKey = resolved
	}

	embedder, err := embedding.New(embedding.Config{
		APIKey:    apiKey,
		APIBase:   cfg.EmbeddingAPIBase,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.VectorDimension,
		AuthStyle: embedding.AuthStyle(cfg.EmbeddingAuth),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	store, err := createVectorStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}

	return NewMatcher(embedder, store, cfg)
}

// createVectorStore creates a vector store based on configuration.
func createVectorStore(ctx context.Context, cfg Config) (vector.Store, error) {
	switch cfg.VectorStore {
	case "qdrant":
		store, err := vector.NewQdrantStore(vector.QdrantConfig{
			APIBase:    cfg.QdrantAPIBase,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dimension:  cfg.VectorDimension,
		})
		if err != nil {
			return nil, err
		}

		if err := store.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("ensure collection: %w", err)
		}

		return store, nil

	case "inmem", "":
		return vector.NewInMemStore(), nil

	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.VectorStore)
	}
}
