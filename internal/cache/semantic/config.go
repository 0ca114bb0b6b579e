// Package semantic provides similarity matching over previously indexed
// prompts, enabling cache hits when requests are not identical but carry
// similar meaning.
package semantic

import (
	"errors"
	"time"
)

// Config holds configuration for the similarity matcher.
type Config struct {
	// Embedding configuration
	EmbeddingModel   string `yaml:"embedding_model"`    // e.g. "text-embedding-3-small"
	EmbeddingAPIKey  string `yaml:"embedding_api_key"`  // May be a secret reference (env://, vault://)
	EmbeddingAPIBase string `yaml:"embedding_api_base"` // API base URL (optional)
	EmbeddingAuth    string `yaml:"embedding_auth"`     // "bearer" (default) or "api-key"

	// Vector store configuration
	VectorStore     string `yaml:"vector_store"`     // "qdrant" or "inmem"
	VectorDimension int    `yaml:"vector_dimension"` // default 1536

	// Qdrant configuration
	QdrantAPIBase    string `yaml:"qdrant_api_base"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`

	// Similarity configuration. A lookup scoring exactly at the threshold
	// is a hit.
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // default 0.90

	// Cache behavior
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// Re-ranking configuration
	EnableReranking    bool    `yaml:"enable_reranking"`    // Enable lexical overlap guard
	RerankingThreshold float64 `yaml:"reranking_threshold"` // Minimum Jaccard overlap, default 0.5
}

// DefaultConfig returns sensible defaults for the matcher.
func DefaultConfig() Config {
	return Config{
		EmbeddingModel:      "text-embedding-3-small",
		VectorStore:         "inmem",
		VectorDimension:     1536,
		SimilarityThreshold: 0.90,
		DefaultTTL:          time.Hour,
		QdrantCollection:    "cachemux_semantic",
		EnableReranking:     false,
		RerankingThreshold:  0.5,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return errors.New("similarity_threshold must be between 0 and 1")
	}

	if c.EnableReranking && (c.RerankingThreshold <= 0 || c.RerankingThreshold > 1) {
		return errors.New("reranking_threshold must be between 0 and 1 when reranking is enabled")
	}

	if c.VectorDimension <= 0 {
		return errors.New("vector_dimension must be positive")
	}

	if c.EmbeddingModel == "" {
		return errors.New("embedding_model is required")
	}

	switch c.VectorStore {
	case "qdrant":
		if c.QdrantAPIBase == "" {
			return errors.New("qdrant_api_base is required for qdrant vector store")
		}
		if c.QdrantCollection == "" {
			return errors.New("qdrant_collection is required for qdrant vector store")
		}
	case "inmem", "":
	default:
		return errors.New("unsupported vector_store: must be 'qdrant' or 'inmem'")
	}

	return nil
}

// DistanceThreshold converts the similarity threshold to a distance
// threshold (cosine distance: 0 = identical, 2 = opposite).
func (c *Config) DistanceThreshold() float64 {
	return 1 - c.SimilarityThreshold
}
