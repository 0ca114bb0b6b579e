package semantic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "inmem", cfg.VectorStore)
	assert.Equal(t, 1536, cfg.VectorDimension)
	assert.Equal(t, 0.90, cfg.SimilarityThreshold)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
	assert.Equal(t, "cachemux_semantic", cfg.QdrantCollection)
	assert.False(t, cfg.EnableReranking)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid qdrant config",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorStore:         "qdrant",
				VectorDimension:     1536,
				SimilarityThreshold: 0.95,
				QdrantAPIBase:       "http://localhost:6333",
				QdrantCollection:    "test_collection",
			},
		},
		{
			name: "valid inmem config",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorStore:         "inmem",
				VectorDimension:     3,
				SimilarityThreshold: 0.9,
			},
		},
		{
			name: "threshold of exactly 1 is allowed",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorDimension:     3,
				SimilarityThreshold: 1.0,
			},
		},
		{
			name: "zero threshold",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorDimension:     3,
				SimilarityThreshold: 0,
			},
			wantErr: "similarity_threshold",
		},
		{
			name: "threshold above 1",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorDimension:     3,
				SimilarityThreshold: 1.5,
			},
			wantErr: "similarity_threshold",
		},
		{
			name: "missing embedding model",
			config: Config{
				VectorDimension:     3,
				SimilarityThreshold: 0.9,
			},
			wantErr: "embedding_model",
		},
		{
			name: "zero dimension",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				SimilarityThreshold: 0.9,
			},
			wantErr: "vector_dimension",
		},
		{
			name: "qdrant without api base",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorStore:         "qdrant",
				VectorDimension:     1536,
				SimilarityThreshold: 0.9,
				QdrantCollection:    "c",
			},
			wantErr: "qdrant_api_base",
		},
		{
			name: "unknown vector store",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorStore:         "pinecone",
				VectorDimension:     1536,
				SimilarityThreshold: 0.9,
			},
			wantErr: "unsupported vector_store",
		},
		{
			name: "reranking enabled with bad threshold",
			config: Config{
				EmbeddingModel:      "text-embedding-3-small",
				VectorDimension:     3,
				SimilarityThreshold: 0.9,
				EnableReranking:     true,
				RerankingThreshold:  0,
			},
			wantErr: "reranking_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDistanceThreshold(t *testing.T) {
	cfg := Config{SimilarityThreshold: 0.9}
	assert.InDelta(t, 0.1, cfg.DistanceThreshold(), 1e-9)
}
