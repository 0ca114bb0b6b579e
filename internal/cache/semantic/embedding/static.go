package embedding

import (
	"context"
	"sync"
)

// StaticEmbedder returns pre-registered vectors for known texts and a
// zero vector otherwise. It exists for tests and offline development
// where embedding calls must be deterministic.
type StaticEmbedder struct {
	mu        sync.RWMutex
	vectors   map[string][]float64
	dimension int
}

// NewStaticEmbedder creates a StaticEmbedder of the given dimension.
func NewStaticEmbedder(dimension int) *StaticEmbedder {
	if dimension <= 0 {
		dimension = 4
	}
	return &StaticEmbedder{
		vectors:   make(map[string][]float64),
		dimension: dimension,
	}
}

// Register associates a text with a fixed vector.
func (e *StaticEmbedder) Register(text string, vector []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vector
}

// Embed returns the registered vector for text, or a zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if v, ok := e.vectors[text]; ok {
		cp := make([]float64, len(v))
		copy(cp, v)
		return cp, nil
	}
	return make([]float64, e.dimension), nil
}

// EmbedBatch returns vectors for each text.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Model returns a fixed model name.
func (e *StaticEmbedder) Model() string {
	return "static"
}

// Dimension returns the embedding dimension.
func (e *StaticEmbedder) Dimension() int {
	return e.dimension
}
