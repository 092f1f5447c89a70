// Package embeddings converts text into fixed dimension vectors.
package embeddings

import (
	"context"
	"fmt"
)

// Embedder provides batched text embedding capabilities. Every vector it
// returns has Dimensions() elements.
type Embedder interface {
	// EmbedBatch converts texts into vectors, one per input and in input order.
	// A failed batch returns an error, never placeholder vectors.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed output dimension of this embedder.
	Dimensions() uint

	// Close releases any resources held by the embedder.
	Close() error
}

// EmbedOne embeds a single text. Reserved for query time; ingestion batches.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbedding, len(vectors))
	}
	return vectors[0], nil
}

// CheckBatch validates a backend response against the request.
func CheckBatch(vectors [][]float32, inputs int, dimensions uint) error {
	if len(vectors) != inputs {
		return fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbedding, inputs, len(vectors))
	}
	for i, v := range vectors {
		if dimensions != 0 && uint(len(v)) != dimensions {
			return fmt.Errorf("%w: embedding %d has %d dimensions, configured %d",
				ErrDimensionMismatch, i, len(v), dimensions)
		}
	}
	return nil
}
