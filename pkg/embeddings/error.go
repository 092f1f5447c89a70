package embeddings

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch is returned when a backend produces vectors whose
	// length differs from the configured dimensions. It is a configuration
	// error and is never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
