// Package vector provides interfaces and implementations for vector storage
// of embedded chunks.
package vector

import "context"

// Metric is the similarity function a collection is created with.
type Metric string

// MetricCosine is the only metric collections are created with.
const MetricCosine Metric = "cosine"

// Collection describes a named set of points sharing one vector dimension.
type Collection struct {
	Name       string
	Dimensions uint
	Metric     Metric
}

// Point is a stored chunk: its deterministic ID, embedding and payload.
type Point struct {
	// ID is derived with PointID, so re-ingesting identical input overwrites it.
	ID string

	// Vector is the chunk embedding.
	Vector []float32

	// Payload carries the chunk text, its position and normalized metadata.
	Payload map[string]any
}

// Filter narrows a query by payload values.
type Filter struct {
	// MinAuthority excludes points whose source_authority is below it.
	MinAuthority int
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	ID string

	// Score represents the similarity score (higher = more similar).
	Score float32

	Payload map[string]any
}

// Driver handles storage and retrieval of points in named collections.
type Driver interface {
	// EnsureCollection creates the collection if it does not exist and reports
	// whether it did so.
	EnsureCollection(ctx context.Context, c Collection) (bool, error)

	// DeleteCollection drops the collection and all of its points. Deleting a
	// missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Upsert stores points. A point with an existing ID is overwritten.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query finds the topK points most similar to vec, in descending score
	// order with ties broken by insertion order. Drivers that do not support
	// filters ignore filter.
	Query(ctx context.Context, collection string, vec []float32, topK int, filter *Filter) ([]QueryResult, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// SupportsFilter reports whether Query applies Filter natively.
	SupportsFilter() bool

	// Close releases any resources held by the driver.
	Close() error
}
