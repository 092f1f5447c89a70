// Package index owns the lifecycle of the vector collection: creation,
// batched upserts, similarity search and clearing.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/vellum/pkg/vector"
)

const (
	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "research_documents"

	// DefaultBatchSize is the number of points sent per upsert call.
	DefaultBatchSize = 50
)

// Config describes the collection a Store manages.
type Config struct {
	Collection string
	Dimensions uint
	BatchSize  int
}

// Store is the single owner of a collection's state.
type Store struct {
	driver vector.Driver
	config Config
	logger *slog.Logger
}

// NewStore wraps a driver. Zero config values take defaults; Dimensions
// must be set.
func NewStore(driver vector.Driver, cfg Config, logger *slog.Logger) (*Store, error) {
	if driver == nil {
		return nil, errors.New("vector driver is required")
	}
	if cfg.Dimensions == 0 {
		return nil, fmt.Errorf("%w: dimensions must be configured", ErrDimensionMismatch)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Store{
		driver: driver,
		config: cfg,
		logger: logger.With("collection", cfg.Collection),
	}, nil
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) collection() vector.Collection {
	return vector.Collection{
		Name:       s.config.Collection,
		Dimensions: s.config.Dimensions,
		Metric:     vector.MetricCosine,
	}
}

// EnsureCollection creates the collection if it is absent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	created, err := s.driver.EnsureCollection(ctx, s.collection())
	if err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	if created {
		s.logger.Info("created collection", "dimensions", s.config.Dimensions)
		return nil
	}

	count, err := s.driver.Count(ctx, s.config.Collection)
	if err != nil {
		s.logger.Warn("could not count existing collection", "error", err)
		return nil
	}
	s.logger.Info("using existing collection", "points", count)
	return nil
}

func (s *Store) checkDimensions(v []float32) error {
	if uint(len(v)) != s.config.Dimensions {
		return fmt.Errorf("%w: got %d, collection %s has %d",
			ErrDimensionMismatch, len(v), s.config.Collection, s.config.Dimensions)
	}
	return nil
}

// Upsert writes points in sequential batches and returns how many were
// stored. Dimension mismatches abort before anything is written; any other
// batch failure is logged and the batch skipped.
func (s *Store) Upsert(ctx context.Context, points []vector.Point) (int, error) {
	for _, p := range points {
		if err := s.checkDimensions(p.Vector); err != nil {
			return 0, fmt.Errorf("point %s: %w", p.ID, err)
		}
	}

	stored := 0
	for start := 0; start < len(points); start += s.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		end := min(start+s.config.BatchSize, len(points))
		batch := points[start:end]

		err := s.driver.Upsert(ctx, s.config.Collection, batch)
		if err == nil {
			stored += len(batch)
			continue
		}

		if errors.Is(err, vector.ErrRecursivePayload) {
			stored += s.retryClean(ctx, batch)
			continue
		}

		s.logger.Error("upsert batch failed",
			"batch_start", start,
			"batch_size", len(batch),
			"error", err,
		)
	}

	s.logger.Debug("upserted points", "stored", stored, "total", len(points))
	return stored, nil
}

// retryClean drops points whose payloads cannot be encoded and retries the
// rest of the batch once.
func (s *Store) retryClean(ctx context.Context, batch []vector.Point) int {
	clean := make([]vector.Point, 0, len(batch))
	for _, p := range batch {
		if err := vector.CheckPayload(p.Payload); err != nil {
			s.logger.Error("skipping point with recursive payload",
				"id", p.ID,
				"payload_keys", vector.Keys(p.Payload),
			)
			continue
		}
		clean = append(clean, p)
	}

	if len(clean) == 0 {
		return 0
	}
	if err := s.driver.Upsert(ctx, s.config.Collection, clean); err != nil {
		s.logger.Error("upsert retry failed",
			"batch_size", len(clean),
			"error", err,
		)
		return 0
	}
	return len(clean)
}

// Search returns at most topK results in descending score order.
func (s *Store) Search(ctx context.Context, vec []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	if err := s.checkDimensions(vec); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	results, err := s.driver.Query(ctx, s.config.Collection, vec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SupportsFilter reports whether Search applies filters natively.
func (s *Store) SupportsFilter() bool {
	return s.driver.SupportsFilter()
}

// Clear deletes the collection and recreates it empty with the same
// configuration.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.driver.DeleteCollection(ctx, s.config.Collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	if _, err := s.driver.EnsureCollection(ctx, s.collection()); err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	s.logger.Info("cleared collection")
	return nil
}

// Count returns the number of stored points.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.driver.Count(ctx, s.config.Collection)
	if err != nil {
		return 0, fmt.Errorf("counting collection: %w", err)
	}
	return n, nil
}

// Close releases the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}
