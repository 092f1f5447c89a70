// Package inmemory implements pkg/vector's Driver with brute-force cosine
// similarity over points held in process memory.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/vector"
)

type collection struct {
	spec   vector.Collection
	order  []string
	points map[string]vector.Point
}

// Driver keeps collections in memory. Concurrent queries are safe.
type Driver struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewDriver returns an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{collections: map[string]*collection{}}
}

// EnsureCollection creates the named collection if absent.
func (d *Driver) EnsureCollection(_ context.Context, c vector.Collection) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[c.Name]; ok {
		return false, nil
	}
	d.collections[c.Name] = &collection{spec: c, points: map[string]vector.Point{}}
	return true, nil
}

// DeleteCollection drops the named collection.
func (d *Driver) DeleteCollection(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.collections, name)
	return nil
}

// Upsert stores points, overwriting existing IDs in place.
func (d *Driver) Upsert(_ context.Context, name string, points []vector.Point) error {
	for _, p := range points {
		if err := vector.CheckPayload(p.Payload); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", vector.ErrCollectionMissing, name)
	}
	for _, p := range points {
		if c.spec.Dimensions != 0 && uint(len(p.Vector)) != c.spec.Dimensions {
			return fmt.Errorf("point %s has %d dimensions, collection has %d", p.ID, len(p.Vector), c.spec.Dimensions)
		}
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = vector.Point{
			ID:      p.ID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: copyPayload(p.Payload),
		}
	}
	return nil
}

// Query scores every point against vec.
func (d *Driver) Query(_ context.Context, name string, vec []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionMissing, name)
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	results := make([]vector.QueryResult, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		if filter != nil && !authority.Admits(p.Payload, filter.MinAuthority) {
			continue
		}
		results = append(results, vector.QueryResult{
			ID:      p.ID,
			Score:   cosineSimilarity(vec, p.Vector),
			Payload: copyPayload(p.Payload),
		})
	}

	// Stable keeps insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored points.
func (d *Driver) Count(_ context.Context, name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", vector.ErrCollectionMissing, name)
	}
	return len(c.points), nil
}

// SupportsFilter is true; filters are evaluated during the scan.
func (d *Driver) SupportsFilter() bool {
	return true
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func copyPayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

var _ vector.Driver = (*Driver)(nil)
