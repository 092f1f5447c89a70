package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/vellum/pkg/vector"
	"github.com/papercomputeco/vellum/pkg/vector/inmemory"
)

// ErrInjected is returned by MockVectorDriver when a failure is configured.
var ErrInjected = errors.New("injected vector driver failure")

// QueryCall records the arguments of one Query call.
type QueryCall struct {
	TopK   int
	Filter *vector.Filter
}

// MockVectorDriver is an in-memory driver with failure injection and call
// recording.
type MockVectorDriver struct {
	*inmemory.Driver

	// NoFilter makes the driver report no filter support and ignore filters.
	NoFilter bool

	// FailUpsertCall fails the Nth upsert call (1-based) with ErrInjected.
	FailUpsertCall int

	// UpsertErr, when set, is returned by every upsert whose batch contains
	// a point accepted by the predicate.
	UpsertErr     error
	UpsertErrWhen func(vector.Point) bool

	// QueryErr is returned by Query when set.
	QueryErr error

	UpsertCalls int
	UpsertSizes []int
	Queries     []QueryCall
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{Driver: inmemory.NewDriver()}
}

func (m *MockVectorDriver) Upsert(ctx context.Context, name string, points []vector.Point) error {
	m.UpsertCalls++
	m.UpsertSizes = append(m.UpsertSizes, len(points))

	if m.FailUpsertCall == m.UpsertCalls {
		return ErrInjected
	}
	if m.UpsertErr != nil && m.UpsertErrWhen != nil {
		for _, p := range points {
			if m.UpsertErrWhen(p) {
				return m.UpsertErr
			}
		}
	}
	return m.Driver.Upsert(ctx, name, points)
}

func (m *MockVectorDriver) Query(ctx context.Context, name string, vec []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	m.Queries = append(m.Queries, QueryCall{TopK: topK, Filter: filter})
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if m.NoFilter {
		filter = nil
	}
	return m.Driver.Query(ctx, name, vec, topK, filter)
}

func (m *MockVectorDriver) SupportsFilter() bool {
	return !m.NoFilter
}

var _ vector.Driver = (*MockVectorDriver)(nil)
