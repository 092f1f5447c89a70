package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/chunker"
	"github.com/papercomputeco/vellum/pkg/eventstream/nop"
	"github.com/papercomputeco/vellum/pkg/index"
	"github.com/papercomputeco/vellum/pkg/ingest"
	"github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/retrieval"
)

// Stack is a fully wired ingestion and retrieval pipeline over the mock
// embedder and vector driver.
type Stack struct {
	Embedder    *MockEmbedder
	Driver      *MockVectorDriver
	Store       *index.Store
	Engine      *retrieval.Engine
	Coordinator *ingest.Coordinator
}

// NewStack builds a Stack with a ready collection named "test_documents".
func NewStack(ctx context.Context) (*Stack, error) {
	s := &Stack{
		Embedder: NewMockEmbedder(),
		Driver:   NewMockVectorDriver(),
	}
	log := logger.Nop()

	store, err := index.NewStore(s.Driver, index.Config{
		Collection: "test_documents",
		Dimensions: s.Embedder.Dimensions(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}
	s.Store = store

	window, err := chunker.NewSlidingWindow(chunker.DefaultSize, chunker.DefaultOverlap)
	if err != nil {
		return nil, err
	}

	s.Engine = retrieval.NewEngine(s.Embedder, store, retrieval.Config{}, log)
	s.Coordinator = ingest.NewCoordinator(window, s.Embedder, store, authority.DefaultPolicy(),
		ingest.Config{}, nop.NewPublisher(), log)
	return s, nil
}
