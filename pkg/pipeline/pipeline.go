// Package pipeline assembles the configured embedder, vector store, chunker
// and event publisher into a ready ingestion and retrieval stack.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/papercomputeco/vellum/pkg/chunker"
	"github.com/papercomputeco/vellum/pkg/completion"
	"github.com/papercomputeco/vellum/pkg/config"
	"github.com/papercomputeco/vellum/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/vellum/pkg/embeddings/utils"
	"github.com/papercomputeco/vellum/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/vellum/pkg/eventstream/utils"
	"github.com/papercomputeco/vellum/pkg/index"
	"github.com/papercomputeco/vellum/pkg/ingest"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/retrieval"
	vectorutils "github.com/papercomputeco/vellum/pkg/vector/utils"
)

// StrategySemantic selects LLM-driven chunking.
const StrategySemantic = "semantic"

// sqliteFile is created inside the .vellum directory when the sqlite store
// has no explicit target.
const sqliteFile = "vectors.db"

// Options configures New.
type Options struct {
	Config *config.Config

	// Dir is the resolved .vellum directory. It anchors the default sqlite path.
	Dir string

	// Semantic forces semantic chunking regardless of Config.Chunking.Strategy.
	Semantic bool

	Logger *slog.Logger
}

// Pipeline owns every component built by New. Close releases them.
type Pipeline struct {
	Store       *index.Store
	Retriever   *retrieval.Engine
	Coordinator *ingest.Coordinator

	embedder  embeddings.Embedder
	publisher eventstream.Publisher
}

// New builds the stack and ensures the collection exists.
func New(ctx context.Context, o Options) (*Pipeline, error) {
	if o.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := o.Config
	log := o.Logger
	if log == nil {
		log = vellumlogger.Nop()
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		APIKeyEnv:    cfg.Embedding.APIKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	p := &Pipeline{embedder: embedder}

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       VectorTarget(cfg, o.Dir),
		APIKey:       cfg.VectorStore.APIKey,
		Logger:       log,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	store, err := index.NewStore(driver, index.Config{
		Collection: cfg.Index.Collection,
		Dimensions: embedder.Dimensions(),
		BatchSize:  cfg.Index.BatchSize,
	}, log)
	if err != nil {
		_ = driver.Close()
		_ = p.Close()
		return nil, err
	}
	p.Store = store

	if err := store.EnsureCollection(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}

	c, err := NewChunker(cfg.Chunking, o.Semantic, log)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       log,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	p.publisher = publisher

	p.Retriever = retrieval.NewEngine(embedder, store, retrieval.Config{
		Oversample:  cfg.Retrieval.Oversample,
		DefaultTopK: cfg.Retrieval.TopK,
	}, log)

	p.Coordinator = ingest.NewCoordinator(c, embedder, store, cfg.Authority.Policy(),
		ingest.Config{EmbedBatchSize: cfg.Embedding.BatchSize}, publisher, log)

	log.Debug("pipeline ready",
		"vector_store", cfg.VectorStore.Provider,
		"embedding", cfg.Embedding.Provider,
		"model", cfg.Embedding.Model,
		"collection", store.Config().Collection,
	)
	return p, nil
}

// NewChunker returns the sliding window, or the semantic chunker wrapping it
// when semantic is set or the strategy asks for it.
func NewChunker(cfg config.ChunkingConfig, semantic bool, logger *slog.Logger) (chunker.Chunker, error) {
	window, err := chunker.NewSlidingWindow(cfg.Size, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	if !semantic && cfg.Strategy != StrategySemantic {
		return window, nil
	}

	call, err := completion.NewCaller(completion.Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion caller: %w", err)
	}
	return chunker.NewSemantic(call, window, logger), nil
}

// VectorTarget resolves the store address. An empty sqlite target lives in dir.
func VectorTarget(cfg *config.Config, dir string) string {
	target := cfg.VectorStore.Target
	if target != "" {
		return target
	}
	switch cfg.VectorStore.Provider {
	case "sqlite", "sqlitevec":
		if dir == "" {
			return sqliteFile
		}
		return filepath.Join(dir, sqliteFile)
	}
	return target
}

// Close releases the store, embedder and publisher.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Store != nil {
		errs = append(errs, p.Store.Close())
	}
	if p.embedder != nil {
		errs = append(errs, p.embedder.Close())
	}
	if p.publisher != nil {
		errs = append(errs, p.publisher.Close())
	}
	return errors.Join(errs...)
}
