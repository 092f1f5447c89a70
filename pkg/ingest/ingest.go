// Package ingest turns documents into stored points: authority defaulting,
// metadata normalization, chunking, batched embedding and upsert.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/chunker"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/embeddings"
	"github.com/papercomputeco/vellum/pkg/eventstream"
	"github.com/papercomputeco/vellum/pkg/index"
	"github.com/papercomputeco/vellum/pkg/metadata"
	"github.com/papercomputeco/vellum/pkg/vector"
)

// DefaultEmbedBatchSize is the number of chunk texts embedded per call.
const DefaultEmbedBatchSize = 32

// Indexer is the write side of index.Store.
type Indexer interface {
	Upsert(ctx context.Context, points []vector.Point) (int, error)
	Config() index.Config
}

// Config tunes a Coordinator.
type Config struct {
	EmbedBatchSize int
}

// Report summarizes one ingestion run.
type Report struct {
	DocumentsAttempted     int `json:"documents_attempted"`
	ChunksPlanned          int `json:"chunks_planned"`
	ChunksAdded            int `json:"chunks_added"`
	FailedEmbeddingBatches int `json:"failed_embedding_batches"`
}

// Partial reports whether some planned chunks were not stored.
func (r Report) Partial() bool {
	return r.ChunksAdded < r.ChunksPlanned
}

// Coordinator runs the ingestion pipeline. It is single-writer: callers must
// not run two ingestions against the same collection concurrently.
type Coordinator struct {
	chunker   chunker.Chunker
	embedder  embeddings.Embedder
	indexer   Indexer
	policy    authority.Policy
	config    Config
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// NewCoordinator wires the pipeline stages together.
func NewCoordinator(
	c chunker.Chunker,
	embedder embeddings.Embedder,
	indexer Indexer,
	policy authority.Policy,
	cfg Config,
	publisher eventstream.Publisher,
	logger *slog.Logger,
) *Coordinator {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}
	return &Coordinator{
		chunker:   c,
		embedder:  embedder,
		indexer:   indexer,
		policy:    policy,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
	}
}

type pending struct {
	id      string
	text    string
	payload map[string]any
}

// Ingest processes docs and reports how many chunks were stored. Failures of
// single documents or batches are logged and counted; only configuration
// errors and cancellation are returned.
func (c *Coordinator) Ingest(ctx context.Context, docs []document.Document) (Report, error) {
	started := time.Now()
	report := Report{DocumentsAttempted: len(docs)}

	var (
		queue   []pending
		sources []eventstream.Source
	)
	for i, doc := range docs {
		md := metadata.Normalize(c.policy.Apply(doc.Metadata))

		texts, err := c.chunker.Chunk(ctx, doc.Content)
		if err != nil {
			if errors.Is(err, chunker.ErrInvalidConfig) {
				return report, err
			}
			c.logger.Error("chunking failed, skipping document", "document", i, "error", err)
			continue
		}

		chunks := document.Chunks(texts)
		for _, ch := range chunks {
			queue = append(queue, pending{
				id:      vector.PointID(doc.Content, ch.Index, ch.Text),
				text:    ch.Text,
				payload: vector.NewPayload(md, ch),
			})
		}
		sources = append(sources, source(md, len(chunks)))
	}
	report.ChunksPlanned = len(queue)

	points := make([]vector.Point, 0, len(queue))
	for start := 0; start < len(queue); start += c.config.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch := queue[start:min(start+c.config.EmbedBatchSize, len(queue))]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}

		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			err = embeddings.CheckBatch(vectors, len(batch), c.embedder.Dimensions())
		}
		if err != nil {
			if errors.Is(err, embeddings.ErrDimensionMismatch) {
				return report, err
			}
			report.FailedEmbeddingBatches++
			c.logger.Error("embedding batch failed, skipping its chunks",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			continue
		}

		for i, p := range batch {
			points = append(points, vector.Point{ID: p.id, Vector: vectors[i], Payload: p.payload})
		}
	}

	added, err := c.indexer.Upsert(ctx, points)
	report.ChunksAdded = added
	if err != nil {
		return report, err
	}

	c.logger.Info("ingestion finished",
		"documents", report.DocumentsAttempted,
		"chunks_planned", report.ChunksPlanned,
		"chunks_added", report.ChunksAdded,
		"failed_embedding_batches", report.FailedEmbeddingBatches,
		"partial", report.Partial(),
	)

	c.publish(ctx, report, sources, time.Since(started))
	return report, nil
}

func (c *Coordinator) publish(ctx context.Context, report Report, sources []eventstream.Source, elapsed time.Duration) {
	if c.publisher == nil {
		return
	}

	event := eventstream.NewIngestCompletedEvent(c.indexer.Config().Collection, eventstream.IngestStats{
		DocumentsAttempted:     report.DocumentsAttempted,
		ChunksPlanned:          report.ChunksPlanned,
		ChunksAdded:            report.ChunksAdded,
		FailedEmbeddingBatches: report.FailedEmbeddingBatches,
		Partial:                report.Partial(),
		DurationMs:             elapsed.Milliseconds(),
	}, sources)

	if err := c.publisher.PublishIngest(ctx, event); err != nil {
		c.logger.Warn("failed to publish ingest event", "event_id", event.EventID, "error", err)
	}
}

func source(md map[string]any, chunks int) eventstream.Source {
	tier, _ := authority.Of(md)
	s := eventstream.Source{Authority: tier, Chunks: chunks}
	s.Type, _ = md[document.KeySourceType].(string)
	s.URL, _ = md[document.KeySourceURL].(string)
	s.Path, _ = md[document.KeySourcePath].(string)
	return s
}
