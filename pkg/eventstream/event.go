package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeIngestCompleted is emitted after an ingestion run finishes.
	EventTypeIngestCompleted = "vellum.ingest.completed"
)

// IngestCompletedEvent is a transport-neutral event payload for a finished
// ingestion run.
type IngestCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Collection    string      `json:"collection"`
	Stats         IngestStats `json:"stats"`
	Sources       []Source    `json:"sources,omitempty"`
}

// IngestStats mirrors the ingestion report.
type IngestStats struct {
	DocumentsAttempted     int   `json:"documents_attempted"`
	ChunksPlanned          int   `json:"chunks_planned"`
	ChunksAdded            int   `json:"chunks_added"`
	FailedEmbeddingBatches int   `json:"failed_embedding_batches"`
	Partial                bool  `json:"partial"`
	DurationMs             int64 `json:"duration_ms"`
}

// Source identifies one ingested document.
type Source struct {
	Type      string `json:"source_type"`
	Authority int    `json:"source_authority"`
	URL       string `json:"source_url,omitempty"`
	Path      string `json:"source_path,omitempty"`
	Chunks    int    `json:"chunks"`
}

// NewIngestCompletedEvent stamps a new event with an ID and emission time.
func NewIngestCompletedEvent(collection string, stats IngestStats, sources []Source) *IngestCompletedEvent {
	return &IngestCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeIngestCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Collection:    collection,
		Stats:         stats,
		Sources:       sources,
	}
}
