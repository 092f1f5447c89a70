package config

import (
	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/chunker"
	"github.com/papercomputeco/vellum/pkg/eventstream/kafka"
	"github.com/papercomputeco/vellum/pkg/index"
	"github.com/papercomputeco/vellum/pkg/ingest"
	"github.com/papercomputeco/vellum/pkg/retrieval"
)

const (
	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultChunkingStrategy = "sliding"

	defaultEventsProvider = "none"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	policy := authority.DefaultPolicy()
	return &Config{
		Version: CurrentV,
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			BatchSize:  ingest.DefaultEmbedBatchSize,
		},
		Chunking: ChunkingConfig{
			Strategy: defaultChunkingStrategy,
			Size:     chunker.DefaultSize,
			Overlap:  chunker.DefaultOverlap,
		},
		Index: IndexConfig{
			Collection: index.DefaultCollection,
			BatchSize:  index.DefaultBatchSize,
		},
		Retrieval: RetrievalConfig{
			TopK:       retrieval.DefaultTopK,
			Oversample: retrieval.DefaultOversample,
		},
		Authority: AuthorityConfig{
			Default: policy.Default,
			Tiers:   policy.Tiers,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    kafka.DefaultTopic,
		},
	}
}
