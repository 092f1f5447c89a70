package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/pkg/chunker"
	"github.com/papercomputeco/vellum/pkg/config"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/pipeline"
	"github.com/papercomputeco/vellum/pkg/retrieval"
	testutils "github.com/papercomputeco/vellum/pkg/utils/test"
)

// ollamaStub answers /api/embed with the mock embedder's bag-of-words vectors.
func ollamaStub(dims uint) *httptest.Server {
	mock := testutils.NewMockEmbedder()
	mock.Dims = dims
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vectors, _ := mock.EmbedBatch(r.Context(), req.Input)
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
}

var _ = Describe("New", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		cfg    *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = ollamaStub(16)
		DeferCleanup(server.Close)

		cfg = config.NewDefaultConfig()
		cfg.VectorStore.Provider = "memory"
		cfg.Embedding.Provider = "ollama"
		cfg.Embedding.Target = server.URL
		cfg.Embedding.Dimensions = 16
		cfg.Index.Collection = "pipeline_test"
	})

	It("wires an ingest and retrieval round trip", func() {
		p, err := pipeline.New(ctx, pipeline.Options{Config: cfg})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		report, err := p.Coordinator.Ingest(ctx, []document.Document{
			{Content: "Alice project uses microservices.", Metadata: map[string]any{"source_type": "web"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.ChunksAdded).To(Equal(1))

		floor := 5
		results, err := p.Retriever.Retrieve(ctx, retrieval.Request{Query: "Alice microservices", MinAuthority: &floor})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))

		floor = 9
		results, err = p.Retriever.Retrieve(ctx, retrieval.Request{Query: "Alice microservices", MinAuthority: &floor})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("applies configured authority tiers", func() {
		cfg.Authority.Tiers["web"] = 8
		p, err := pipeline.New(ctx, pipeline.Options{Config: cfg})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		_, err = p.Coordinator.Ingest(ctx, []document.Document{
			{Content: "Tiered content.", Metadata: map[string]any{"source_type": "web"}},
		})
		Expect(err).NotTo(HaveOccurred())

		floor := 8
		results, err := p.Retriever.Retrieve(ctx, retrieval.Request{Query: "Tiered content", MinAuthority: &floor})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Metadata).To(HaveKeyWithValue("source_authority", BeNumerically("==", 8)))
	})

	It("uses the configured collection and dimensions", func() {
		p, err := pipeline.New(ctx, pipeline.Options{Config: cfg})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		Expect(p.Store.Config().Collection).To(Equal("pipeline_test"))
		Expect(p.Store.Config().Dimensions).To(Equal(uint(16)))
	})

	It("rejects a missing config", func() {
		_, err := pipeline.New(ctx, pipeline.Options{})
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		cfg.VectorStore.Provider = "cassandra"
		_, err := pipeline.New(ctx, pipeline.Options{Config: cfg})
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))

		cfg.VectorStore.Provider = "memory"
		cfg.Events.Provider = "carrier-pigeon"
		_, err = pipeline.New(ctx, pipeline.Options{Config: cfg})
		Expect(err).To(MatchError(ContainSubstring("unsupported event stream provider")))
	})

	It("surfaces invalid chunking settings", func() {
		cfg.Chunking.Size = 100
		cfg.Chunking.Overlap = 100
		_, err := pipeline.New(ctx, pipeline.Options{Config: cfg})
		Expect(err).To(MatchError(chunker.ErrInvalidConfig))
	})
})

var _ = Describe("NewChunker", func() {
	It("returns a sliding window by default", func() {
		c, err := pipeline.NewChunker(config.ChunkingConfig{Strategy: "sliding", Size: 800, Overlap: 200}, false, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&chunker.SlidingWindow{}))
	})

	It("returns a semantic chunker when asked", func() {
		c, err := pipeline.NewChunker(config.ChunkingConfig{Size: 800, Overlap: 200, Provider: "ollama"}, true, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&chunker.Semantic{}))
	})

	It("honors the semantic strategy setting", func() {
		c, err := pipeline.NewChunker(config.ChunkingConfig{Strategy: pipeline.StrategySemantic, Size: 800, Overlap: 200, Provider: "ollama"}, false, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&chunker.Semantic{}))
	})
})

var _ = Describe("VectorTarget", func() {
	It("keeps an explicit target", func() {
		cfg := config.NewDefaultConfig()
		cfg.VectorStore.Target = "/data/v.db"
		Expect(pipeline.VectorTarget(cfg, "/home/x/.vellum")).To(Equal("/data/v.db"))
	})

	It("places the sqlite database in the dot directory", func() {
		cfg := config.NewDefaultConfig()
		cfg.VectorStore.Provider = "sqlite"
		cfg.VectorStore.Target = ""
		Expect(pipeline.VectorTarget(cfg, "/home/x/.vellum")).To(Equal(filepath.Join("/home/x/.vellum", "vectors.db")))
		Expect(pipeline.VectorTarget(cfg, "")).To(Equal("vectors.db"))
	})

	It("leaves other providers untouched", func() {
		cfg := config.NewDefaultConfig()
		cfg.VectorStore.Provider = "qdrant"
		cfg.VectorStore.Target = ""
		Expect(pipeline.VectorTarget(cfg, "/tmp")).To(BeEmpty())
	})
})
