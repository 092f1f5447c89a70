package ingest_test

import (
	"context"
	"errors"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/chunker"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/embeddings"
	"github.com/papercomputeco/vellum/pkg/eventstream"
	"github.com/papercomputeco/vellum/pkg/index"
	"github.com/papercomputeco/vellum/pkg/ingest"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/retrieval"
	testutils "github.com/papercomputeco/vellum/pkg/utils/test"
)

type recordingPublisher struct {
	events []*eventstream.IngestCompletedEvent
	err    error
}

func (r *recordingPublisher) PublishIngest(_ context.Context, e *eventstream.IngestCompletedEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func intPtr(i int) *int { return &i }

var _ = Describe("Coordinator", func() {
	var (
		ctx         context.Context
		embedder    *testutils.MockEmbedder
		driver      *testutils.MockVectorDriver
		store       *index.Store
		window      *chunker.SlidingWindow
		publisher   *recordingPublisher
		coordinator *ingest.Coordinator
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()
		publisher = &recordingPublisher{}

		var err error
		store, err = index.NewStore(driver, index.Config{Collection: "docs", Dimensions: embedder.Dimensions()}, vellumlogger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(store.EnsureCollection(ctx)).To(Succeed())

		window, err = chunker.NewSlidingWindow(200, 50)
		Expect(err).NotTo(HaveOccurred())

		coordinator = ingest.NewCoordinator(window, embedder, store, authority.DefaultPolicy(),
			ingest.Config{EmbedBatchSize: 2}, publisher, vellumlogger.Nop())
	})

	It("stores one point per chunk with defaulted authority", func() {
		report, err := coordinator.Ingest(ctx, []document.Document{
			{Content: "Alice project uses microservices.", Metadata: map[string]any{"source_type": "github"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report).To(Equal(ingest.Report{DocumentsAttempted: 1, ChunksPlanned: 1, ChunksAdded: 1}))
		Expect(report.Partial()).To(BeFalse())

		results, err := store.Search(ctx, embedder.Vector("Alice"), 1, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Payload).To(HaveKeyWithValue("source_authority", 9))
		Expect(results[0].Payload).To(HaveKeyWithValue("source_type", "github"))
		Expect(results[0].Payload).To(HaveKeyWithValue("chunk_index", 0))
		Expect(results[0].Payload).To(HaveKeyWithValue("total_chunks", 1))
	})

	It("is idempotent", func() {
		docs := []document.Document{
			{Content: strings.Repeat("microservices talk over gRPC. ", 30), Metadata: map[string]any{"source_type": "web"}},
			{Content: "A short note.", Metadata: map[string]any{"source_type": "pdf"}},
		}

		first, err := coordinator.Ingest(ctx, docs)
		Expect(err).NotTo(HaveOccurred())
		before, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())

		second, err := coordinator.Ingest(ctx, docs)
		Expect(err).NotTo(HaveOccurred())
		after, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(after).To(Equal(before))
		Expect(second).To(Equal(first))
		Expect(first.ChunksPlanned).To(BeNumerically(">", 2))
	})

	It("embeds in batches of the configured size", func() {
		_, err := coordinator.Ingest(ctx, []document.Document{
			{Content: strings.Repeat("word ", 200), Metadata: map[string]any{"source_type": "web"}},
		})
		Expect(err).NotTo(HaveOccurred())
		for _, b := range embedder.Batches {
			Expect(len(b)).To(BeNumerically("<=", 2))
		}
	})

	It("skips failed embedding batches and reports a partial run", func() {
		embedder.FailOn = "broken"
		report, err := coordinator.Ingest(ctx, []document.Document{
			{Content: "fine", Metadata: map[string]any{"source_type": "web"}},
			{Content: "also fine", Metadata: map[string]any{"source_type": "web"}},
			{Content: "broken", Metadata: map[string]any{"source_type": "web"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.ChunksPlanned).To(Equal(3))
		Expect(report.ChunksAdded).To(Equal(2))
		Expect(report.FailedEmbeddingBatches).To(Equal(1))
		Expect(report.Partial()).To(BeTrue())
	})

	It("counts empty documents as attempted without planning chunks", func() {
		report, err := coordinator.Ingest(ctx, []document.Document{{Content: "   ", Metadata: map[string]any{"source_type": "web"}}})
		Expect(err).NotTo(HaveOccurred())
		Expect(report).To(Equal(ingest.Report{DocumentsAttempted: 1}))
	})

	It("normalizes metadata that JSON cannot carry", func() {
		_, err := coordinator.Ingest(ctx, []document.Document{{
			Content: "odd metadata",
			Metadata: map[string]any{
				"source_type": "web",
				"ratio":       math.NaN(),
				"nested":      map[string]any{"depth": 1},
				"callback":    func() {},
			},
		}})
		Expect(err).NotTo(HaveOccurred())

		results, err := store.Search(ctx, embedder.Vector("odd metadata"), 1, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Payload).To(HaveKeyWithValue("nested.depth", 1))
		Expect(results[0].Payload["ratio"]).To(BeAssignableToTypeOf(""))
		Expect(results[0].Payload["callback"]).To(BeAssignableToTypeOf(""))
		Expect(results[0].Payload).To(HaveKeyWithValue("source_authority", 5))
	})

	It("returns dimension mismatches from the embedder", func() {
		embedder.Embeddings["bad"] = []float32{1, 2}
		_, err := coordinator.Ingest(ctx, []document.Document{{Content: "bad", Metadata: map[string]any{"source_type": "web"}}})
		Expect(errors.Is(err, embeddings.ErrDimensionMismatch)).To(BeTrue())
	})

	It("publishes a completion event and tolerates publish failures", func() {
		publisher.err = errors.New("broker down")
		report, err := coordinator.Ingest(ctx, []document.Document{
			{Content: "Alice project uses microservices.", Metadata: map[string]any{"source_type": "web", "source_url": "https://example.com/alice"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.ChunksAdded).To(Equal(1))

		Expect(publisher.events).To(HaveLen(1))
		event := publisher.events[0]
		Expect(event.Collection).To(Equal("docs"))
		Expect(event.Stats.ChunksAdded).To(Equal(1))
		Expect(event.Sources).To(ConsistOf(eventstream.Source{
			Type: "web", Authority: 5, URL: "https://example.com/alice", Chunks: 1,
		}))
	})

	Describe("with retrieval", func() {
		var engine *retrieval.Engine

		BeforeEach(func() {
			engine = retrieval.NewEngine(embedder, store, retrieval.Config{}, vellumlogger.Nop())
		})

		It("finds the web document at floor 5 but not at floor 9", func() {
			_, err := coordinator.Ingest(ctx, []document.Document{
				{Content: "Alice project uses microservices.", Metadata: map[string]any{"source_type": "web", "source_authority": 5}},
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.Retrieve(ctx, retrieval.Request{Query: "Alice architecture", MinAuthority: intPtr(5), TopK: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Text).To(Equal("Alice project uses microservices."))

			results, err = engine.Retrieve(ctx, retrieval.Request{Query: "Alice architecture", MinAuthority: intPtr(9), TopK: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("returns only the github record above floor 6", func() {
			_, err := coordinator.Ingest(ctx, []document.Document{
				{Content: "Deployment uses Kubernetes manifests.", Metadata: map[string]any{"source_type": "github"}},
				{Content: "A blog post about Kubernetes deployment.", Metadata: map[string]any{"source_type": "web"}},
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.Retrieve(ctx, retrieval.Request{Query: "Kubernetes deployment", MinAuthority: intPtr(6), TopK: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Metadata).To(HaveKeyWithValue("source_type", "github"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("source_authority", 9))
		})
	})
})
