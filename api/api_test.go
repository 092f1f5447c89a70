package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/papercomputeco/vellum/api/search"
	"github.com/papercomputeco/vellum/pkg/document"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/retrieval"
	testutils "github.com/papercomputeco/vellum/pkg/utils/test"
)

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, &out)).To(Succeed(), string(body))
	return out
}

var _ = Describe("Server", func() {
	var (
		ctx    context.Context
		stack  *testutils.Stack
		server *Server
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		stack, err = testutils.NewStack(ctx)
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			ListenAddr: ":0",
			Collection: stack.Store,
			Retriever:  stack.Engine,
			Ingester:   stack.Coordinator,
		}, vellumlogger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	ingest := func(body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	get := func(path string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("answers ping", func() {
		resp := get("/ping")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(decode[string](resp)).To(Equal("pong"))
	})

	Describe("POST /v1/ingest", func() {
		It("ingests documents and reports the run", func() {
			resp := ingest(`{"documents":[
				{"content":"Deployment uses Kubernetes.","metadata":{"source_type":"github"}},
				{"content":"A blog about deployment.","metadata":{"source_type":"web","source_authority":5}}
			]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[IngestResponse](resp)
			Expect(out.DocumentsAttempted).To(Equal(2))
			Expect(out.ChunksAdded).To(Equal(2))
			Expect(out.Partial).To(BeFalse())
			Expect(out.Collection).To(Equal("test_documents"))

			count, err := stack.Store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("flags partial runs", func() {
			stack.Embedder.FailOn = "Broken text."
			resp := ingest(`{"documents":[{"content":"Broken text.","metadata":{"source_type":"pdf"}}]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[IngestResponse](resp)
			Expect(out.Partial).To(BeTrue())
			Expect(out.FailedEmbeddingBatches).To(Equal(1))
		})

		It("rejects an empty document list", func() {
			resp := ingest(`{"documents":[]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects malformed JSON", func() {
			resp := ingest(`{"documents":`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /v1/search", func() {
		BeforeEach(func() {
			_, err := stack.Coordinator.Ingest(ctx, []document.Document{
				{Content: "Alice deployment uses Kubernetes.", Metadata: map[string]any{"source_type": "github", "title": "README"}},
				{Content: "Alice deployment runs on bare metal.", Metadata: map[string]any{"source_type": "web"}},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns ranked results", func() {
			resp := get("/v1/search?query=Alice+deployment&top_k=5")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.SearchOutput](resp)
			Expect(out.Query).To(Equal("Alice deployment"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].Score).To(BeNumerically(">=", out.Results[1].Score))
		})

		It("filters by min_authority", func() {
			resp := get("/v1/search?query=Alice+deployment&min_authority=6")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.SearchOutput](resp)
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].SourceType).To(Equal("github"))
			Expect(out.Results[0].Title).To(Equal("README"))
			Expect(*out.MinAuthority).To(Equal(6))
		})

		It("caps an oversized top_k", func() {
			stack.Driver.NoFilter = true
			resp := get(fmt.Sprintf("/v1/search?query=Alice+deployment&min_authority=6&top_k=%d", math.MaxInt))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.SearchOutput](resp)
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].SourceType).To(Equal("github"))
			last := stack.Driver.Queries[len(stack.Driver.Queries)-1]
			Expect(last.TopK).To(Equal(apisearch.MaxTopK * retrieval.DefaultOversample))
		})

		It("returns an empty list when nothing clears the floor", func() {
			out := decode[apisearch.SearchOutput](get("/v1/search?query=Alice&min_authority=10"))
			Expect(out.Count).To(Equal(0))
			Expect(out.Results).To(BeEmpty())
		})

		DescribeTable("rejects bad parameters",
			func(path string) {
				resp := get(path)
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				Expect(decode[ErrorResponse](resp).Error).NotTo(BeEmpty())
			},
			Entry("missing query", "/v1/search"),
			Entry("zero top_k", "/v1/search?query=x&top_k=0"),
			Entry("text top_k", "/v1/search?query=x&top_k=many"),
			Entry("text min_authority", "/v1/search?query=x&min_authority=high"),
		)
	})

	Describe("/v1/collection", func() {
		It("describes and clears the collection", func() {
			_, err := stack.Coordinator.Ingest(ctx, []document.Document{
				{Content: "Something worth keeping.", Metadata: map[string]any{"source_type": "pdf"}},
			})
			Expect(err).NotTo(HaveOccurred())

			out := decode[CollectionResponse](get("/v1/collection"))
			Expect(out).To(Equal(CollectionResponse{Name: "test_documents", Dimensions: 8, Count: 1}))

			req, err := http.NewRequest(http.MethodDelete, "/v1/collection", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out = decode[CollectionResponse](get("/v1/collection"))
			Expect(out.Count).To(Equal(0))

			search := decode[apisearch.SearchOutput](get("/v1/search?query=Something"))
			Expect(search.Count).To(Equal(0))
		})
	})

	Context("when components are not configured", func() {
		BeforeEach(func() {
			var err error
			server, err = NewServer(Config{ListenAddr: ":0"}, vellumlogger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("returns 503",
			func(method, path string) {
				req, err := http.NewRequest(method, path, strings.NewReader(`{"documents":[{"content":"x"}]}`))
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", "application/json")
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			},
			Entry("search", http.MethodGet, "/v1/search?query=test"),
			Entry("ingest", http.MethodPost, "/v1/ingest"),
			Entry("collection", http.MethodGet, "/v1/collection"),
			Entry("clear", http.MethodDelete, "/v1/collection"),
		)
	})

	It("mounts the MCP endpoint", func() {
		req, err := http.NewRequest(http.MethodPost, "/mcp", strings.NewReader(
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"v0"}}}`,
		))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	})
})
