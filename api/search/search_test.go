package search_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/api/search"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/retrieval"
)

type stubRetriever struct {
	results []retrieval.Result
	err     error
	last    retrieval.Request
}

func (s *stubRetriever) Retrieve(_ context.Context, req retrieval.Request) ([]retrieval.Result, error) {
	s.last = req
	return s.results, s.err
}

var _ = Describe("Search", func() {
	It("forwards the request and reshapes hits", func() {
		floor := 5
		r := &stubRetriever{results: []retrieval.Result{{
			Text:  "Alice project uses microservices.",
			Score: 0.9,
			Metadata: map[string]any{
				"source_type":      "web",
				"source_authority": 5,
				"source_url":       "https://example.com/alice",
			},
		}}}

		out, err := search.Search(context.Background(), r, search.SearchInput{
			Query: "Alice", TopK: 3, MinAuthority: &floor,
		}, vellumlogger.Nop())
		Expect(err).NotTo(HaveOccurred())

		Expect(r.last.Query).To(Equal("Alice"))
		Expect(r.last.TopK).To(Equal(3))
		Expect(*r.last.MinAuthority).To(Equal(5))

		Expect(out.Count).To(Equal(1))
		Expect(*out.MinAuthority).To(Equal(5))
		res := out.Results[0]
		Expect(res.Title).To(Equal("https://example.com/alice"))
		Expect(res.URL).To(Equal("https://example.com/alice"))
		Expect(res.SourceType).To(Equal("web"))
		Expect(res.SourceAuthority).To(Equal(5))
		Expect(res.Text).To(Equal("Alice project uses microservices."))
	})

	DescribeTable("caps top_k",
		func(requested, forwarded int) {
			r := &stubRetriever{}
			_, err := search.Search(context.Background(), r, search.SearchInput{Query: "x", TopK: requested}, vellumlogger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(r.last.TopK).To(Equal(forwarded))
		},
		Entry("leaves zero for the engine default", 0, 0),
		Entry("passes values under the cap", 7, 7),
		Entry("passes the cap itself", search.MaxTopK, search.MaxTopK),
		Entry("clamps larger values", search.MaxTopK+1, search.MaxTopK),
		Entry("clamps the largest int", math.MaxInt, search.MaxTopK),
	)

	It("returns an empty list rather than nil", func() {
		out, err := search.Search(context.Background(), &stubRetriever{}, search.SearchInput{Query: "x"}, vellumlogger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Results).NotTo(BeNil())
		Expect(out.Count).To(Equal(0))
	})

	It("wraps retriever errors", func() {
		boom := errors.New("dimension mismatch")
		_, err := search.Search(context.Background(), &stubRetriever{err: boom}, search.SearchInput{Query: "x"}, vellumlogger.Nop())
		Expect(err).To(MatchError(boom))
	})
})

var _ = DescribeTable("Title and URL",
	func(md map[string]any, title, url string) {
		Expect(search.Title(md)).To(Equal(title))
		Expect(search.URL(md)).To(Equal(url))
	},
	Entry("title and url", map[string]any{"title": "Guide", "source_url": "https://x"}, "Guide", "https://x"),
	Entry("url only", map[string]any{"source_url": "https://x"}, "https://x", "https://x"),
	Entry("empty title", map[string]any{"title": "", "source_path": "a.md"}, search.UnknownTitle, search.LocalFile),
	Entry("nothing", map[string]any{}, search.UnknownTitle, search.LocalFile),
	Entry("nil metadata", nil, search.UnknownTitle, search.LocalFile),
)
