package qdrant

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/vector"
)

var _ = Describe("parseURL", func() {
	It("defaults to plaintext on the gRPC port", func() {
		host, port, tls, err := parseURL("localhost")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("localhost"))
		Expect(port).To(Equal(DefaultPort))
		Expect(tls).To(BeFalse())
	})

	It("enables TLS for https and honors the port", func() {
		host, port, tls, err := parseURL("https://cluster.example.io:7334")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("cluster.example.io"))
		Expect(port).To(Equal(7334))
		Expect(tls).To(BeTrue())
	})

	It("rejects a non-numeric port", func() {
		_, _, _, err := parseURL("http://localhost:abc")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("buildFilter", func() {
	It("returns nil without a filter or with the lowest floor", func() {
		Expect(buildFilter(nil)).To(BeNil())
		Expect(buildFilter(&vector.Filter{MinAuthority: authority.Lowest})).To(BeNil())
	})

	It("builds a gte range on source_authority", func() {
		f := buildFilter(&vector.Filter{MinAuthority: 6})
		Expect(f.Must).To(HaveLen(1))
		field := f.Must[0].GetField()
		Expect(field.GetKey()).To(Equal("source_authority"))
		Expect(field.GetRange().GetGte()).To(Equal(6.0))
	})
})

var _ = Describe("extractValue", func() {
	It("restores the normalized payload shapes", func() {
		payload, err := qdrant.TryValueMap(map[string]any{
			"text":             "hello",
			"source_authority": 9,
			"ratio":            0.5,
			"ok":               true,
			"tags":             []any{"a", "b"},
		})
		Expect(err).NotTo(HaveOccurred())

		out := map[string]any{}
		for k, v := range payload {
			out[k] = extractValue(v)
		}
		Expect(out).To(Equal(map[string]any{
			"text":             "hello",
			"source_authority": 9,
			"ratio":            0.5,
			"ok":               true,
			"tags":             []any{"a", "b"},
		}))
	})

	It("returns nil for nil values", func() {
		Expect(extractValue(nil)).To(BeNil())
	})
})

var _ = Describe("wrap", func() {
	It("maps NotFound to ErrCollectionMissing", func() {
		err := wrap(status.Error(codes.NotFound, "no collection"), "docs")
		Expect(err).To(MatchError(vector.ErrCollectionMissing))
	})

	It("maps Unavailable to ErrConnection", func() {
		err := wrap(status.Error(codes.Unavailable, "down"), "docs")
		Expect(err).To(MatchError(vector.ErrConnection))
	})

	It("passes other errors through", func() {
		orig := errors.New("boom")
		Expect(wrap(orig, "docs")).To(Equal(orig))
	})
})

var _ = Describe("NewDriver", func() {
	It("requires a URL", func() {
		_, err := NewDriver(Config{}, nil)
		Expect(err).To(MatchError(ContainSubstring("qdrant url is required")))
	})

	It("rejects an unparsable port before dialing", func() {
		_, err := NewDriver(Config{URL: "http://localhost:abc"}, nil)
		Expect(err).To(HaveOccurred())
	})
})
