package vector_test

import (
	"strings"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/vector"
)

var _ = Describe("PointID", func() {
	It("is deterministic", func() {
		a := vector.PointID("Alice project uses microservices.", 0, "Alice project")
		b := vector.PointID("Alice project uses microservices.", 0, "Alice project")
		Expect(a).To(Equal(b))
	})

	It("is a valid UUID with the custom version and RFC 4122 variant", func() {
		id, err := uuid.Parse(vector.PointID("content", 3, "chunk"))
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Version()).To(Equal(uuid.Version(8)))
		Expect(id.Variant()).To(Equal(uuid.RFC4122))
	})

	It("differs by chunk index and chunk text", func() {
		base := vector.PointID("content", 0, "chunk")
		Expect(vector.PointID("content", 1, "chunk")).NotTo(Equal(base))
		Expect(vector.PointID("content", 0, "other")).NotTo(Equal(base))
	})

	It("only looks at the first 100 runes of content and 50 of the chunk", func() {
		long := strings.Repeat("é", 100)
		Expect(vector.PointID(long+"tail-a", 0, "c")).To(Equal(vector.PointID(long+"tail-b", 0, "c")))

		chunk := strings.Repeat("x", 50)
		Expect(vector.PointID("c", 0, chunk+"1")).To(Equal(vector.PointID("c", 0, chunk+"2")))
	})

	It("does not confuse field boundaries", func() {
		Expect(vector.PointID("a1", 2, "b")).NotTo(Equal(vector.PointID("a", 12, "b")))
	})
})

var _ = Describe("NewPayload", func() {
	It("merges chunk fields over metadata without mutating it", func() {
		md := map[string]any{"source_type": "web", "source_authority": 5}
		payload := vector.NewPayload(md, document.Chunk{Text: "hi", Index: 1, Total: 3})
		Expect(payload).To(Equal(map[string]any{
			"source_type":      "web",
			"source_authority": 5,
			"text":             "hi",
			"chunk_index":      1,
			"total_chunks":     3,
		}))
		Expect(md).NotTo(HaveKey("text"))
	})
})

var _ = Describe("CheckPayload", func() {
	It("accepts flat payloads", func() {
		Expect(vector.CheckPayload(map[string]any{"a": 1, "b": []any{"x"}})).To(Succeed())
	})

	It("rejects self-referencing payloads", func() {
		p := map[string]any{"a": 1}
		p["self"] = p
		Expect(vector.CheckPayload(p)).To(MatchError(vector.ErrRecursivePayload))
	})
})

var _ = Describe("payload encoding", func() {
	It("restores integers after a JSON round trip", func() {
		b, err := vector.EncodePayload(map[string]any{"source_authority": 7, "score": 0.5, "tags": []any{1, "a"}})
		Expect(err).NotTo(HaveOccurred())

		decoded, err := vector.DecodePayload(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded["source_authority"]).To(Equal(7))
		Expect(decoded["score"]).To(Equal(0.5))
		Expect(decoded["tags"]).To(Equal([]any{1, "a"}))
	})
})
