package chunker_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/pkg/chunker"
	"github.com/papercomputeco/vellum/pkg/completion"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
)

var _ = Describe("Semantic", func() {
	var (
		fallback *chunker.SlidingWindow
		text     string
	)

	BeforeEach(func() {
		var err error
		fallback, err = chunker.NewSlidingWindow(300, 50)
		Expect(err).NotTo(HaveOccurred())
		text = strings.Repeat("Deployment uses Kubernetes. ", 30)
	})

	semantic := func(call completion.Func) *chunker.Semantic {
		return chunker.NewSemantic(call, fallback, vellumlogger.Nop())
	}

	It("returns the model's sections", func() {
		var prompt string
		s := semantic(func(_ context.Context, p string) (string, error) {
			prompt = p
			return " first part \n" + chunker.Boundary + "\nsecond part" + chunker.Boundary + "  ", nil
		})

		chunks, err := s.Chunk(context.Background(), text)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"first part", "second part"}))
		Expect(prompt).To(ContainSubstring("approximately 300 characters"))
		Expect(prompt).To(ContainSubstring(text))
	})

	DescribeTable("falls back to the sliding window",
		func(call completion.Func) {
			chunks, err := semantic(call).Chunk(context.Background(), text)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(Equal(fallback.Split(text)))
		},
		Entry("on error", completion.Func(func(context.Context, string) (string, error) {
			return "", errors.New("rate limited")
		})),
		Entry("on a single section", completion.Func(func(context.Context, string) (string, error) {
			return "everything in one piece", nil
		})),
		Entry("on an empty reply", completion.Func(func(context.Context, string) (string, error) {
			return chunker.Boundary, nil
		})),
		Entry("on panic", completion.Func(func(context.Context, string) (string, error) {
			panic("boom")
		})),
		Entry("without a caller", completion.Func(nil)),
	)

	It("skips the model for blank text", func() {
		called := false
		chunks, err := semantic(func(context.Context, string) (string, error) {
			called = true
			return "", nil
		}).Chunk(context.Background(), "   ")
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeEmpty())
		Expect(called).To(BeFalse())
	})
})

var _ = Describe("SplitSections", func() {
	It("trims and drops empty sections", func() {
		Expect(chunker.SplitSections("a" + chunker.Boundary + " " + chunker.Boundary + " b ")).
			To(Equal([]string{"a", "b"}))
	})
})
