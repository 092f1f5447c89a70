package index_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/pkg/index"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	testutils "github.com/papercomputeco/vellum/pkg/utils/test"
	"github.com/papercomputeco/vellum/pkg/vector"
)

func points(n int, dims int) []vector.Point {
	out := make([]vector.Point, n)
	for i := range out {
		v := make([]float32, dims)
		v[i%dims] = 1
		out[i] = vector.Point{
			ID:      fmt.Sprintf("p-%03d", i),
			Vector:  v,
			Payload: map[string]any{"text": fmt.Sprintf("chunk %d", i), "source_authority": 5},
		}
	}
	return out
}

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		driver *testutils.MockVectorDriver
		store  *index.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = testutils.NewMockVectorDriver()

		var err error
		store, err = index.NewStore(driver, index.Config{Collection: "docs", Dimensions: 4, BatchSize: 10}, vellumlogger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(store.EnsureCollection(ctx)).To(Succeed())
	})

	Describe("NewStore", func() {
		It("applies defaults", func() {
			s, err := index.NewStore(driver, index.Config{Dimensions: 4}, vellumlogger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Config().Collection).To(Equal(index.DefaultCollection))
			Expect(s.Config().BatchSize).To(Equal(index.DefaultBatchSize))
		})

		It("requires dimensions", func() {
			_, err := index.NewStore(driver, index.Config{}, vellumlogger.Nop())
			Expect(err).To(MatchError(index.ErrDimensionMismatch))
		})
	})

	Describe("EnsureCollection", func() {
		It("is idempotent", func() {
			Expect(store.EnsureCollection(ctx)).To(Succeed())
			Expect(store.EnsureCollection(ctx)).To(Succeed())
			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("Upsert", func() {
		It("writes in fixed-size sequential batches", func() {
			stored, err := store.Upsert(ctx, points(25, 4))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(25))
			Expect(driver.UpsertSizes).To(Equal([]int{10, 10, 5}))
		})

		It("rejects mismatched dimensions before writing anything", func() {
			pts := points(3, 4)
			pts[2].Vector = []float32{1, 2}
			_, err := store.Upsert(ctx, pts)
			Expect(err).To(MatchError(index.ErrDimensionMismatch))
			Expect(driver.UpsertCalls).To(BeZero())
		})

		It("skips a failing batch and keeps going", func() {
			driver.FailUpsertCall = 2
			stored, err := store.Upsert(ctx, points(25, 4))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(15))

			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(15))
		})

		It("drops recursive payloads and retries the rest of the batch once", func() {
			pts := points(5, 4)
			loop := map[string]any{"text": "loop"}
			loop["self"] = loop
			pts[3].Payload = loop

			stored, err := store.Upsert(ctx, pts)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(4))
			Expect(driver.UpsertSizes).To(Equal([]int{5, 4}))
		})

		It("is idempotent for identical points", func() {
			pts := points(5, 4)
			_, err := store.Upsert(ctx, pts)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Upsert(ctx, pts)
			Expect(err).NotTo(HaveOccurred())

			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(5))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			_, err := store.Upsert(ctx, points(8, 4))
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns at most topK results in descending score order", func() {
			results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 3, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
			}
			Expect(results[0].ID).To(Equal("p-000"))
			Expect(results[1].ID).To(Equal("p-004"))
		})

		It("rejects a query vector of the wrong dimension", func() {
			_, err := store.Search(ctx, []float32{1, 0}, 3, nil)
			Expect(err).To(MatchError(index.ErrDimensionMismatch))
		})

		It("returns nothing for a non-positive topK", func() {
			results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("reports the driver's filter support", func() {
			Expect(store.SupportsFilter()).To(BeTrue())
			driver.NoFilter = true
			Expect(store.SupportsFilter()).To(BeFalse())
		})
	})

	Describe("Clear", func() {
		It("leaves an empty collection that accepts new points", func() {
			_, err := store.Upsert(ctx, points(5, 4))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Clear(ctx)).To(Succeed())
			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())

			results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())

			stored, err := store.Upsert(ctx, points(2, 4))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(2))
		})
	})
})
