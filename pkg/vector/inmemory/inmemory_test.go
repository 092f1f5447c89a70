package inmemory_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/pkg/vector"
	"github.com/papercomputeco/vellum/pkg/vector/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		coll   vector.Collection
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
		coll = vector.Collection{Name: "docs", Dimensions: 2, Metric: vector.MetricCosine}
		created, err := driver.EnsureCollection(ctx, coll)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())
	})

	It("reports an existing collection as not created", func() {
		created, err := driver.EnsureCollection(ctx, coll)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())
	})

	It("returns ErrCollectionMissing for unknown collections", func() {
		_, err := driver.Query(ctx, "absent", []float32{1, 0}, 1, nil)
		Expect(err).To(MatchError(vector.ErrCollectionMissing))
	})

	It("orders by score and breaks ties by insertion order", func() {
		Expect(driver.Upsert(ctx, coll.Name, []vector.Point{
			{ID: "b", Vector: []float32{0, 1}},
			{ID: "first-tie", Vector: []float32{1, 0}},
			{ID: "second-tie", Vector: []float32{2, 0}},
		})).To(Succeed())

		results, err := driver.Query(ctx, coll.Name, []float32{1, 0}, 3, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		Expect(results[0].ID).To(Equal("first-tie"))
		Expect(results[1].ID).To(Equal("second-tie"))
		Expect(results[2].ID).To(Equal("b"))
	})

	It("overwrites in place, keeping insertion position", func() {
		Expect(driver.Upsert(ctx, coll.Name, []vector.Point{
			{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{"text": "v1"}},
			{ID: "b", Vector: []float32{1, 0}, Payload: map[string]any{"text": "b"}},
		})).To(Succeed())
		Expect(driver.Upsert(ctx, coll.Name, []vector.Point{
			{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{"text": "v2"}},
		})).To(Succeed())

		n, err := driver.Count(ctx, coll.Name)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		results, err := driver.Query(ctx, coll.Name, []float32{1, 0}, 2, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].ID).To(Equal("a"))
		Expect(results[0].Payload["text"]).To(Equal("v2"))
	})

	It("applies the authority filter", func() {
		Expect(driver.Upsert(ctx, coll.Name, []vector.Point{
			{ID: "gh", Vector: []float32{1, 0}, Payload: map[string]any{"source_authority": 9}},
			{ID: "web", Vector: []float32{1, 0}, Payload: map[string]any{"source_authority": 5}},
			{ID: "none", Vector: []float32{1, 0}, Payload: map[string]any{}},
		})).To(Succeed())

		results, err := driver.Query(ctx, coll.Name, []float32{1, 0}, 10, &vector.Filter{MinAuthority: 6})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].ID).To(Equal("gh"))
	})

	It("rejects vectors of the wrong dimension", func() {
		err := driver.Upsert(ctx, coll.Name, []vector.Point{{ID: "x", Vector: []float32{1, 0, 0}}})
		Expect(err).To(HaveOccurred())
	})

	It("rejects recursive payloads", func() {
		p := map[string]any{}
		p["self"] = p
		err := driver.Upsert(ctx, coll.Name, []vector.Point{{ID: "x", Vector: []float32{1, 0}, Payload: p}})
		Expect(err).To(MatchError(vector.ErrRecursivePayload))
	})

	It("empties on delete and recreate", func() {
		Expect(driver.Upsert(ctx, coll.Name, []vector.Point{{ID: "a", Vector: []float32{1, 0}}})).To(Succeed())
		Expect(driver.DeleteCollection(ctx, coll.Name)).To(Succeed())
		_, err := driver.EnsureCollection(ctx, coll)
		Expect(err).NotTo(HaveOccurred())
		n, err := driver.Count(ctx, coll.Name)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})

	It("serves concurrent queries", func() {
		Expect(driver.Upsert(ctx, coll.Name, []vector.Point{{ID: "a", Vector: []float32{1, 0}}})).To(Succeed())

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				results, err := driver.Query(ctx, coll.Name, []float32{1, 0}, 1, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
			}()
		}
		wg.Wait()
	})
})
