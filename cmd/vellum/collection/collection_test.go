package collectioncmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/vellum/api"
	collectioncmder "github.com/papercomputeco/vellum/cmd/vellum/collection"
	"github.com/papercomputeco/vellum/pkg/dotdir"
)

var _ = Describe("collection command", func() {
	var (
		server    *httptest.Server
		configDir string
		count     int
		methods   []string
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		count = 42
		methods = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			methods = append(methods, r.Method)
			if r.Method == http.MethodDelete {
				count = 0
			}
			_ = json.NewEncoder(w).Encode(api.CollectionResponse{
				Name:       "research_documents",
				Dimensions: 768,
				Count:      count,
			})
		}))
		DeferCleanup(server.Close)
	})

	execute := func(args ...string) (string, error) {
		var out bytes.Buffer
		root := &cobra.Command{Use: "vellum", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", configDir, "")
		root.AddCommand(collectioncmder.NewCollectionCmd())
		root.SetOut(&out)
		root.SetArgs(args)
		err := root.Execute()
		return out.String(), err
	}

	Describe("count", func() {
		It("prints the collection details", func() {
			out, err := execute("collection", "count", "--api-target", server.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("research_documents"))
			Expect(out).To(ContainSubstring("768"))
			Expect(out).To(ContainSubstring("42"))
			Expect(methods).To(Equal([]string{http.MethodGet}))
		})

		It("includes the last ingest for the same collection", func() {
			Expect(dotdir.NewManager().SaveIngestState(&dotdir.IngestState{
				Collection: "research_documents",
				Planned:    10,
				Added:      8,
				Completed:  time.Now(),
			}, configDir)).To(Succeed())

			out, err := execute("collection", "count", "--api-target", server.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("8 of 10 chunks"))
		})
	})

	Describe("clear", func() {
		It("requires confirmation", func() {
			_, err := execute("collection", "clear", "--api-target", server.URL)
			Expect(err).To(MatchError(ContainSubstring("--yes")))
			Expect(methods).To(BeEmpty())
		})

		It("clears the collection and the ingest record", func() {
			m := dotdir.NewManager()
			Expect(m.SaveIngestState(&dotdir.IngestState{Collection: "research_documents"}, configDir)).To(Succeed())

			out, err := execute("collection", "clear", "--yes", "--api-target", server.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Cleared"))
			Expect(methods).To(Equal([]string{http.MethodDelete}))

			state, err := m.LoadIngestState(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})

	It("surfaces unreachable servers", func() {
		target := server.URL
		server.Close()

		_, err := execute("collection", "count", "--api-target", target)
		Expect(err).To(MatchError(ContainSubstring("failed to connect")))
	})
})
