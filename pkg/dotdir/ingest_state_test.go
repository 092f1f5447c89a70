package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/pkg/dotdir"
)

var _ = Describe("dotdir.Manager ingest state", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when nothing has been ingested", func() {
		state, err := m.LoadIngestState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round trips a saved state", func() {
		saved := &dotdir.IngestState{
			Collection: "research_documents",
			Sources:    []string{"docs/"},
			Documents:  2,
			Planned:    10,
			Added:      8,
			Failed:     1,
			Completed:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		}
		Expect(m.SaveIngestState(saved, tmpDir)).To(Succeed())

		loaded, err := m.LoadIngestState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(saved))
	})

	It("returns an error for invalid JSON", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "last_ingest.json"), []byte("not json"), 0o600)).To(Succeed())

		state, err := m.LoadIngestState(tmpDir)
		Expect(err).To(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("rejects a nil state", func() {
		Expect(m.SaveIngestState(nil, tmpDir)).To(MatchError(ContainSubstring("nil ingest state")))
	})

	It("clears the state and tolerates clearing twice", func() {
		Expect(m.SaveIngestState(&dotdir.IngestState{Collection: "c"}, tmpDir)).To(Succeed())
		Expect(m.ClearIngestState(tmpDir)).To(Succeed())
		Expect(m.ClearIngestState(tmpDir)).To(Succeed())

		state, err := m.LoadIngestState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})
})
