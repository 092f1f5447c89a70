package mcp_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vellum/api/mcp"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/retrieval"
	testutils "github.com/papercomputeco/vellum/pkg/utils/test"
)

var _ = Describe("MCP Server", func() {
	var engine *retrieval.Engine

	BeforeEach(func() {
		stack, err := testutils.NewStack(context.Background())
		Expect(err).NotTo(HaveOccurred())
		engine = stack.Engine
	})

	Describe("NewServer", func() {
		It("returns an error when the retriever is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: vellumlogger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("retriever is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Retriever: engine})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates a noop server without dependencies", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			server, err := mcp.NewServer(mcp.Config{Retriever: engine, Logger: vellumlogger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})
})
