package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/vellum/api/mcp"
)

// Server is the API server for managing and querying a vellum collection
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
	mcp    *mcp.Server
}

// NewServer creates a new API server. Components are injected so that the
// CLI can share one store between ingestion and search.
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             64 << 20,
	})

	mcpServer, err := mcp.NewServer(mcp.Config{
		Retriever:    config.Retriever,
		MinAuthority: config.MCPMinAuthority,
		Noop:         config.Retriever == nil,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
		mcp:    mcpServer,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/search", s.handleSearchEndpoint)
	app.Post("/v1/ingest", s.handleIngest)
	app.Get("/v1/collection", s.handleGetCollection)
	app.Delete("/v1/collection", s.handleClearCollection)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
