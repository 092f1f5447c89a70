// Package api provides an HTTP API server for ingesting documents into and
// searching a vellum collection.
package api

import (
	"context"

	"github.com/papercomputeco/vellum/api/search"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/index"
	"github.com/papercomputeco/vellum/pkg/ingest"
)

// Collection is the lifecycle side of index.Store.
type Collection interface {
	Config() index.Config
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Ingester runs documents through the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, docs []document.Document) (ingest.Report, error)
}

// Config is the API server configuration. Nil components disable the
// endpoints that need them.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Collection backs the /v1/collection endpoints
	Collection Collection

	// Retriever backs /v1/search and the MCP research tool
	Retriever search.Retriever

	// Ingester backs /v1/ingest
	Ingester Ingester

	// MCPMinAuthority is the default floor for MCP tool calls
	MCPMinAuthority *int
}
