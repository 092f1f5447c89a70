package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/vellum/api/search"
)

var (
	searchToolName    = "search_documents"
	searchDescription = "Search ingested documents and return whole chunks with their full metadata, best match first. Use research_local_docs for short snippets."
)

const defaultSearchTopK = 5

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the search query text"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"number of chunks to return (default: 5)"`
	MinAuthority *int   `json:"min_authority,omitempty" jsonschema:"only return chunks whose authority tier is at least this value"`
}

// handleSearch returns full chunks rather than clipped snippets.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, search.SearchOutput, error) {
	logger := s.config.Logger

	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), search.SearchOutput{}, nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	floor := input.MinAuthority
	if floor == nil {
		floor = s.config.MinAuthority
	}

	logger.Debug("MCP search request",
		"query", input.Query,
		"top_k", topK,
	)

	output, err := search.Search(ctx, s.config.Retriever, search.SearchInput{
		Query:        input.Query,
		TopK:         topK,
		MinAuthority: floor,
	}, logger)
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return toolError("Search failed: %v", err), search.SearchOutput{}, nil
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return toolError("Failed to serialize results: %v", err), search.SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, *output, nil
}
