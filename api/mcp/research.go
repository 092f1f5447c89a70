package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/vellum/api/search"
	"github.com/papercomputeco/vellum/pkg/utils"
)

const (
	researchToolName    = "research_local_docs"
	researchDescription = "Search the user's ingested local documents (PDFs, repositories, web pages, transcripts) for information. Results can be restricted to sources at or above a minimum authority tier."

	defaultMaxResults = 3
	snippetLength     = 500
)

// ResearchInput represents the input arguments for the research tool.
type ResearchInput struct {
	Query        string `json:"query" jsonschema:"the specific topic to look up in the documents"`
	MaxResults   int    `json:"max_results,omitempty" jsonschema:"number of chunks to retrieve (default: 3)"`
	MinAuthority *int   `json:"min_authority,omitempty" jsonschema:"only return sources whose authority tier is at least this value"`
}

// LocalDoc is one record returned to the agent.
type LocalDoc struct {
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	Snippet         string  `json:"snippet"`
	Score           float32 `json:"score"`
	SourceType      string  `json:"source_type"`
	SourceAuthority int     `json:"source_authority"`
}

// ResearchOutput represents the output of the research tool.
type ResearchOutput struct {
	Query   string     `json:"query"`
	Results []LocalDoc `json:"results"`
	Count   int        `json:"count"`
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// handleResearch processes a research request.
func (s *Server) handleResearch(ctx context.Context, _ *mcp.CallToolRequest, input ResearchInput) (*mcp.CallToolResult, ResearchOutput, error) {
	logger := s.config.Logger

	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), ResearchOutput{}, nil
	}

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	floor := input.MinAuthority
	if floor == nil {
		floor = s.config.MinAuthority
	}

	out, err := search.Search(ctx, s.config.Retriever, search.SearchInput{
		Query:        input.Query,
		TopK:         maxResults,
		MinAuthority: floor,
	}, logger)
	if err != nil {
		logger.Error("research search failed", "error", err)
		return toolError("Search failed: %v", err), ResearchOutput{}, nil
	}

	logger.Debug("research results", "query", input.Query, "count", out.Count)

	output := ResearchOutput{
		Query:   input.Query,
		Results: make([]LocalDoc, 0, len(out.Results)),
	}
	for _, r := range out.Results {
		output.Results = append(output.Results, toLocalDoc(r))
	}
	output.Count = len(output.Results)

	// Tools returning structured content also return the serialized JSON in
	// a TextContent block.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal research output", "error", err)
		return toolError("Failed to serialize results: %v", err), ResearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func toLocalDoc(r search.SearchResult) LocalDoc {
	return LocalDoc{
		Title:           r.Title,
		URL:             r.URL,
		Snippet:         utils.Clip(r.Text, snippetLength),
		Score:           r.Score,
		SourceType:      r.SourceType,
		SourceAuthority: r.SourceAuthority,
	}
}
