// Package search provides shared search types and logic for authority-aware
// retrieval over ingested documents. It is used by both the REST API endpoint
// and the MCP server tool.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/retrieval"
)

const (
	// UnknownTitle labels results without a title or source URL.
	UnknownTitle = "Unknown Document"

	// LocalFile stands in for the URL of results loaded from disk.
	LocalFile = "local-file"

	// MaxTopK caps the number of results a single search may request.
	MaxTopK = 100
)

// Retriever is the read side of retrieval.Engine.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]retrieval.Result, error)
}

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k,omitempty"`
	MinAuthority *int   `json:"min_authority,omitempty"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title           string         `json:"title"`
	URL             string         `json:"url"`
	Text            string         `json:"text"`
	Score           float32        `json:"score"`
	SourceType      string         `json:"source_type"`
	SourceAuthority int            `json:"source_authority"`
	Metadata        map[string]any `json:"metadata"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query        string         `json:"query"`
	MinAuthority *int           `json:"min_authority,omitempty"`
	Results      []SearchResult `json:"results"`
	Count        int            `json:"count"`
}

// Search runs one retrieval and reshapes the hits for callers. TopK is
// capped at MaxTopK. An empty result set is not an error.
func Search(ctx context.Context, retriever Retriever, input SearchInput, logger *slog.Logger) (*SearchOutput, error) {
	input.TopK = min(input.TopK, MaxTopK)

	logger.Debug("search request",
		"query", input.Query,
		"top_k", input.TopK,
		"min_authority", input.MinAuthority,
	)

	hits, err := retriever.Retrieve(ctx, retrieval.Request{
		Query:        input.Query,
		TopK:         input.TopK,
		MinAuthority: input.MinAuthority,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, BuildSearchResult(hit))
	}

	return &SearchOutput{
		Query:        input.Query,
		MinAuthority: input.MinAuthority,
		Results:      results,
		Count:        len(results),
	}, nil
}

// BuildSearchResult converts a retrieval hit into a SearchResult.
func BuildSearchResult(hit retrieval.Result) SearchResult {
	tier, _ := authority.Of(hit.Metadata)
	st, _ := hit.Metadata[document.KeySourceType].(string)
	return SearchResult{
		Title:           Title(hit.Metadata),
		URL:             URL(hit.Metadata),
		Text:            hit.Text,
		Score:           hit.Score,
		SourceType:      st,
		SourceAuthority: tier,
		Metadata:        hit.Metadata,
	}
}

// Title picks title, then source_url, then UnknownTitle.
func Title(md map[string]any) string {
	if s := nonEmpty(md, document.KeyTitle); s != "" {
		return s
	}
	if s := nonEmpty(md, document.KeySourceURL); s != "" {
		return s
	}
	return UnknownTitle
}

// URL picks source_url, then LocalFile.
func URL(md map[string]any) string {
	if s := nonEmpty(md, document.KeySourceURL); s != "" {
		return s
	}
	return LocalFile
}

func nonEmpty(md map[string]any, key string) string {
	s, _ := md[key].(string)
	return s
}
