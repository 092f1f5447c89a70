// Package retrieval answers similarity queries over the index, filtered by
// source authority.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/embeddings"
	"github.com/papercomputeco/vellum/pkg/index"
	"github.com/papercomputeco/vellum/pkg/vector"
)

const (
	// DefaultTopK is the result count used when a request does not set one.
	DefaultTopK = 5

	// DefaultOversample multiplies TopK when the store cannot filter natively.
	DefaultOversample = 4
)

// Searcher is the read side of index.Store.
type Searcher interface {
	Search(ctx context.Context, vec []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error)
	SupportsFilter() bool
}

// Config tunes an Engine.
type Config struct {
	Oversample  int
	DefaultTopK int
}

// Request is a single retrieval query.
type Request struct {
	Query string

	// MinAuthority excludes chunks below this tier. Nil accepts everything.
	MinAuthority *int

	// TopK caps the number of results. Zero uses the engine default.
	TopK int
}

// Result is one retrieved chunk.
type Result struct {
	Text     string         `json:"text"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Engine embeds queries and searches the index.
type Engine struct {
	embedder embeddings.Embedder
	searcher Searcher
	config   Config
	logger   *slog.Logger
}

// NewEngine builds an engine. Zero config values take defaults.
func NewEngine(embedder embeddings.Embedder, searcher Searcher, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Oversample <= 0 {
		cfg.Oversample = DefaultOversample
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	return &Engine{
		embedder: embedder,
		searcher: searcher,
		config:   cfg,
		logger:   logger,
	}
}

// Retrieve returns up to TopK chunks whose authority clears the floor,
// most similar first. A floor that nothing clears yields an empty slice.
// Backend failures are logged and yield an empty slice; only configuration
// errors are returned.
func (e *Engine) Retrieve(ctx context.Context, req Request) ([]Result, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = e.config.DefaultTopK
	}

	floor := authority.Lowest
	if req.MinAuthority != nil {
		floor = *req.MinAuthority
	}

	if strings.TrimSpace(req.Query) == "" {
		return []Result{}, nil
	}

	vec, err := embeddings.EmbedOne(ctx, e.embedder, req.Query)
	if err != nil {
		if isConfigError(err) {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		e.logger.Error("query embedding failed", "error", err)
		return []Result{}, nil
	}

	var (
		filter *vector.Filter
		limit  = topK
	)
	switch {
	case floor == authority.Lowest:
	case e.searcher.SupportsFilter():
		filter = &vector.Filter{MinAuthority: floor}
	default:
		limit = oversample(topK, e.config.Oversample)
	}

	hits, err := e.searcher.Search(ctx, vec, limit, filter)
	if err != nil {
		if isConfigError(err) {
			return nil, fmt.Errorf("searching index: %w", err)
		}
		e.logger.Error("index search failed", "error", err)
		return []Result{}, nil
	}

	results := make([]Result, 0, min(len(hits), topK))
	for _, hit := range hits {
		if !authority.Admits(hit.Payload, floor) {
			continue
		}
		results = append(results, toResult(hit))
		if len(results) == topK {
			break
		}
	}

	e.logger.Debug("retrieved chunks",
		"candidates", len(hits),
		"returned", len(results),
		"min_authority", floor,
	)
	return results, nil
}

// oversample multiplies topK by factor, saturating at math.MaxInt.
func oversample(topK, factor int) int {
	if topK > math.MaxInt/factor {
		return math.MaxInt
	}
	return topK * factor
}

func toResult(hit vector.QueryResult) Result {
	md := make(map[string]any, len(hit.Payload))
	for k, v := range hit.Payload {
		if k == document.KeyText {
			continue
		}
		md[k] = v
	}
	text, _ := hit.Payload[document.KeyText].(string)
	return Result{
		Text:     text,
		Score:    hit.Score,
		Metadata: md,
	}
}

func isConfigError(err error) bool {
	return errors.Is(err, index.ErrDimensionMismatch) ||
		errors.Is(err, embeddings.ErrDimensionMismatch)
}
