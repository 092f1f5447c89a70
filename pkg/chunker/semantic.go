package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/vellum/pkg/completion"
)

// Boundary separates sections in the model's response.
const Boundary = "[CHUNK_BOUNDARY]"

const semanticPrompt = `You are a document processing assistant that splits text into logical chunks.

Analyze the following text and split it into logically coherent sections or paragraphs.
Each section should focus on a specific sub-topic or theme.

Guidelines:
1. Preserve the original text exactly.
2. Aim for chunks of approximately %d characters where possible.
3. Return the chunks separated by a unique delimiter: %s

Text to split:
---
%s
---`

// Semantic asks a language model to cut text into thematic sections. It is
// best effort: any failure returns the sliding window split of the same text.
type Semantic struct {
	call     completion.Func
	fallback *SlidingWindow
	logger   *slog.Logger
}

// NewSemantic wraps a completion caller. fallback supplies both the target
// section size and the result used whenever the model cannot be trusted.
func NewSemantic(call completion.Func, fallback *SlidingWindow, logger *slog.Logger) *Semantic {
	return &Semantic{
		call:     call,
		fallback: fallback,
		logger:   logger,
	}
}

// Chunk never returns an error.
func (s *Semantic) Chunk(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sections, err := s.sections(ctx, text)
	if err != nil {
		s.logger.Warn("semantic chunking failed, falling back to sliding window",
			"error", err,
		)
		return s.fallback.Split(text), nil
	}

	s.logger.Debug("semantic chunking succeeded", "sections", len(sections))
	return sections, nil
}

func (s *Semantic) sections(ctx context.Context, text string) (_ []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion panicked: %v", r)
		}
	}()

	if s.call == nil {
		return nil, fmt.Errorf("no completion caller configured")
	}

	resp, err := s.call(ctx, fmt.Sprintf(semanticPrompt, s.fallback.Size(), Boundary, text))
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	sections := SplitSections(resp)
	if len(sections) <= 1 {
		return nil, fmt.Errorf("model returned %d usable sections", len(sections))
	}
	return sections, nil
}

// SplitSections splits a model response on Boundary, trimming each section
// and dropping empty ones.
func SplitSections(resp string) []string {
	parts := strings.Split(resp, Boundary)
	sections := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			sections = append(sections, trimmed)
		}
	}
	return sections
}
