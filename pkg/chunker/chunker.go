// Package chunker splits document text into retrievable segments, either with a
// fixed sliding window or by asking a language model for thematic sections.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	// MinChunkSize is the floor below which a trailing window is merged into
	// the previous chunk instead of being emitted on its own.
	MinChunkSize = 100

	// DefaultSize and DefaultOverlap are measured in characters (runes).
	DefaultSize    = 800
	DefaultOverlap = 200
)

// ErrInvalidConfig is returned for a size/overlap pair that cannot make
// progress through the text.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunker splits text into ordered chunk texts.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]string, error)
}

// SlidingWindow emits windows of Size runes, each starting Size-Overlap runes
// after the previous one.
type SlidingWindow struct {
	size    int
	overlap int
}

// NewSlidingWindow validates the window configuration.
func NewSlidingWindow(size, overlap int) (*SlidingWindow, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, size)
	}
	return &SlidingWindow{size: size, overlap: overlap}, nil
}

// Size returns the window length in runes.
func (w *SlidingWindow) Size() int { return w.size }

// Overlap returns how many runes consecutive windows share.
func (w *SlidingWindow) Overlap() int { return w.overlap }

// Chunk never fails; the error is part of the Chunker contract.
func (w *SlidingWindow) Chunk(_ context.Context, text string) ([]string, error) {
	return w.Split(text), nil
}

// Split cuts text into windows. Whitespace-only text yields no chunks.
func (w *SlidingWindow) Split(text string) []string {
	if strings.TrimFunc(text, unicode.IsSpace) == "" {
		return nil
	}

	runes := []rune(text)
	step := w.size - w.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + w.size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])

		if end-start < MinChunkSize && len(chunks) > 0 {
			chunks[len(chunks)-1] += " " + window
			break
		}

		chunks = append(chunks, window)
		if end == len(runes) {
			break
		}
	}
	return chunks
}
