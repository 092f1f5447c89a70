package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Texts without an explicit embedding get a bag-of-words vector, so texts
// sharing words score as similar.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// Dims is the output dimension. Defaults to 8.
	Dims uint

	// FailOn causes any batch containing this text to fail.
	FailOn string

	// Batches records every batch passed to EmbedBatch.
	Batches [][]string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Dims:       8,
	}
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.Batches = append(m.Batches, texts)

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if m.FailOn != "" && text == m.FailOn {
			return nil, fmt.Errorf("mock embedding failure for: %s", text)
		}
		if emb, ok := m.Embeddings[text]; ok {
			out = append(out, emb)
			continue
		}
		out = append(out, m.bagOfWords(text))
	}
	return out, nil
}

// Vector returns the embedding EmbedBatch would produce for text.
func (m *MockEmbedder) Vector(text string) []float32 {
	if emb, ok := m.Embeddings[text]; ok {
		return emb
	}
	return m.bagOfWords(text)
}

func (m *MockEmbedder) bagOfWords(text string) []float32 {
	v := make([]float32, m.Dimensions())
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%uint32(len(v))]++
	}
	// Keep every vector non-zero so cosine similarity stays defined.
	v[len(v)-1] += 0.01
	return v
}

func (m *MockEmbedder) Dimensions() uint {
	if m.Dims == 0 {
		return 8
	}
	return m.Dims
}

func (m *MockEmbedder) Close() error {
	return nil
}
