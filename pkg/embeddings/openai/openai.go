// Package openai implements pkg/embeddings' Embedder for any OpenAI-compatible
// /v1/embeddings endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/vellum/pkg/embeddings"
)

const (
	// DefaultEmbeddingModel is the default remote embedding model.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultBaseURL is the OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultAPIKeyEnv is the environment variable read when no key is configured.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"

	// DefaultDimensions matches DefaultEmbeddingModel.
	DefaultDimensions = 1536
)

// Embedder wraps an OpenAI-compatible embedding API.
type Embedder struct {
	baseURL    string
	model      string
	apiKey     string
	dimensions uint
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// APIKey takes precedence over APIKeyEnv.
	APIKey string

	// APIKeyEnv names the environment variable holding the key.
	// Defaults to DefaultAPIKeyEnv.
	APIKeyEnv string

	// Dimensions defaults to DefaultDimensions.
	Dimensions uint

	// Timeout bounds a single batch call. Defaults to 60s.
	Timeout time.Duration
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewEmbedder creates a new remote embedder. A missing API key is an error.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		env := cfg.APIKeyEnv
		if env == "" {
			env = DefaultAPIKeyEnv
		}
		apiKey = os.Getenv(env)
		if apiKey == "" {
			return nil, fmt.Errorf("no API key configured: set %s", env)
		}
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Embedder{
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// EmbedBatch sends all texts in one request and reorders results by index.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: embeddings API returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, string(b))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}

	sort.SliceStable(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vectors := make([][]float32, 0, len(parsed.Data))
	for i, d := range parsed.Data {
		if d.Index != i {
			return nil, fmt.Errorf("%w: response missing embedding for input %d", embeddings.ErrEmbedding, i)
		}
		vectors = append(vectors, d.Embedding)
	}

	if err := embeddings.CheckBatch(vectors, len(texts), e.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the configured output dimension.
func (e *Embedder) Dimensions() uint {
	return e.dimensions
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
