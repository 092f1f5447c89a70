// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/vector"
)

const (
	// DefaultMaxRetries is the default number of connection attempts.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the initial delay between connection attempts.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the backoff between connection attempts.
	DefaultMaxRetryDelay = 5 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

var errStatus = errors.New("unexpected status")

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu  sync.Mutex
	ids map[string]string
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// MaxRetries is the number of heartbeat attempts made while Chroma is
	// still starting. Defaults to DefaultMaxRetries.
	MaxRetries int

	// RetryDelay is the initial backoff; it doubles up to MaxRetryDelay.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff.
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver, waiting for the server to
// answer its heartbeat.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxRetryDelay
	}

	d := &Driver{
		baseURL: strings.TrimSuffix(c.URL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
		ids:    map[string]string{},
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, lastErr = d.do(context.Background(), http.MethodGet, "/api/v2/heartbeat", nil, nil)
		if lastErr == nil {
			logger.Info("connected to Chroma", "url", c.URL)
			return d, nil
		}

		if attempt < maxRetries {
			logger.Warn("chroma not ready, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			time.Sleep(delay)
			delay = min(delay*2, maxDelay)
		}
	}

	return nil, fmt.Errorf("%w: chroma at %s unavailable after %d attempts: %v",
		vector.ErrConnection, c.URL, maxRetries, lastErr)
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
// Non-2xx responses return errStatus with the status code.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%w %d: %s", errStatus, resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// collectionID resolves and caches a collection's ID by name.
func (d *Driver) collectionID(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	id, ok := d.ids[name]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	var coll chromaCollection
	status, err := d.do(ctx, http.MethodGet, collectionsPath+"/"+url.PathEscape(name), nil, &coll)
	if err != nil {
		if status == http.StatusNotFound || status == http.StatusBadRequest {
			return "", fmt.Errorf("%w: %s", vector.ErrCollectionMissing, name)
		}
		return "", fmt.Errorf("getting collection %s: %w", name, err)
	}

	d.mu.Lock()
	d.ids[name] = coll.ID
	d.mu.Unlock()
	return coll.ID, nil
}

// EnsureCollection gets the collection or creates it with cosine space.
func (d *Driver) EnsureCollection(ctx context.Context, c vector.Collection) (bool, error) {
	_, err := d.collectionID(ctx, c.Name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, vector.ErrCollectionMissing) {
		return false, err
	}

	var coll chromaCollection
	if _, err := d.do(ctx, http.MethodPost, collectionsPath, chromaCreateRequest{
		Name:     c.Name,
		Metadata: map[string]any{"hnsw:space": "cosine"},
	}, &coll); err != nil {
		return false, fmt.Errorf("creating collection %s: %w", c.Name, err)
	}

	d.mu.Lock()
	d.ids[c.Name] = coll.ID
	d.mu.Unlock()

	d.logger.Debug("created chroma collection",
		"collection", c.Name,
		"collection_id", coll.ID,
	)
	return true, nil
}

// DeleteCollection deletes the collection by name.
func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	d.mu.Lock()
	delete(d.ids, name)
	d.mu.Unlock()

	status, err := d.do(ctx, http.MethodDelete, collectionsPath+"/"+url.PathEscape(name), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}

// Upsert stores points. Chroma metadata holds only scalars, so composite
// payload values are stored as JSON strings and the chunk text as the
// record document.
func (d *Driver) Upsert(ctx context.Context, name string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}
	id, err := d.collectionID(ctx, name)
	if err != nil {
		return err
	}

	reqBody := chromaUpsertRequest{
		IDs:        make([]string, len(points)),
		Embeddings: make([][]float32, len(points)),
		Metadatas:  make([]map[string]any, len(points)),
		Documents:  make([]string, len(points)),
	}
	for i, p := range points {
		if err := vector.CheckPayload(p.Payload); err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		md, text, err := toMetadata(p.Payload)
		if err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		reqBody.IDs[i] = p.ID
		reqBody.Embeddings[i] = p.Vector
		reqBody.Metadatas[i] = md
		reqBody.Documents[i] = text
	}

	if _, err := d.do(ctx, http.MethodPost, collectionsPath+"/"+id+"/upsert", reqBody, nil); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("upserted points to chroma",
		"collection", name,
		"count", len(points),
	)
	return nil
}

func toMetadata(payload map[string]any) (map[string]any, string, error) {
	md := make(map[string]any, len(payload))
	text, _ := payload[document.KeyText].(string)
	for k, v := range payload {
		if k == document.KeyText {
			continue
		}
		switch v.(type) {
		case nil:
			continue
		case string, bool, int, int32, int64, float32, float64:
			md[k] = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, "", fmt.Errorf("encoding metadata %s: %w", k, err)
			}
			md[k] = string(b)
		}
	}
	return md, text, nil
}

// Query runs a nearest neighbor query with an optional authority floor.
func (d *Driver) Query(ctx context.Context, name string, embedding []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	id, err := d.collectionID(ctx, name)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "documents", "distances"},
	}
	if filter != nil && filter.MinAuthority != authority.Lowest {
		reqBody.Where = map[string]any{
			document.KeySourceAuthority: map[string]any{"$gte": filter.MinAuthority},
		}
	}

	var queryResp chromaQueryResponse
	if _, err := d.do(ctx, http.MethodPost, collectionsPath+"/"+id+"/query", reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("querying chroma: %w", err)
	}

	results := []vector.QueryResult{}

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	var distances []float32
	if len(queryResp.Distances) > 0 {
		distances = queryResp.Distances[0]
	}
	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}
	var documents []*string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	for i, pid := range ids {
		payload := map[string]any{}
		if i < len(metadatas) {
			for k, v := range metadatas[i] {
				payload[k] = integral(v)
			}
		}
		if i < len(documents) && documents[i] != nil {
			payload[document.KeyText] = *documents[i]
		}

		result := vector.QueryResult{ID: pid, Payload: payload}
		// Cosine distance is 1 - cosine similarity
		if i < len(distances) {
			result.Score = 1 - distances[i]
		}
		results = append(results, result)
	}

	d.logger.Debug("queried chroma",
		"collection", name,
		"results", len(results),
	)
	return results, nil
}

func integral(v any) any {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int(f)
	}
	return v
}

// Count returns the number of records in the collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	id, err := d.collectionID(ctx, name)
	if err != nil {
		return 0, err
	}

	var n int
	if _, err := d.do(ctx, http.MethodGet, collectionsPath+"/"+id+"/count", nil, &n); err != nil {
		return 0, fmt.Errorf("counting chroma records: %w", err)
	}
	return n, nil
}

// SupportsFilter is true; the authority floor becomes a where clause.
func (d *Driver) SupportsFilter() bool {
	return true
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ vector.Driver = (*Driver)(nil)
