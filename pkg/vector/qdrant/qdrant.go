// Package qdrant provides a Qdrant vector database driver over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/papercomputeco/vellum/pkg/authority"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/vector"
)

// DefaultPort is Qdrant's gRPC port.
const DefaultPort = 6334

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "http://localhost:6334").
	// An https scheme enables TLS.
	URL string

	// APIKey is optional API key for authentication.
	APIKey string
}

// Driver implements vector.Driver for Qdrant.
type Driver struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewDriver creates a new Qdrant driver.
func NewDriver(cfg Config, logger *slog.Logger) (*Driver, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", vector.ErrConnection, err)
	}

	logger.Info("qdrant vector driver initialized",
		"host", host,
		"port", port,
		"tls", useTLS,
	)

	return &Driver{
		client: client,
		logger: logger,
	}, nil
}

func parseURL(raw string) (string, int, bool, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := DefaultPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

// EnsureCollection creates a cosine collection if it does not exist.
func (d *Driver) EnsureCollection(ctx context.Context, c vector.Collection) (bool, error) {
	exists, err := d.client.CollectionExists(ctx, c.Name)
	if err != nil {
		return false, wrap(err, c.Name)
	}
	if exists {
		return false, nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.Dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return false, fmt.Errorf("creating collection %s: %w", c.Name, wrap(err, c.Name))
	}
	return true, nil
}

// DeleteCollection drops the collection.
func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	err := d.client.DeleteCollection(ctx, name)
	if err != nil && !errors.Is(wrap(err, name), vector.ErrCollectionMissing) {
		return fmt.Errorf("deleting collection %s: %w", name, wrap(err, name))
	}
	return nil
}

// Upsert writes points and waits for them to be applied.
func (d *Driver) Upsert(ctx context.Context, name string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if err := vector.CheckPayload(p.Payload); err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return fmt.Errorf("converting payload for point %s: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", wrap(err, name))
	}

	d.logger.Debug("upserted points to qdrant",
		"collection", name,
		"count", len(points),
	)
	return nil
}

// Query finds the topK nearest points, applying the authority floor as a
// range condition on source_authority.
func (d *Driver) Query(ctx context.Context, name string, vec []float32, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	limit := uint64(topK)
	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", wrap(err, name))
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, point := range points {
		result := vector.QueryResult{
			Score:   point.Score,
			Payload: make(map[string]any, len(point.Payload)),
		}

		if point.Id != nil {
			if id := point.Id.GetUuid(); id != "" {
				result.ID = id
			} else {
				result.ID = strconv.FormatUint(point.Id.GetNum(), 10)
			}
		}

		for k, v := range point.Payload {
			result.Payload[k] = extractValue(v)
		}
		results = append(results, result)
	}
	return results, nil
}

func buildFilter(filter *vector.Filter) *qdrant.Filter {
	if filter == nil || filter.MinAuthority == authority.Lowest {
		return nil
	}
	floor := float64(filter.MinAuthority)
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewRange(document.KeySourceAuthority, &qdrant.Range{Gte: &floor}),
		},
	}
}

// extractValue extracts a Go value from a Qdrant Value.
func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}

	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return int(val.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(val.ListValue.GetValues()))
		for _, item := range val.ListValue.GetValues() {
			list = append(list, extractValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(val.StructValue.GetFields()))
		for k, item := range val.StructValue.GetFields() {
			m[k] = extractValue(item)
		}
		return m
	default:
		return nil
	}
}

// Count returns the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", wrap(err, name))
	}
	return int(n), nil
}

// SupportsFilter is true; the authority floor is a payload range condition.
func (d *Driver) SupportsFilter() bool {
	return true
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// wrap maps gRPC status codes onto vector sentinel errors.
func wrap(err error, collection string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s: %v", vector.ErrCollectionMissing, collection, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", vector.ErrConnection, err)
	default:
		return err
	}
}

var _ vector.Driver = (*Driver)(nil)
