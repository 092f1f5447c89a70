// Package vectorutils builds vector drivers from provider settings.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/vellum/pkg/vector"
	"github.com/papercomputeco/vellum/pkg/vector/chroma"
	"github.com/papercomputeco/vellum/pkg/vector/inmemory"
	"github.com/papercomputeco/vellum/pkg/vector/pgvector"
	"github.com/papercomputeco/vellum/pkg/vector/qdrant"
	"github.com/papercomputeco/vellum/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "memory", "qdrant", "sqlite", "chroma", "pgvector".
	ProviderType string

	// Target is the provider's address: a URL for qdrant and chroma, a file
	// path for sqlite, a connection string for pgvector.
	Target string

	// APIKey authenticates against Qdrant Cloud.
	APIKey string

	Logger *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "memory", "inmemory":
		return inmemory.NewDriver(), nil
	case "qdrant":
		return qdrant.NewDriver(qdrant.Config{
			URL:    o.Target,
			APIKey: o.APIKey,
		}, o.Logger)
	case "sqlite", "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath: o.Target,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL: o.Target,
		}, o.Logger)
	case "pgvector", "postgres":
		return pgvector.NewDriver(ctx, o.Target, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
