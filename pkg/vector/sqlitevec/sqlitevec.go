// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/vellum/pkg/vector"
)

// MaxK is the largest k a vec0 knn query accepts. Larger requests are
// clamped.
const MaxK = 4096

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Driver implements vector.Driver using SQLite with sqlite-vec. Each
// collection is a points table holding IDs and JSON payloads plus a vec0
// virtual table keyed by the same rowid.
type Driver struct {
	db     *sql.DB
	logger *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}
	// vec0 tables and ":memory:" databases live on a single connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_collections (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating collections table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:     db,
		logger: logger,
	}, nil
}

func tables(name string) (points, vec string, err error) {
	if !identifier.MatchString(name) {
		return "", "", fmt.Errorf("invalid collection name %q", name)
	}
	return `"` + name + `_points"`, `"` + name + `_vec"`, nil
}

// EnsureCollection creates the points and vec0 tables for the collection.
func (d *Driver) EnsureCollection(ctx context.Context, c vector.Collection) (bool, error) {
	points, vec, err := tables(c.Name)
	if err != nil {
		return false, err
	}
	if c.Dimensions == 0 {
		return false, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	exists, err := d.exists(ctx, c.Name)
	if err != nil || exists {
		return false, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// vec0 virtual tables use integer rowids, so the points table maps
	// string point IDs to them.
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			point_id TEXT NOT NULL UNIQUE,
			payload TEXT NOT NULL DEFAULT '{}'
		)`, points),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=cosine)`,
			vec, c.Dimensions),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("creating collection %s: %w", c.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_collections(name, dimensions) VALUES (?, ?)`, c.Name, c.Dimensions,
	); err != nil {
		return false, fmt.Errorf("registering collection %s: %w", c.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("created sqlite-vec collection",
		"collection", c.Name,
		"dimensions", c.Dimensions,
	)
	return true, nil
}

func (d *Driver) exists(ctx context.Context, name string) (bool, error) {
	var dims int
	err := d.db.QueryRowContext(ctx,
		`SELECT dimensions FROM vec_collections WHERE name = ?`, name,
	).Scan(&dims)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
}

func (d *Driver) requireCollection(ctx context.Context, name string) error {
	ok, err := d.exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", vector.ErrCollectionMissing, name)
	}
	return nil
}

// DeleteCollection drops both tables of the collection.
func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	points, vec, err := tables(name)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + vec,
		"DROP TABLE IF EXISTS " + points,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping collection %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("unregistering collection %s: %w", name, err)
	}

	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert stores points in a single transaction.
// If a point with the same ID already exists, it keeps its rowid and so its
// insertion order.
func (d *Driver) Upsert(ctx context.Context, name string, pts []vector.Point) error {
	if len(pts) == 0 {
		return nil
	}
	points, vec, err := tables(name)
	if err != nil {
		return err
	}
	if err := d.requireCollection(ctx, name); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range pts {
		payload, err := vector.EncodePayload(p.Payload)
		if err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		embBlob := serializeFloat32(p.Vector)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s WHERE point_id = ?`, points), p.ID,
		).Scan(&existingRowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET payload = ? WHERE rowid = ?`, points),
				string(payload), existingRowID,
			); err != nil {
				return fmt.Errorf("updating point %s: %w", p.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, vec), existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for point %s: %w", p.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vec),
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for point %s: %w", p.ID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(point_id, payload) VALUES (?, ?)`, points),
				p.ID, string(payload),
			)
			if err != nil {
				return fmt.Errorf("inserting point %s: %w", p.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for point %s: %w", p.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, vec),
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for point %s: %w", p.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted points to sqlite-vec",
		"collection", name,
		"count", len(pts),
	)
	return nil
}

// Query runs a KNN search over the vec0 table. The filter is ignored.
func (d *Driver) Query(ctx context.Context, name string, embedding []float32, topK int, _ *vector.Filter) ([]vector.QueryResult, error) {
	points, vec, err := tables(name)
	if err != nil {
		return nil, err
	}
	if err := d.requireCollection(ctx, name); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}
	topK = min(topK, MaxK)

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			p.point_id,
			p.payload,
			ve.distance
		FROM %s ve
		INNER JOIN %s p ON p.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance, p.rowid
	`, vec, points), serializeFloat32(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := []vector.QueryResult{}
	for rows.Next() {
		var id, payload string
		var distance float64
		if err := rows.Scan(&id, &payload, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		decoded, err := vector.DecodePayload([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("point %s: %w", id, err)
		}

		results = append(results, vector.QueryResult{
			ID: id,
			// cosine distance is 1 - cosine similarity
			Score:   float32(1 - distance),
			Payload: decoded,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		"collection", name,
		"results", len(results),
	)
	return results, nil
}

// Count returns the number of points in the collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	points, _, err := tables(name)
	if err != nil {
		return 0, err
	}
	if err := d.requireCollection(ctx, name); err != nil {
		return 0, err
	}

	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+points).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return n, nil
}

// SupportsFilter is false; callers post-filter.
func (d *Driver) SupportsFilter() bool {
	return false
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
