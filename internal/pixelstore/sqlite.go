package pixelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/dustmap/internal/monitoring"
	"github.com/banshee-data/dustmap/internal/tensor"
)

// SQLiteStore keeps pixel groups in a SQLite database. Sample tensors are
// stored as gzip-compressed gob blobs; attributes live in their own table.
type SQLiteStore struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the store at path and applies pending
// schema migrations.
func Open(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pixel store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to pixel store %s: %w", path, err)
	}

	s := &SQLiteStore{DB: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("[pixelstore] opened %s", path)
	return s, nil
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// PutPixel inserts or replaces a pixel group and its attributes.
func (s *SQLiteStore) PutPixel(ctx context.Context, p Pixel) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		return putPixel(ctx, tx, p)
	})
}

// ImportBatch writes every pixel and the batch record in one transaction,
// so a failure leaves the store unchanged.
func (s *SQLiteStore) ImportBatch(ctx context.Context, batchID, source string, pixels []Pixel) error {
	for _, p := range pixels {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		for _, p := range pixels {
			if err := putPixel(ctx, tx, p); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO import_batches (batch_id, source, pixel_count) VALUES (?, ?, ?)`,
			batchID, source, len(pixels))
		if err != nil {
			return fmt.Errorf("failed to record import batch %s: %w", batchID, err)
		}
		return nil
	})
}

func putPixel(ctx context.Context, tx *sql.Tx, p Pixel) error {
	blob, err := encodeSamples(p.Samples)
	if err != nil {
		return fmt.Errorf("pixel %d: failed to encode samples: %w", p.ID, err)
	}

	name := GroupName(p.ID)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pixel_groups (name, healpix_index, nside, nested, n_records, n_samples, width, clouds_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			healpix_index = excluded.healpix_index,
			nside         = excluded.nside,
			nested        = excluded.nested,
			n_records     = excluded.n_records,
			n_samples     = excluded.n_samples,
			width         = excluded.width,
			clouds_blob   = excluded.clouds_blob,
			written_at    = CURRENT_TIMESTAMP
	`, name, p.ID, p.Nside, boolToInt(p.Nested),
		p.Samples.Shape[0], p.Samples.Shape[1], p.Samples.Shape[2], blob)
	if err != nil {
		return fmt.Errorf("failed to write pixel %d: %w", p.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pixel_attributes WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to clear attributes of pixel %d: %w", p.ID, err)
	}
	for k, v := range p.Attributes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pixel_attributes (name, key, value) VALUES (?, ?, ?)`, name, k, v); err != nil {
			return fmt.Errorf("failed to write attribute %q of pixel %d: %w", k, p.ID, err)
		}
	}
	return nil
}

// ListPixels returns pixel IDs parsed from group names, in name order.
func (s *SQLiteStore) ListPixels(ctx context.Context) ([]int64, error) {
	rows, err := s.QueryContext(ctx, `SELECT name FROM pixel_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pixel groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan pixel group: %w", err)
		}
		if id, ok := ParseGroupName(name); ok {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// ReadPixelSamples loads and decodes the sample tensor of a pixel.
func (s *SQLiteStore) ReadPixelSamples(ctx context.Context, id int64) (*tensor.Tensor3, error) {
	var blob []byte
	err := s.QueryRowContext(ctx,
		`SELECT clouds_blob FROM pixel_groups WHERE name = ?`, GroupName(id)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPixelNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pixel %d: %w", id, err)
	}
	t, err := decodeSamples(blob)
	if err != nil {
		return nil, fmt.Errorf("pixel %d: %w", id, err)
	}
	return t, nil
}

// ReadAttribute returns a built-in column or an extra attribute.
func (s *SQLiteStore) ReadAttribute(ctx context.Context, id int64, name string) (float64, error) {
	group := GroupName(id)

	var nside, nested, index int64
	err := s.QueryRowContext(ctx,
		`SELECT nside, nested, healpix_index FROM pixel_groups WHERE name = ?`, group).
		Scan(&nside, &nested, &index)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", ErrPixelNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read pixel %d: %w", id, err)
	}

	switch name {
	case AttrNside:
		return float64(nside), nil
	case AttrNested:
		return float64(nested), nil
	case AttrHealpixIndex:
		return float64(index), nil
	}

	var v float64
	err = s.QueryRowContext(ctx,
		`SELECT value FROM pixel_attributes WHERE name = ? AND key = ?`, group, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("pixel %d: %w: %q", id, ErrAttributeNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read attribute %q of pixel %d: %w", name, id, err)
	}
	return v, nil
}

// PixelSummary describes a stored group without its samples.
type PixelSummary struct {
	ID        int64  `json:"id"`
	Nside     int64  `json:"nside"`
	Nested    bool   `json:"nested"`
	Records   int    `json:"records"`
	Samples   int    `json:"samples"`
	Width     int    `json:"width"`
	WrittenAt string `json:"written_at"`
}

// Summaries lists every pixel group with its shape metadata.
func (s *SQLiteStore) Summaries(ctx context.Context) ([]PixelSummary, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT name, nside, nested, n_records, n_samples, width, written_at
		FROM pixel_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pixel groups: %w", err)
	}
	defer rows.Close()

	var out []PixelSummary
	for rows.Next() {
		var (
			name   string
			nested int64
			ps     PixelSummary
		)
		if err := rows.Scan(&name, &ps.Nside, &nested, &ps.Records, &ps.Samples, &ps.Width, &ps.WrittenAt); err != nil {
			return nil, fmt.Errorf("failed to scan pixel group: %w", err)
		}
		id, ok := ParseGroupName(name)
		if !ok {
			continue
		}
		ps.ID = id
		ps.Nested = nested != 0
		out = append(out, ps)
	}
	return out, rows.Err()
}

// transaction executes fn within a database transaction.
func (s *SQLiteStore) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
