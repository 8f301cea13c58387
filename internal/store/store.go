package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnconfigured is returned when no database URL is available.
var ErrUnconfigured = errors.New("store: database url not configured")

// Substrate is the tabular persistence boundary. A range is an ordered list
// of rows of string cells. There is no row identity and no transaction
// spanning more than one call, so read-modify-write sequences built on top of
// it can interleave with other writers.
type Substrate interface {
	// Get returns every row of the range in storage order.
	Get(ctx context.Context, rng string) ([][]string, error)
	// Append adds rows at the end of the range, all or nothing, and returns
	// the 1-based position of the first appended row.
	Append(ctx context.Context, rng string, rows [][]string) (int, error)
	// Update overwrites rows positionally starting at the first row and
	// extends the range when rows outnumber the existing ones.
	Update(ctx context.Context, rng string, rows [][]string) error
	// Clear removes every row of the range.
	Clear(ctx context.Context, rng string) error
}

// Store is the PostgreSQL-backed Substrate. Rows keep an internal position
// column for ordering only; it is never exposed to callers.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, ErrUnconfigured
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS sheet_ranges (
	name       TEXT PRIMARY KEY,
	columns    TEXT[] NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sheet_rows (
	range_name TEXT NOT NULL,
	position   BIGSERIAL,
	cells      TEXT[] NOT NULL,
	PRIMARY KEY (range_name, position)
);`

// Migrate creates the range tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, rng string) ([][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cells FROM sheet_rows
		WHERE range_name = $1
		ORDER BY position`, rng)
	if err != nil {
		return nil, fmt.Errorf("query range %s: %w", rng, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("scan range %s: %w", rng, err)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range %s: %w", rng, err)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, rng string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var first int64
	for i, cells := range rows {
		var pos int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO sheet_rows (range_name, cells) VALUES ($1, $2)
			RETURNING position`,
			rng, cells,
		).Scan(&pos); err != nil {
			return 0, fmt.Errorf("append to %s: %w", rng, err)
		}
		if i == 0 {
			first = pos
		}
	}

	// The row's 1-based index is the number of rows at or before it.
	var index int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM sheet_rows
		WHERE range_name = $1 AND position <= $2`, rng, first).Scan(&index); err != nil {
		return 0, fmt.Errorf("count %s: %w", rng, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return index, nil
}

func (s *Store) Update(ctx context.Context, rng string, rows [][]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := tx.Query(ctx, `
		SELECT position FROM sheet_rows
		WHERE range_name = $1
		ORDER BY position`, rng)
	if err != nil {
		return fmt.Errorf("query positions %s: %w", rng, err)
	}
	var positions []int64
	for existing.Next() {
		var p int64
		if err := existing.Scan(&p); err != nil {
			existing.Close()
			return fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	existing.Close()
	if err := existing.Err(); err != nil {
		return fmt.Errorf("iterate positions %s: %w", rng, err)
	}

	for i, cells := range rows {
		if i < len(positions) {
			_, err = tx.Exec(ctx, `
				UPDATE sheet_rows SET cells = $1
				WHERE range_name = $2 AND position = $3`,
				cells, rng, positions[i],
			)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO sheet_rows (range_name, cells) VALUES ($1, $2)`,
				rng, cells,
			)
		}
		if err != nil {
			return fmt.Errorf("update %s row %d: %w", rng, i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, rng string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sheet_rows WHERE range_name = $1`, rng); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// EnsureRange registers a range with its column labels. It reports whether
// the range was created by this call.
func (s *Store) EnsureRange(ctx context.Context, name string, columns []string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sheet_ranges (name, columns) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`,
		name, columns,
	)
	if err != nil {
		return false, fmt.Errorf("ensure range %s: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}
