// Package export writes the result of a finished run to PostgreSQL.
//
// The engine never reads exported rows back; each run is self-contained.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fredo838/sparp/pool"
)

const defaultBatchSize = 500

// Row categories.
const (
	CategorySuccess          = "success"
	CategoryFailed           = "failed"
	CategorySoftExhausted    = "soft_exhausted"
	CategoryTimeoutExhausted = "timeout_exhausted"
	CategoryStats            = "stats"
)

// Row is one exported record.
type Row struct {
	Category string
	Payload  json.RawMessage
}

// Rows flattens a result into rows: one per collected value or item, plus a
// final stats row.
func Rows[T, R any](res pool.Result[T, R]) ([]Row, error) {
	rows := make([]Row, 0, len(res.Success)+len(res.Failed)+len(res.SoftExhausted)+len(res.TimeoutExhausted)+1)

	add := func(category string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s row: %w", category, err)
		}
		rows = append(rows, Row{Category: category, Payload: b})
		return nil
	}

	for _, v := range res.Success {
		if err := add(CategorySuccess, v); err != nil {
			return nil, err
		}
	}
	for _, v := range res.Failed {
		if err := add(CategoryFailed, v); err != nil {
			return nil, err
		}
	}
	for _, it := range res.SoftExhausted {
		if err := add(CategorySoftExhausted, it); err != nil {
			return nil, err
		}
	}
	for _, it := range res.TimeoutExhausted {
		if err := add(CategoryTimeoutExhausted, it); err != nil {
			return nil, err
		}
	}
	if err := add(CategoryStats, res.Stats); err != nil {
		return nil, err
	}
	return rows, nil
}

// DB is the subset of *pgxpool.Pool the exporter needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresExporter inserts rows into one table in batches.
type PostgresExporter struct {
	db        DB
	table     string
	batchSize int
	now       func() time.Time
}

// NewPostgresExporter targets table (optionally schema-qualified as
// "schema.table"). A batchSize <= 0 selects the default of 500.
func NewPostgresExporter(db DB, schema, table string, batchSize int) (*PostgresExporter, error) {
	if db == nil {
		return nil, errors.New("export: nil database")
	}
	if table == "" {
		return nil, errors.New("export: empty table name")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	ident := pgx.Identifier{table}
	if schema != "" {
		ident = pgx.Identifier{schema, table}
	}

	return &PostgresExporter{
		db:        db,
		table:     ident.Sanitize(),
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

// EnsureTable creates the target table when it does not exist.
func (e *PostgresExporter) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id         bigserial PRIMARY KEY,
  run_id     text        NOT NULL,
  category   text        NOT NULL,
  payload    jsonb       NOT NULL,
  created_at timestamptz NOT NULL
)`, e.table)

	if _, err := e.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("export: create table: %w", err)
	}
	return nil
}

// Export inserts rows tagged with runID and returns how many were written.
func (e *PostgresExporter) Export(ctx context.Context, runID string, rows []Row) (int, error) {
	q := fmt.Sprintf(`INSERT INTO %s (run_id, category, payload, created_at) VALUES ($1, $2, $3, $4)`, e.table)
	createdAt := e.now().UTC()

	total := 0
	for start := 0; start < len(rows); start += e.batchSize {
		end := min(start+e.batchSize, len(rows))

		b := &pgx.Batch{}
		for _, r := range rows[start:end] {
			b.Queue(q, runID, r.Category, r.Payload, createdAt)
		}

		br := e.db.SendBatch(ctx, b)
		for k := start; k < end; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, fmt.Errorf("export: insert row %d: %w", k, err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, fmt.Errorf("export: close batch: %w", err)
		}
	}
	return total, nil
}

// Connect opens a pool for dsn and checks it with a ping.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("export: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("export: connect: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("export: ping: %w", err)
	}
	return p, nil
}
