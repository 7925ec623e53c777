package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredo838/sparp/pool"
)

type fakeDB struct {
	execs   []string
	batches []*pgx.Batch
	failAt  int // row index in the whole export, -1 for never
	sent    int
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b)
	return &fakeBatchResults{db: f}
}

type fakeBatchResults struct {
	db *fakeDB
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	idx := r.db.sent
	r.db.sent++
	if idx == r.db.failAt {
		return pgconn.CommandTag{}, errors.New("duplicate key")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

func sampleResult() pool.Result[string, map[string]int] {
	return pool.Result[string, map[string]int]{
		Success:          []map[string]int{{"a": 1}, {"b": 2}},
		Failed:           []map[string]int{{"c": 3}},
		SoftExhausted:    []string{"soft"},
		TimeoutExhausted: []string{"slow"},
		Stats:            pool.Stats{Success: 2, Failed: 1, SoftExhausted: 1, TimeoutExhausted: 1, Seen: 5},
	}
}

func TestRows(t *testing.T) {
	rows, err := Rows(sampleResult())
	require.NoError(t, err)
	require.Len(t, rows, 6)

	var cats []string
	for _, r := range rows {
		cats = append(cats, r.Category)
	}
	assert.Equal(t, []string{"success", "success", "failed", "soft_exhausted", "timeout_exhausted", "stats"}, cats)
	assert.JSONEq(t, `{"a":1}`, string(rows[0].Payload))
	assert.JSONEq(t, `"slow"`, string(rows[4].Payload))

	var stats pool.Stats
	require.NoError(t, json.Unmarshal(rows[5].Payload, &stats))
	assert.Equal(t, int64(5), stats.Seen)
}

func TestRows_EncodeError(t *testing.T) {
	_, err := Rows(pool.Result[int, func()]{Success: []func(){func() {}}})
	require.ErrorContains(t, err, "encode success row")
}

func TestPostgresExporter_Batches(t *testing.T) {
	db := &fakeDB{failAt: -1}
	exp, err := NewPostgresExporter(db, "audit", "sparp_results", 4)
	require.NoError(t, err)
	exp.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, exp.EnsureTable(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], `CREATE TABLE IF NOT EXISTS "audit"."sparp_results"`)

	rows, err := Rows(sampleResult())
	require.NoError(t, err)

	n, err := exp.Export(context.Background(), "run-1", rows)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	require.Len(t, db.batches, 2)
	assert.Equal(t, 4, db.batches[0].Len())
	assert.Equal(t, 2, db.batches[1].Len())

	first := db.batches[0].QueuedQueries[0]
	assert.Contains(t, first.SQL, `INSERT INTO "audit"."sparp_results"`)
	assert.Equal(t, "run-1", first.Arguments[0])
	assert.Equal(t, "success", first.Arguments[1])
}

func TestPostgresExporter_StopsOnError(t *testing.T) {
	db := &fakeDB{failAt: 2}
	exp, err := NewPostgresExporter(db, "", "results", 10)
	require.NoError(t, err)

	rows, err := Rows(sampleResult())
	require.NoError(t, err)

	n, err := exp.Export(context.Background(), "run-2", rows)
	require.ErrorContains(t, err, "insert row 2")
	assert.Equal(t, 2, n)
}

func TestNewPostgresExporter_Validation(t *testing.T) {
	_, err := NewPostgresExporter(nil, "", "t", 1)
	require.Error(t, err)

	_, err = NewPostgresExporter(&fakeDB{}, "", "", 1)
	require.Error(t, err)

	exp, err := NewPostgresExporter(&fakeDB{}, "", "t", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, exp.batchSize)
}

// TestPostgresExporter_Integration runs against a real database when
// SPARP_PG_DSN is set.
func TestPostgresExporter_Integration(t *testing.T) {
	dsn := os.Getenv("SPARP_PG_DSN")
	if dsn == "" {
		t.Skip("SPARP_PG_DSN not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn, 2)
	require.NoError(t, err)
	defer db.Close()

	exp, err := NewPostgresExporter(db, "", "sparp_results_test", 2)
	require.NoError(t, err)
	require.NoError(t, exp.EnsureTable(ctx))

	rows, err := Rows(sampleResult())
	require.NoError(t, err)

	runID := "it-" + time.Now().Format("20060102150405.000000000")
	n, err := exp.Export(ctx, runID, rows)
	require.NoError(t, err)
	assert.Equal(t, len(rows), n)

	var count int
	require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM sparp_results_test WHERE run_id = $1`, runID).Scan(&count))
	assert.Equal(t, len(rows), count)
}
