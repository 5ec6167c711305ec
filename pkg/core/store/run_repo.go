package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no stored run matches the lookup.
var ErrNotFound = errors.New("valuation run not found")

// Run is one persisted valuation. Report holds the serialized report so
// the store does not depend on the pipeline types.
type Run struct {
	ID        string          `json:"id"`
	Ticker    string          `json:"ticker"`
	CreatedAt time.Time       `json:"created_at"`
	Report    json.RawMessage `json:"report"`
}

// RunRepository persists valuation runs.
type RunRepository interface {
	Save(ctx context.Context, run *Run) error
	Load(ctx context.Context, id string) (*Run, error)
	Latest(ctx context.Context, ticker string) (*Run, error)
}

// PGRepo stores runs in a single JSONB table.
type PGRepo struct {
	pool *pgxpool.Pool
}

// NewPGRepo creates a repository over an initialized pool.
func NewPGRepo(pool *pgxpool.Pool) *PGRepo {
	return &PGRepo{pool: pool}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS valuation_runs (
		id TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		report_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS valuation_runs_ticker_idx ON valuation_runs (ticker, created_at DESC);
`

// EnsureSchema creates the runs table if it does not exist.
func (r *PGRepo) EnsureSchema(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save upserts the run by ID.
func (r *PGRepo) Save(ctx context.Context, run *Run) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	query := `
		INSERT INTO valuation_runs (id, ticker, report_json, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			ticker = EXCLUDED.ticker,
			report_json = EXCLUDED.report_json,
			created_at = EXCLUDED.created_at;
	`
	if _, err := r.pool.Exec(ctx, query, run.ID, run.Ticker, []byte(run.Report), run.CreatedAt); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a run by ID.
func (r *PGRepo) Load(ctx context.Context, id string) (*Run, error) {
	return r.queryOne(ctx, `SELECT id, ticker, report_json, created_at FROM valuation_runs WHERE id = $1`, id)
}

// Latest retrieves the most recent run for a ticker.
func (r *PGRepo) Latest(ctx context.Context, ticker string) (*Run, error) {
	return r.queryOne(ctx, `
		SELECT id, ticker, report_json, created_at
		FROM valuation_runs
		WHERE ticker = $1
		ORDER BY created_at DESC
		LIMIT 1`, ticker)
}

func (r *PGRepo) queryOne(ctx context.Context, query string, arg string) (*Run, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	var (
		run  Run
		data []byte
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(&run.ID, &run.Ticker, &data, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Report = data
	return &run, nil
}
