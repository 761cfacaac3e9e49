// Package catalog records every model run in a SQLite database and in the plain-text
// batch report.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	errorsmod "cosmossdk.io/errors"
	_ "modernc.org/sqlite"

	"github.com/oxygene76/reflectx/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	directory TEXT NOT NULL,
	grid TEXT,
	planet_type TEXT,
	teq REAL,
	phase REAL,
	status TEXT NOT NULL,
	error TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_directory ON runs(directory);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// Catalog is the run database
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path. ":memory:" gives a private
// in-memory catalog.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "opening catalog %s", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errorsmod.Wrap(err, "creating runs table")
	}
	return &Catalog{db: db}, nil
}

// Close releases the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record inserts or replaces a run
func (c *Catalog) Record(ctx context.Context, r types.RunRecord) error {
	var finished interface{}
	if !r.FinishedAt.IsZero() {
		finished = r.FinishedAt.UTC()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, directory, grid, planet_type, teq, phase, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		r.RunID, r.Directory, r.Grid, r.PlanetType, r.Teq, r.Phase,
		string(r.Status), r.Error, r.StartedAt.UTC(), finished)
	if err != nil {
		return errorsmod.Wrapf(err, "recording run %s", r.RunID)
	}
	return nil
}

// Get returns one run by ID
func (c *Catalog) Get(ctx context.Context, runID string) (*types.RunRecord, error) {
	row := c.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errorsmod.Wrapf(types.ErrArtifactNotFound, "run %s", runID)
	}
	return r, err
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Directory string
	Grid      string
	Status    types.RunStatus
	Limit     int
}

// List returns runs, newest first
func (c *Catalog) List(ctx context.Context, f Filter) ([]types.RunRecord, error) {
	query := selectRuns + ` WHERE (? = '' OR directory = ?) AND (? = '' OR grid = ?) AND (? = '' OR status = ?)
		ORDER BY started_at DESC, run_id`
	args := []interface{}{f.Directory, f.Directory, f.Grid, f.Grid, string(f.Status), string(f.Status)}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errorsmod.Wrap(err, "listing runs")
	}
	defer rows.Close()

	var out []types.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const selectRuns = `SELECT run_id, directory, grid, planet_type, teq, phase, status, error, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*types.RunRecord, error) {
	var (
		r        types.RunRecord
		status   string
		grid     sql.NullString
		ptype    sql.NullString
		errText  sql.NullString
		teq      sql.NullFloat64
		phase    sql.NullFloat64
		finished sql.NullTime
	)
	if err := s.Scan(&r.RunID, &r.Directory, &grid, &ptype, &teq, &phase, &status, &errText, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	r.Grid = grid.String
	r.PlanetType = ptype.String
	r.Teq = teq.Float64
	r.Phase = phase.Float64
	r.Status = types.RunStatus(status)
	r.Error = errText.String
	if finished.Valid {
		r.FinishedAt = finished.Time.UTC()
	}
	r.StartedAt = r.StartedAt.UTC()
	return &r, nil
}
