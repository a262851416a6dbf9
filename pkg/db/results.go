// Package db records runs in a sqlite results file. The pipeline writes
// through ResultsDB as a sink; Regions, WindowCounts and Stats are the read
// side for anything querying a results file afterwards.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/yumyai/regionfinder/logger"
	"github.com/yumyai/regionfinder/pkg/model"
)

var ErrNoRun = errors.New("no run started on results database")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	started_at   TEXT NOT NULL,
	input        TEXT NOT NULL,
	input_blake3 TEXT,
	mode         TEXT NOT NULL,
	assembly     TEXT NOT NULL,
	window_size  INTEGER NOT NULL,
	shift        INTEGER NOT NULL,
	max_cov      REAL NOT NULL,
	min_cov      REAL,
	var          REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS windows (
	run_id        TEXT NOT NULL,
	contig        TEXT NOT NULL,
	win_start     INTEGER NOT NULL,
	win_mid       REAL NOT NULL,
	win_end       INTEGER NOT NULL,
	mean_coverage REAL NOT NULL,
	mean_variant  REAL NOT NULL,
	passing       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS regions (
	run_id       TEXT NOT NULL,
	contig       TEXT NOT NULL,
	region_start INTEGER NOT NULL,
	region_end   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS stats (
	run_id          TEXT NOT NULL,
	contig          TEXT NOT NULL,
	length          INTEGER NOT NULL,
	window_size     INTEGER NOT NULL,
	shift           INTEGER NOT NULL,
	max_cov         REAL NOT NULL,
	cov_t_max       REAL NOT NULL,
	cov_t_min       REAL,
	var             REAL NOT NULL,
	var_t           REAL NOT NULL,
	covered_bases   INTEGER NOT NULL,
	percent_covered REAL NOT NULL,
	passing_windows INTEGER NOT NULL,
	regions         INTEGER NOT NULL,
	PRIMARY KEY (run_id, contig)
);
CREATE INDEX IF NOT EXISTS windows_run_contig ON windows (run_id, contig);
CREATE INDEX IF NOT EXISTS regions_run_contig ON regions (run_id, contig);
`

// ResultsDB mirrors the report files into a sqlite database. Rows of every
// run are kept and keyed by run id.
type ResultsDB struct {
	sql   *sql.DB
	runID string
}

// Open opens (or creates) the sqlite file at path and applies the schema.
func Open(path string) (*ResultsDB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db %s: %w", path, err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply results schema: %w", err)
	}
	return &ResultsDB{sql: conn}, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// BeginRun records the run and makes it the target of later WriteContig calls.
func (r *ResultsDB) BeginRun(ctx context.Context, run model.Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	var minCov any
	if run.Params.Mode == model.ModeConserved {
		minCov = run.Params.MinCovFraction
	}
	_, err := r.sql.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, input, input_blake3, mode, assembly, window_size, shift, max_cov, min_cov, var)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339), run.Input, run.InputDigest,
		string(run.Params.Mode), string(run.Assembly), run.Params.WindowSize, run.Params.Shift,
		run.Params.MaxCovFraction, minCov, run.Params.VarFraction,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	r.runID = run.ID
	logger.Info("Results database run started", zap.String("run_id", run.ID))
	return nil
}

func (r *ResultsDB) RunID() string {
	return r.runID
}

// WriteContig stores one contig's windows, regions and stats in a single
// transaction. Cancelling ctx rolls the contig back.
func (r *ResultsDB) WriteContig(ctx context.Context, res *model.ContigResult) error {
	if r.runID == "" {
		return ErrNoRun
	}

	tx, err := r.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fail to begin tx %w", err)
	}
	defer tx.Rollback()

	if err := r.insertWindows(ctx, tx, res); err != nil {
		return err
	}
	if err := r.insertRegions(ctx, tx, res); err != nil {
		return err
	}
	if err := r.insertStats(ctx, tx, res.Stats); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contig %s: %w", res.Contig, err)
	}
	return nil
}

func (r *ResultsDB) insertWindows(ctx context.Context, tx *sql.Tx, res *model.ContigResult) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO windows (run_id, contig, win_start, win_mid, win_end, mean_coverage, mean_variant, passing)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare windows insert: %w", err)
	}
	defer stmt.Close()

	// Passing is an ordered subset of Windows, walk both together.
	next := 0
	for _, w := range res.Windows {
		passing := 0
		if next < len(res.Passing) && res.Passing[next] == w {
			passing = 1
			next++
		}
		if _, err := stmt.ExecContext(ctx, r.runID, res.Contig, w.Start, w.Mid, w.End, w.MeanCoverage, w.MeanVariant, passing); err != nil {
			return fmt.Errorf("insert window %s:%d: %w", res.Contig, w.Start, err)
		}
	}
	return nil
}

func (r *ResultsDB) insertRegions(ctx context.Context, tx *sql.Tx, res *model.ContigResult) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO regions (run_id, contig, region_start, region_end) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare regions insert: %w", err)
	}
	defer stmt.Close()

	for _, reg := range res.Regions {
		if _, err := stmt.ExecContext(ctx, r.runID, res.Contig, reg.Start, reg.End); err != nil {
			return fmt.Errorf("insert region %s:%d-%d: %w", res.Contig, reg.Start, reg.End, err)
		}
	}
	return nil
}

func (r *ResultsDB) insertStats(ctx context.Context, tx *sql.Tx, s model.Stats) error {
	var covMin any
	if s.Thresholds.CovMin != nil {
		covMin = *s.Thresholds.CovMin
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO stats (run_id, contig, length, window_size, shift, max_cov, cov_t_max, cov_t_min, var, var_t,
		                    covered_bases, percent_covered, passing_windows, regions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, s.Contig, s.Length, s.WindowSize, s.Shift, s.MaxCovFraction, s.Thresholds.CovMax, covMin,
		s.VarFraction, s.Thresholds.VarThreshold, s.CoveredBases, s.PercentCovered, s.PassingWindows, s.Regions,
	)
	if err != nil {
		return fmt.Errorf("insert stats %s: %w", s.Contig, err)
	}
	return nil
}

// Query side.

// Regions reads back the merged regions of one contig for a run.
func (r *ResultsDB) Regions(ctx context.Context, runID, contig string) ([]model.Region, error) {
	rows, err := r.sql.QueryContext(ctx,
		`SELECT region_start, region_end FROM regions WHERE run_id = ? AND contig = ? ORDER BY rowid`,
		runID, contig)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var reg model.Region
		if err := rows.Scan(&reg.Start, &reg.End); err != nil {
			return nil, fmt.Errorf("failed to scan region row: %w", err)
		}
		regions = append(regions, reg)
	}
	return regions, rows.Err()
}

// WindowCounts returns how many windows, and how many passing windows, a
// contig has in a run.
func (r *ResultsDB) WindowCounts(ctx context.Context, runID, contig string) (total, passing int, err error) {
	err = r.sql.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(passing), 0) FROM windows WHERE run_id = ? AND contig = ?`,
		runID, contig).Scan(&total, &passing)
	if err != nil {
		return 0, 0, fmt.Errorf("count windows: %w", err)
	}
	return total, passing, nil
}

// Stats reads back the stats row of one contig for a run.
func (r *ResultsDB) Stats(ctx context.Context, runID, contig string) (model.Stats, error) {
	s := model.Stats{Contig: contig}
	var covMin sql.NullFloat64
	err := r.sql.QueryRowContext(ctx,
		`SELECT length, window_size, shift, max_cov, cov_t_max, cov_t_min, var, var_t,
		        covered_bases, percent_covered, passing_windows, regions
		 FROM stats WHERE run_id = ? AND contig = ?`, runID, contig,
	).Scan(&s.Length, &s.WindowSize, &s.Shift, &s.MaxCovFraction, &s.Thresholds.CovMax, &covMin,
		&s.VarFraction, &s.Thresholds.VarThreshold, &s.CoveredBases, &s.PercentCovered, &s.PassingWindows, &s.Regions)
	if err != nil {
		return model.Stats{}, fmt.Errorf("query stats %s: %w", contig, err)
	}
	if covMin.Valid {
		s.Thresholds.CovMin = &covMin.Float64
	}
	return s, nil
}

func (r *ResultsDB) Close() error {
	return r.sql.Close()
}
