// Package store handles SQLite persistence of analysis runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/yiiprof/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrRunNotFound is returned by LoadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			created_at TEXT NOT NULL,
			inputs TEXT NOT NULL,
			isolate INTEGER NOT NULL,
			diagnostics TEXT NOT NULL,
			samples INTEGER NOT NULL,
			segments INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_segments (
			run_id INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			message TEXT NOT NULL,
			category TEXT NOT NULL,
			count INTEGER NOT NULL,
			total_ms REAL NOT NULL,
			min_ms REAL NOT NULL,
			max_ms REAL NOT NULL,
			PRIMARY KEY (run_id, rank)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a run and its ranked segments.
func (s *Store) InsertRun(ctx context.Context, run model.Run) (id int64, err error) {
	inputs, err := json.Marshal(run.Inputs)
	if err != nil {
		return 0, err
	}
	diag, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, inputs, isolate, diagnostics, samples, segments)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.CreatedAt.Format(time.RFC3339Nano),
		string(inputs),
		run.Isolate,
		string(diag),
		run.Diagnostics.Samples,
		len(run.Segments),
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(run.Segments) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO run_segments (run_id, rank, message, category, count, total_ms, min_ms, max_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, seg := range run.Segments {
			if _, err = stmt.ExecContext(ctx, id, seg.Rank, seg.Message, seg.Category, seg.Count, seg.TotalMs, seg.MinMs, seg.MaxMs); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	query := `SELECT id, created_at, inputs, isolate, samples, segments
		FROM runs
		ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunSummary
	for rows.Next() {
		var (
			sum       model.RunSummary
			createdAt string
			inputs    string
		)
		if err := rows.Scan(&sum.ID, &createdAt, &inputs, &sum.Isolate, &sum.Samples, &sum.Segments); err != nil {
			return nil, err
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(inputs), &sum.Inputs); err != nil {
			return nil, fmt.Errorf("failed to decode inputs of run %d: %w", sum.ID, err)
		}
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// LoadRun returns a run with its segments in stored rank order.
func (s *Store) LoadRun(ctx context.Context, id int64) (model.Run, error) {
	var (
		run       model.Run
		createdAt string
		inputs    string
		diag      string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, inputs, isolate, diagnostics FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &createdAt, &inputs, &run.Isolate, &diag)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return model.Run{}, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return model.Run{}, err
	}
	if err := json.Unmarshal([]byte(inputs), &run.Inputs); err != nil {
		return model.Run{}, fmt.Errorf("failed to decode inputs of run %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(diag), &run.Diagnostics); err != nil {
		return model.Run{}, fmt.Errorf("failed to decode diagnostics of run %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, message, category, count, total_ms, min_ms, max_ms
		FROM run_segments
		WHERE run_id = ?
		ORDER BY rank ASC`, id)
	if err != nil {
		return model.Run{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for rows.Next() {
		var seg model.Segment
		if err := rows.Scan(&seg.Rank, &seg.Message, &seg.Category, &seg.Count, &seg.TotalMs, &seg.MinMs, &seg.MaxMs); err != nil {
			return model.Run{}, err
		}
		if seg.Count > 0 {
			seg.AvgMs = seg.TotalMs / float64(seg.Count)
		}
		run.Segments = append(run.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return model.Run{}, err
	}
	return run, nil
}
