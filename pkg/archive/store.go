// Package archive persists completed generation runs to SQLite: the
// tweet text, the derived image prompt, the output filenames, and the
// full per-key record of madlib selections that produced them. It gives
// the pipeline a queryable history beyond the plain-text index file.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Run is one completed generation pipeline execution.
type Run struct {
	ID          int64
	CreatedAt   time.Time
	Tweet       string
	ImagePrompt string
	SummaryFile string
	ImageFile   string
	Selections  map[string][]string
}

// SetupSchema initializes the archive tables in the provided database.
// It is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaRuns = `
CREATE TABLE IF NOT EXISTS generation_runs (
    run_id INTEGER PRIMARY KEY,
    created_at TEXT NOT NULL,
    tweet TEXT NOT NULL,
    image_prompt TEXT NOT NULL,
    summary_file TEXT NOT NULL,
    image_file TEXT NOT NULL
);
`
		schemaSelections = `
CREATE TABLE IF NOT EXISTS run_selections (
    run_id INTEGER NOT NULL,
    madlib_key TEXT NOT NULL,
    position INTEGER NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (run_id, madlib_key, position)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaRuns); err != nil {
		return fmt.Errorf("could not create runs schema: %w", err)
	}
	if _, err = tx.Exec(schemaSelections); err != nil {
		return fmt.Errorf("could not create selections schema: %w", err)
	}
	return tx.Commit()
}

// Store provides access to the run archive. All methods are safe for
// concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmtInsertRun       *sql.Stmt
	stmtInsertSelection *sql.Stmt
	stmtRecentRuns      *sql.Stmt
	stmtRunSelections   *sql.Stmt
}

// NewStore prepares the archive statements against db. SetupSchema must
// have been called first.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}

	var err error
	if s.stmtInsertRun, err = db.Prepare(
		"INSERT INTO generation_runs (created_at, tweet, image_prompt, summary_file, image_file) VALUES (?, ?, ?, ?, ?)",
	); err != nil {
		return nil, fmt.Errorf("failed to prepare run insert: %w", err)
	}
	if s.stmtInsertSelection, err = db.Prepare(
		"INSERT INTO run_selections (run_id, madlib_key, position, value) VALUES (?, ?, ?, ?)",
	); err != nil {
		return nil, fmt.Errorf("failed to prepare selection insert: %w", err)
	}
	if s.stmtRecentRuns, err = db.Prepare(
		"SELECT run_id, created_at, tweet, image_prompt, summary_file, image_file FROM generation_runs ORDER BY run_id DESC LIMIT ?",
	); err != nil {
		return nil, fmt.Errorf("failed to prepare recent runs query: %w", err)
	}
	if s.stmtRunSelections, err = db.Prepare(
		"SELECT madlib_key, value FROM run_selections WHERE run_id = ? ORDER BY madlib_key, position",
	); err != nil {
		return nil, fmt.Errorf("failed to prepare selections query: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements. The database itself belongs to
// the caller and is left open.
func (s *Store) Close() {
	_ = s.stmtInsertRun.Close()
	_ = s.stmtInsertSelection.Close()
	_ = s.stmtRecentRuns.Close()
	_ = s.stmtRunSelections.Close()
}

// InsertRun records a completed run and its madlib selections in a
// single transaction, returning the new run ID.
func (s *Store) InsertRun(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction for run insert: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := tx.StmtContext(ctx, s.stmtInsertRun).ExecContext(ctx,
		createdAt.UTC().Format(time.RFC3339), run.Tweet, run.ImagePrompt,
		run.SummaryFile, run.ImageFile)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	insertSelection := tx.StmtContext(ctx, s.stmtInsertSelection)
	for key, values := range run.Selections {
		for position, value := range values {
			if _, err = insertSelection.ExecContext(ctx, runID, key, position, value); err != nil {
				return 0, fmt.Errorf("failed to insert selection %s[%d]: %w", key, position, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Generation run archived",
		slog.Int64("run_id", runID),
		slog.String("summary_file", run.SummaryFile),
		slog.String("image_file", run.ImageFile),
	)
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first, without their
// selection records. Use RunSelections to load those for a single run.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.stmtRecentRuns.QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt string
		if err = rows.Scan(&run.ID, &createdAt, &run.Tweet, &run.ImagePrompt,
			&run.SummaryFile, &run.ImageFile); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at for run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunSelections loads the madlib selections recorded for a run, keyed by
// madlib key with draws in their original order.
func (s *Store) RunSelections(ctx context.Context, runID int64) (map[string][]string, error) {
	rows, err := s.stmtRunSelections.QueryContext(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	selections := make(map[string][]string)
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		selections[key] = append(selections[key], value)
	}
	return selections, rows.Err()
}
