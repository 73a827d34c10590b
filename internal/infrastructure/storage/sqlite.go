package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

const dateLayout = "2006-01-02"

// Storage provides SQLite database access for reconciliation runs.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// One connection keeps the PRAGMA below in effect for every query
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// StartRun inserts a run in the running state
func (s *Storage) StartRun(run *Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.Status = StatusRunning

	query := `
		INSERT INTO reconcile_runs (id, source, target_count, pool_count, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, run.ID, run.Source, run.TargetCount, run.PoolCount, run.Status, run.StartedAt)
	return err
}

// CompleteRun marks the run completed and stores one row per target
func (s *Storage) CompleteRun(runID string, results []ledger.MatchResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	matched := 0
	for _, result := range results {
		if result.Matched() {
			matched++
		}
	}

	res, err := tx.Exec(`
		UPDATE reconcile_runs
		SET status = ?, matched_count = ?, unmatched_count = ?, completed_at = ?
		WHERE id = ?
	`, StatusCompleted, matched, len(results)-matched, time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	for i, result := range results {
		subsetJSON, err := json.Marshal(result.Subset)
		if err != nil {
			return fmt.Errorf("failed to encode subset %d: %w", i, err)
		}

		_, err = tx.Exec(`
			INSERT INTO match_results
			(run_id, position, target_label, target_date, target_amount, matched, subset_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			i,
			result.Target.Label,
			result.Target.Date.Format(dateLayout),
			result.Target.Amount,
			result.Matched(),
			string(subsetJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to store result %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// FailRun marks the run failed or cancelled
func (s *Storage) FailRun(runID string, status string, message string) error {
	if !isTerminalFailure(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	res, err := s.db.Exec(`
		UPDATE reconcile_runs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`, status, message, time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID string) (*Run, error) {
	query := `
		SELECT id, source, target_count, pool_count, matched_count, unmatched_count,
		       status, error_message, started_at, completed_at
		FROM reconcile_runs WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRow(query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(`
		SELECT id, source, target_count, pool_count, matched_count, unmatched_count,
		       status, error_message, started_at, completed_at
		FROM reconcile_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetResults returns the stored results of a run in target order
func (s *Storage) GetResults(runID string) ([]ledger.MatchResult, error) {
	if _, err := s.GetRun(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT target_label, target_date, target_amount, matched, subset_json
		FROM match_results
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]ledger.MatchResult, 0)
	for rows.Next() {
		var (
			label, date, subsetJSON string
			amount                  int64
			matched                 bool
		)
		if err := rows.Scan(&label, &date, &amount, &matched, &subsetJSON); err != nil {
			return nil, err
		}

		targetDate, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid target date %q: %w", date, err)
		}

		result := ledger.MatchResult{Target: ledger.NewRecord(label, targetDate, amount)}
		if matched {
			if err := json.Unmarshal([]byte(subsetJSON), &result.Subset); err != nil {
				return nil, fmt.Errorf("invalid subset for %s: %w", label, err)
			}
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.TargetCount,
		&run.PoolCount,
		&run.MatchedCount,
		&run.UnmatchedCount,
		&run.Status,
		&run.ErrorMessage,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
