package storage

import "github.com/eshaffer321/summons-reconcile/internal/domain/ledger"

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory)
// and makes testing with mocks straightforward.
type Repository interface {
	RunRepository
	Close() error
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// StartRun records the start of a run. run.ID must be set by the caller.
	StartRun(run *Run) error

	// CompleteRun marks a run completed and stores its per-target results
	CompleteRun(runID string, results []ledger.MatchResult) error

	// FailRun marks a run failed or cancelled with a message
	FailRun(runID string, status string, message string) error

	// GetRun retrieves a run by ID. Returns ErrRunNotFound when absent.
	GetRun(runID string) (*Run, error)

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]Run, error)

	// GetResults returns the stored results of a run in target order
	GetResults(runID string) ([]ledger.MatchResult, error)
}
