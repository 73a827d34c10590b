package storage

import (
	"errors"
	"time"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ErrRunNotFound is returned when a run ID does not exist
var ErrRunNotFound = errors.New("run not found")

// ErrInvalidStatus is returned when FailRun gets a status other than failed or cancelled
var ErrInvalidStatus = errors.New("invalid terminal status")

// defaultListLimit caps ListRuns when limit is not positive
const defaultListLimit = 50

// Run represents a reconciliation run record
type Run struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	TargetCount    int        `json:"target_count"`
	PoolCount      int        `json:"pool_count"`
	MatchedCount   int        `json:"matched_count"`
	UnmatchedCount int        `json:"unmatched_count"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func isTerminalFailure(status string) bool {
	return status == StatusFailed || status == StatusCancelled
}
