package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	mu      sync.Mutex
	runs    map[string]*Run
	results map[string][]ledger.MatchResult

	// Hooks for test assertions
	StartRunCalled    bool
	CompleteRunCalled bool
	FailRunCalled     bool
	LastFailStatus    string

	// Error injection for testing error paths
	StartRunErr    error
	CompleteRunErr error
	FailRunErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:    make(map[string]*Run),
		results: make(map[string][]ledger.MatchResult),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

func (m *MockRepository) StartRun(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = StatusRunning
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *MockRepository) CompleteRun(runID string, results []ledger.MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteRunCalled = true
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	run, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}

	matched := 0
	for _, r := range results {
		if r.Matched() {
			matched++
		}
	}
	now := time.Now().UTC()
	run.Status = StatusCompleted
	run.MatchedCount = matched
	run.UnmatchedCount = len(results) - matched
	run.CompletedAt = &now
	m.results[runID] = append([]ledger.MatchResult(nil), results...)
	return nil
}

func (m *MockRepository) FailRun(runID string, status string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FailRunCalled = true
	m.LastFailStatus = status
	if m.FailRunErr != nil {
		return m.FailRunErr
	}
	if !isTerminalFailure(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	run, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}

	now := time.Now().UTC()
	run.Status = status
	run.ErrorMessage = message
	run.CompletedAt = &now
	return nil
}

func (m *MockRepository) GetRun(runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (m *MockRepository) ListRuns(limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = defaultListLimit
	}

	runs := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MockRepository) GetResults(runID string) ([]ledger.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	return append([]ledger.MatchResult{}, m.results[runID]...), nil
}

func (m *MockRepository) Close() error {
	return nil
}
