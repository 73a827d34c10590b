package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/summons-reconcile/internal/application/worker"
	"github.com/eshaffer321/summons-reconcile/internal/domain/allocator"
	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
	"github.com/eshaffer321/summons-reconcile/internal/domain/validator"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/storage"
	"github.com/eshaffer321/summons-reconcile/internal/observability"
)

var (
	// ErrJobRunning is returned when a job is started while another is active
	ErrJobRunning = errors.New("reconciliation already running")

	// ErrNoActiveJob is returned when cancelling with nothing running
	ErrNoActiveJob = errors.New("no reconciliation running")

	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid request")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("service closed")

	// ErrInconsistentResults is the job error when results fail validation
	ErrInconsistentResults = errors.New("inconsistent results")
)

// JobRequest holds the records for one reconciliation.
type JobRequest struct {
	Source  string // "csv", "yaml", "api"
	Targets []ledger.Record
	Pool    []ledger.Record
}

// Job is a snapshot of the current or most recent reconciliation.
type Job struct {
	ID          string
	Source      string
	TargetCount int
	PoolCount   int
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    float64
	Outcome     worker.Outcome
	Error       error
	Results     []ledger.MatchResult

	targets []ledger.Record
	pool    []ledger.Record
}

// Matched returns how many targets found a subset.
func (j *Job) Matched() int {
	n := 0
	for _, r := range j.Results {
		if r.Matched() {
			n++
		}
	}
	return n
}

// JobStatus is what Status reports.
type JobStatus struct {
	JobID     string
	State     worker.State
	Progress  float64
	StartedAt *time.Time
	Outcome   worker.Outcome
	Error     string
}

// ReconcileService runs one reconciliation at a time in the background and
// records every run in storage.
type ReconcileService struct {
	cfg         config.MatchingConfig
	coordinator *worker.Coordinator
	calculator  allocator.Calculator
	storage     storage.Repository
	metrics     *observability.Metrics
	logger      *slog.Logger

	mu     sync.Mutex
	job    *Job
	closed bool
}

// NewReconcileService creates a service. metrics may be nil.
func NewReconcileService(
	cfg config.MatchingConfig,
	store storage.Repository,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	calc := allocator.NewExact(cfg.SolverConfig(), logger).WithObserver(metrics)
	return NewReconcileServiceWithCalculator(cfg, calc, store, metrics, logger)
}

// NewReconcileServiceWithCalculator creates a service around a custom calculator.
func NewReconcileServiceWithCalculator(
	cfg config.MatchingConfig,
	calc allocator.Calculator,
	store storage.Repository,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{
		cfg:         cfg,
		coordinator: worker.NewCoordinator(logger),
		calculator:  calc,
		storage:     store,
		metrics:     metrics,
		logger:      logger,
	}
}

// StartJob validates the request, records a run and starts the calculation.
// The passed context only bounds the setup; the job itself runs until it
// finishes or Cancel is called.
func (s *ReconcileService) StartJob(ctx context.Context, req JobRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	targets, pool, err := prepare(req)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if s.coordinator.IsRunning() {
		return "", ErrJobRunning
	}

	job := &Job{
		ID:          uuid.NewString(),
		Source:      req.Source,
		TargetCount: len(targets),
		PoolCount:   len(pool),
		StartedAt:   time.Now(),
		targets:     targets,
		pool:        pool,
	}

	if s.storage != nil {
		err := s.storage.StartRun(&storage.Run{
			ID:          job.ID,
			Source:      job.Source,
			TargetCount: job.TargetCount,
			PoolCount:   job.PoolCount,
			StartedAt:   job.StartedAt,
		})
		if err != nil {
			return "", fmt.Errorf("failed to record run: %w", err)
		}
	}

	err = s.coordinator.Start(
		s.calculator,
		targets,
		pool,
		func(results []ledger.MatchResult) { s.complete(job.ID, results) },
		func(err error) { s.fail(job.ID, err) },
		s.cfg.ProgressInterval,
	)
	if err != nil {
		if s.storage != nil {
			_ = s.storage.FailRun(job.ID, storage.StatusFailed, err.Error())
		}
		if errors.Is(err, worker.ErrAlreadyRunning) {
			return "", ErrJobRunning
		}
		return "", err
	}

	s.job = job
	s.metrics.SetProgress(0)
	s.logger.Info("reconcile job started",
		"job_id", job.ID,
		"source", job.Source,
		"targets", job.TargetCount,
		"pool", job.PoolCount,
	)

	return job.ID, nil
}

// prepare validates and sorts private copies of the request records
func prepare(req JobRequest) ([]ledger.Record, []ledger.Record, error) {
	for i, r := range req.Targets {
		if err := r.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: target %d: %w", ErrInvalidRequest, i+1, err)
		}
	}
	for i, r := range req.Pool {
		if err := r.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: pool entry %d: %w", ErrInvalidRequest, i+1, err)
		}
	}

	targets := ledger.Clone(req.Targets)
	pool := ledger.Clone(req.Pool)
	ledger.Sort(targets)
	ledger.Sort(pool)
	return targets, pool, nil
}

// IsRunning reports whether a job is still calculating
func (s *ReconcileService) IsRunning() bool {
	return s.coordinator.IsRunning()
}

// Status drains queued progress and reports the current job. The latest
// queued value wins.
func (s *ReconcileService) Status() JobStatus {
	latest, seen := -1.0, false
	for {
		v, ok := s.coordinator.UpdateStatus()
		if !ok {
			break
		}
		latest, seen = v, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := JobStatus{State: s.coordinator.State()}
	if s.job == nil {
		return status
	}

	if seen && s.job.Outcome == worker.OutcomeNone && latest > s.job.Progress {
		s.job.Progress = latest
		s.metrics.SetProgress(latest)
	}

	startedAt := s.job.StartedAt
	status.JobID = s.job.ID
	status.Progress = s.job.Progress
	status.StartedAt = &startedAt
	status.Outcome = s.job.Outcome
	if s.job.Error != nil {
		status.Error = s.job.Error.Error()
	}
	return status
}

// LastJob returns a copy of the current or most recent job, or nil.
func (s *ReconcileService) LastJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil {
		return nil
	}
	job := *s.job
	job.Results = append([]ledger.MatchResult(nil), s.job.Results...)
	return &job
}

// Cancel stops the running job and records it as cancelled.
func (s *ReconcileService) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil || s.job.Outcome != worker.OutcomeNone {
		return ErrNoActiveJob
	}

	s.coordinator.Stop()
	s.finishLocked(worker.OutcomeCancelled, nil)

	if s.storage != nil {
		if err := s.storage.FailRun(s.job.ID, storage.StatusCancelled, "cancelled by user"); err != nil {
			s.logger.Warn("failed to record cancellation", "job_id", s.job.ID, "error", err)
		}
	}

	s.logger.Info("reconcile job cancelled", "job_id", s.job.ID)
	return nil
}

// Close terminates the coordinator. A running job is recorded as cancelled.
func (s *ReconcileService) Close() error {
	s.mu.Lock()
	active := s.job != nil && s.job.Outcome == worker.OutcomeNone
	s.closed = true
	s.mu.Unlock()

	if active {
		if err := s.Cancel(); err != nil && !errors.Is(err, ErrNoActiveJob) {
			return err
		}
	}
	s.coordinator.Terminate()
	return nil
}

// complete is the onComplete callback
func (s *ReconcileService) complete(jobID string, results []ledger.MatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isActiveLocked(jobID) {
		return
	}

	if v := validator.ValidateResults(s.job.targets, s.job.pool, results); !v.Valid {
		s.failLocked(jobID, fmt.Errorf("%w: %s", ErrInconsistentResults, v.Reason))
		return
	}

	s.job.Results = results
	s.job.Progress = 1
	s.finishLocked(worker.OutcomeCompleted, nil)

	if s.storage != nil {
		if err := s.storage.CompleteRun(jobID, results); err != nil {
			s.logger.Error("failed to store results", "job_id", jobID, "error", err)
		}
	}

	s.logger.Info("reconcile job completed",
		"job_id", jobID,
		"targets", len(results),
		"matched", s.job.Matched(),
		"elapsed", s.job.CompletedAt.Sub(s.job.StartedAt).Round(time.Millisecond),
	)
}

// fail is the onError callback
func (s *ReconcileService) fail(jobID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isActiveLocked(jobID) {
		return
	}
	s.failLocked(jobID, err)
}

func (s *ReconcileService) failLocked(jobID string, err error) {
	s.finishLocked(worker.OutcomeFailed, err)

	if s.storage != nil {
		if serr := s.storage.FailRun(jobID, storage.StatusFailed, err.Error()); serr != nil {
			s.logger.Error("failed to record failure", "job_id", jobID, "error", serr)
		}
	}

	s.logger.Error("reconcile job failed", "job_id", jobID, "error", err)
}

func (s *ReconcileService) isActiveLocked(jobID string) bool {
	return s.job != nil && s.job.ID == jobID && s.job.Outcome == worker.OutcomeNone
}

// finishLocked sets the terminal fields and records run metrics. Callers hold s.mu.
func (s *ReconcileService) finishLocked(outcome worker.Outcome, err error) {
	now := time.Now()
	s.job.Outcome = outcome
	s.job.Error = err
	s.job.CompletedAt = &now
	s.metrics.ObserveRun(string(outcome), now.Sub(s.job.StartedAt))
	s.metrics.SetProgress(s.job.Progress)
}
