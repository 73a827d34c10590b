// Package worker runs a Calculator off the caller's path, relays progress through
// a FIFO queue and delivers exactly one terminal event per run.
//
// State machine:
//
//	Idle -> Running -> (Completed | Failed | Cancelled) -> Idle
//
// The caller never blocks on the worker. It polls IsRunning and UpdateStatus,
// typically from a ticker:
//
//	c := worker.NewCoordinator(logger)
//	err := c.Start(calc, targets, pool, onComplete, onError, time.Second)
//	for c.IsRunning() {
//		if p, ok := c.UpdateStatus(); ok {
//			fmt.Printf("%.1f%%\n", p*100)
//		}
//	}
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eshaffer321/summons-reconcile/internal/domain/allocator"
	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
	"github.com/eshaffer321/summons-reconcile/internal/domain/progress"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is outstanding.
	ErrAlreadyRunning = errors.New("calculation already running")

	// ErrTerminated is returned by Start after Terminate.
	ErrTerminated = errors.New("coordinator terminated")

	// ErrPanic marks a worker failure caused by a panic inside the calculator.
	ErrPanic = errors.New("calculator panicked")

	// ErrResultCount marks a calculator that broke the one-result-per-target contract.
	ErrResultCount = errors.New("calculator returned wrong number of results")
)

// State is the coordinator's resting state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Outcome is the terminal state a run passed through before returning to Idle.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Failure wraps any error raised inside the worker.
type Failure struct {
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("worker failure: %v", f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// CompleteFunc receives the full result list of a successful run.
type CompleteFunc func(results []ledger.MatchResult)

// ErrorFunc receives the cause of a failed run.
type ErrorFunc func(err error)

// Coordinator owns at most one worker at a time.
type Coordinator struct {
	logger *slog.Logger

	mu         sync.Mutex
	queue      *Queue
	generation uint64
	running    bool
	delivering bool
	terminated bool
	cancel     context.CancelFunc
	outcome    Outcome
}

// NewCoordinator creates an idle coordinator. A nil logger uses slog.Default().
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger: logger,
		queue:  NewQueue(),
	}
}

// Start spawns a worker running calc over private copies of targets and pool.
// Progress is throttled to at most one value per interval. Exactly one of
// onComplete or onError fires, unless the run is stopped first. Either
// callback may be nil.
func (c *Coordinator) Start(
	calc allocator.Calculator,
	targets, pool []ledger.Record,
	onComplete CompleteFunc,
	onError ErrorFunc,
	interval time.Duration,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return ErrTerminated
	}
	if c.running {
		return ErrAlreadyRunning
	}

	c.generation++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	c.delivering = false
	c.outcome = OutcomeNone

	r := &run{
		generation: c.generation,
		queue:      c.queue,
		calc:       calc,
		targets:    ledger.Clone(targets),
		pool:       ledger.Clone(pool),
		onComplete: onComplete,
		onError:    onError,
		interval:   interval,
	}

	c.logger.Info("calculation started",
		"targets", len(targets),
		"pool", len(pool),
		"interval", interval,
	)

	go c.execute(ctx, r)
	return nil
}

// IsRunning reports whether a worker is outstanding and has not yet delivered
// its terminal event.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// State returns Running while a worker is outstanding, Idle otherwise.
func (c *Coordinator) State() State {
	if c.IsRunning() {
		return StateRunning
	}
	return StateIdle
}

// LastOutcome returns the terminal state of the most recent run, or
// OutcomeNone while a run is in progress or before the first run.
func (c *Coordinator) LastOutcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// UpdateStatus pops the oldest queued progress value without blocking.
// ok is false when no new value is available.
func (c *Coordinator) UpdateStatus() (fraction float64, ok bool) {
	c.mu.Lock()
	q := c.queue
	c.mu.Unlock()
	return q.Pop()
}

// Stop cancels the outstanding run, discards queued progress and any result
// not yet delivered, and resets the queue so the next Start begins fresh.
// Stop without a running worker is a no-op, and so is Stop once the worker has
// begun delivering its terminal event: that run finishes as completed or
// failed, and IsRunning stays true until its callback returns.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.delivering {
		return
	}
	c.abortLocked()
	c.logger.Info("calculation cancelled")
}

// Terminate releases the coordinator. Any outstanding run is stopped and
// further Start calls fail with ErrTerminated. Calling it twice is harmless.
func (c *Coordinator) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return
	}
	if c.running && !c.delivering {
		c.abortLocked()
	}
	c.terminated = true
	c.logger.Debug("coordinator terminated")
}

// abortLocked invalidates the current generation. Callers hold c.mu.
func (c *Coordinator) abortLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.running = false
	c.outcome = OutcomeCancelled
	c.queue = NewQueue()
}

// run is the self-contained input handed to one worker
type run struct {
	generation uint64
	queue      *Queue
	calc       allocator.Calculator
	targets    []ledger.Record
	pool       []ledger.Record
	onComplete CompleteFunc
	onError    ErrorFunc
	interval   time.Duration
}

// execute is the worker body
func (c *Coordinator) execute(ctx context.Context, r *run) {
	throttle := progress.NewThrottle(r.interval, r.queue.Push)
	results, err := calculate(ctx, r.calc, r.targets, r.pool, throttle.Report)
	if err == nil && len(results) != len(r.targets) {
		err = fmt.Errorf("%w: got %d, want %d", ErrResultCount, len(results), len(r.targets))
	}

	// A stopped run never delivers. Once claimed, Stop can no longer cancel it.
	if !c.claimDelivery(r.generation) {
		return
	}

	outcome := OutcomeCompleted
	if err != nil {
		outcome = OutcomeFailed
		failure := &Failure{Cause: err}
		c.logger.Error("calculation failed", "error", err)
		if r.onError != nil {
			r.onError(failure)
		}
	} else {
		c.logger.Info("calculation completed", "results", len(results))
		if r.onComplete != nil {
			r.onComplete(results)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != r.generation {
		return
	}
	c.running = false
	c.delivering = false
	c.outcome = outcome
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// claimDelivery marks the run as delivering if it is still the current one.
func (c *Coordinator) claimDelivery(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.generation != generation {
		return false
	}
	c.delivering = true
	return true
}

// calculate converts a calculator panic into an error at the worker boundary
func calculate(
	ctx context.Context,
	calc allocator.Calculator,
	targets, pool []ledger.Record,
	sink progress.Sink,
) (results []ledger.MatchResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			results = nil
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return calc.Calculate(ctx, targets, pool, sink)
}
