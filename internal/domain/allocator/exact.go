// Package allocator drives the solver across an ordered list of targets against
// one shared, shrinking pool.
//
// Consumption is destructive and sequential: records matched for a target are
// removed from the working pool before the next target is attempted, so the
// first target processed has first claim on any ambiguous match.
//
//	calc := allocator.NewExact(solver.DefaultConfig(), logger)
//	results, err := calc.Calculate(ctx, targets, pool, sink)
//	// len(results) == len(targets), in target order
package allocator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
	"github.com/eshaffer321/summons-reconcile/internal/domain/progress"
	"github.com/eshaffer321/summons-reconcile/internal/domain/solver"
)

// Calculator matches every target against a pool.
// Alternate engines (heuristic, optimal) implement the same contract.
type Calculator interface {
	Calculate(ctx context.Context, targets, pool []ledger.Record, sink progress.Sink) ([]ledger.MatchResult, error)
}

// Observer receives the outcome of each attempted target.
type Observer interface {
	ObserveTarget(matched bool, combinations uint64)
}

// Exact is the exhaustive first-match Calculator.
type Exact struct {
	solver   *solver.Solver
	logger   *slog.Logger
	observer Observer
}

// Compile-time check that Exact implements Calculator
var _ Calculator = (*Exact)(nil)

// NewExact creates an exhaustive calculator. A nil logger uses slog.Default().
func NewExact(config solver.Config, logger *slog.Logger) *Exact {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exact{
		solver: solver.NewSolver(config),
		logger: logger,
	}
}

// WithObserver attaches an observer and returns e.
func (e *Exact) WithObserver(o Observer) *Exact {
	e.observer = o
	return e
}

// Calculate attempts every target in order and returns one result per target.
// The pool argument is never mutated. Results are only returned once every
// target has been attempted.
func (e *Exact) Calculate(ctx context.Context, targets, pool []ledger.Record, sink progress.Sink) ([]ledger.MatchResult, error) {
	working := ledger.Clone(pool)
	counter := progress.NewCounter(e.runSpace(targets, pool), sink)
	results := make([]ledger.MatchResult, 0, len(targets))

	overallStart := time.Now()
	for i, target := range targets {
		start := time.Now()
		before := counter.Done()

		match, err := e.solver.Search(ctx, target, working, counter.Step)
		if err != nil {
			return nil, fmt.Errorf("target %d (%s): %w", i, target.Label, err)
		}

		result := ledger.MatchResult{Target: target}
		if match != nil {
			result.Subset = match.Records
			working = remove(working, match.Indices)
		}
		results = append(results, result)

		if e.observer != nil {
			e.observer.ObserveTarget(result.Matched(), counter.Done()-before)
		}

		e.logger.Info("target processed",
			"target_amount", target.Amount,
			"matched", result.Matched(),
			"subset_size", len(result.Subset),
			"pool_left", len(working),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}

	e.logger.Info("calculation finished",
		"targets", len(targets),
		"combinations", counter.Done(),
		"elapsed", time.Since(overallStart).Round(time.Millisecond),
	)

	return results, nil
}

// runSpace is the run-wide progress denominator. The historical form is
// 2^len(pool); with exact progress it is the sum of each target's enumerated
// range against the unconsumed pool.
func (e *Exact) runSpace(targets, pool []ledger.Record) float64 {
	if !e.solver.Config().ExactProgress {
		return math.Ldexp(1, len(pool))
	}
	total := 0.0
	for _, t := range targets {
		total += e.solver.SearchSpace(solver.CountEligible(t, pool))
	}
	return total
}

// remove drops the records at the given ascending positions.
func remove(pool []ledger.Record, indices []int) []ledger.Record {
	out := pool[:0]
	next := 0
	for i, r := range pool {
		if next < len(indices) && indices[next] == i {
			next++
			continue
		}
		out = append(out, r)
	}
	return out
}
