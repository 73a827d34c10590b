// Package solver finds a subset of pool records whose amounts sum exactly to a
// target amount.
//
// The search is exhaustive and first-match:
//   - Records larger than the target are discarded up front
//   - Combinations are tried by increasing size, starting at one record
//   - Within a size, combinations follow the pool's order (lexicographic over indices)
//   - The first combination with the exact sum wins
//
// Example usage:
//
//	s := solver.NewSolver(solver.DefaultConfig())
//	subset, err := s.FindSubset(ctx, target, pool, progress.Discard)
//	if subset != nil {
//		// subset sums to target.Amount
//	}
package solver

import (
	"context"
	"math"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
	"github.com/eshaffer321/summons-reconcile/internal/domain/progress"
)

// checkEvery is how many combinations are evaluated between context checks.
const checkEvery = 4096

// Solver runs the exact subset-sum search
type Solver struct {
	config Config
}

// NewSolver creates a new solver with the given config
func NewSolver(config Config) *Solver {
	return &Solver{
		config: config,
	}
}

// Config returns the solver configuration.
func (s *Solver) Config() Config {
	return s.config
}

// FindSubset searches pool for a subset summing to target.Amount and reports
// progress against the search space of the eligible records.
// Returns nil when no combination in the searched range matches.
func (s *Solver) FindSubset(ctx context.Context, target ledger.Record, pool []ledger.Record, sink progress.Sink) ([]ledger.Record, error) {
	counter := progress.NewCounter(s.SearchSpace(countEligible(target, pool)), sink)
	match, err := s.Search(ctx, target, pool, counter.Step)
	if err != nil || match == nil {
		return nil, err
	}
	return match.Records, nil
}

// Search is the low-level search. step is called once per evaluated
// combination and may be nil. It returns ctx.Err() if the context is done.
func (s *Solver) Search(ctx context.Context, target ledger.Record, pool []ledger.Record, step func()) (*Match, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	// Positions of eligible records in the caller's pool
	eligible := make([]int, 0, len(pool))
	for i, r := range pool {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if r.Amount <= target.Amount {
			eligible = append(eligible, i)
		}
	}

	n := len(eligible)
	evaluated := 0
	idx := make([]int, 0, n)

	for r := 1; r <= s.maxSize(n); r++ {
		idx = idx[:r]
		for i := range idx {
			idx[i] = i
		}

		for {
			// Amounts are non-negative, so a partial sum past the target can
			// stop early. Comparing against the remainder keeps the sum from
			// overflowing.
			var sum int64
			over := false
			for _, k := range idx {
				amount := pool[eligible[k]].Amount
				if amount > target.Amount-sum {
					over = true
					break
				}
				sum += amount
			}

			if step != nil {
				step()
			}

			if !over && sum == target.Amount {
				return buildMatch(pool, eligible, idx), nil
			}

			evaluated++
			if evaluated%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}

			if !nextCombination(idx, n) {
				break
			}
		}
	}

	return nil, nil
}

// SearchSpace returns the progress denominator for n eligible records.
func (s *Solver) SearchSpace(n int) float64 {
	if !s.config.ExactProgress {
		return math.Ldexp(1, n)
	}
	total := 0.0
	for r := 1; r <= s.maxSize(n); r++ {
		total += binomial(n, r)
	}
	return total
}

// maxSize is the largest subset size tried for n eligible records
func (s *Solver) maxSize(n int) int {
	if s.config.IncludeFullPool {
		return n
	}
	return n - 1
}

// CountEligible returns how many pool records could take part in a match for target.
func CountEligible(target ledger.Record, pool []ledger.Record) int {
	return countEligible(target, pool)
}

func countEligible(target ledger.Record, pool []ledger.Record) int {
	n := 0
	for _, r := range pool {
		if r.Amount <= target.Amount {
			n++
		}
	}
	return n
}

// nextCombination advances idx to the next r-combination of n in
// lexicographic order. Returns false when idx was the last one.
func nextCombination(idx []int, n int) bool {
	r := len(idx)
	i := r - 1
	for i >= 0 && idx[i] == n-r+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < r; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

func buildMatch(pool []ledger.Record, eligible, idx []int) *Match {
	m := &Match{
		Indices: make([]int, len(idx)),
		Records: make([]ledger.Record, len(idx)),
	}
	for i, k := range idx {
		m.Indices[i] = eligible[k]
		m.Records[i] = pool[eligible[k]]
	}
	return m
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := 1; i <= k; i++ {
		result = result * float64(n-k+i) / float64(i)
	}
	return result
}
