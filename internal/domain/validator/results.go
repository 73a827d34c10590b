// Package validator checks reconciliation results before they are recorded.
//
// The results validator makes sure a run's output is consistent with its
// input: one result per target in order, every matched subset summing to its
// target, and no pool record used more often than it appears in the pool.
package validator

import (
	"fmt"
	"time"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

// ResultValidation contains the result of validating a run's output.
type ResultValidation struct {
	// Valid is true if every check passed
	Valid bool

	// Matched is the number of targets with a subset
	Matched int

	// Unmatched is the number of targets without one
	Unmatched int

	// PoolUsed is how many pool records the subsets consumed
	PoolUsed int

	// Reason explains the first failed check (empty if valid)
	Reason string
}

type recordKey struct {
	label  string
	date   time.Time
	amount int64
}

func keyOf(r ledger.Record) recordKey {
	return recordKey{label: r.Label, date: r.Date.UTC(), amount: r.Amount}
}

// ValidateResults checks results against the targets and pool they came from.
func ValidateResults(targets, pool []ledger.Record, results []ledger.MatchResult) *ResultValidation {
	v := &ResultValidation{}

	if len(results) != len(targets) {
		v.Reason = fmt.Sprintf("expected %d results, got %d", len(targets), len(results))
		return v
	}

	available := make(map[recordKey]int, len(pool))
	for _, r := range pool {
		available[keyOf(r)]++
	}

	for i, result := range results {
		if !result.Target.Equal(targets[i]) {
			v.Reason = fmt.Sprintf("result %d is for %s, expected %s", i+1, result.Target, targets[i])
			return v
		}

		if !result.Matched() {
			v.Unmatched++
			continue
		}
		v.Matched++

		if sum := result.Sum(); sum != result.Target.Amount {
			v.Reason = fmt.Sprintf("subset for %s sums to %d, expected %d", result.Target.Label, sum, result.Target.Amount)
			return v
		}

		for _, r := range result.Subset {
			k := keyOf(r)
			if available[k] == 0 {
				v.Reason = fmt.Sprintf("subset for %s uses %s more often than the pool holds it", result.Target.Label, r)
				return v
			}
			available[k]--
			v.PoolUsed++
		}
	}

	v.Valid = true
	return v
}
