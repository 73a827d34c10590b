package solver

import "github.com/eshaffer321/summons-reconcile/internal/domain/ledger"

// Config holds solver configuration
type Config struct {
	// IncludeFullPool also tries the combination made of every eligible record.
	// Off by default: sizes run from 1 to n-1.
	IncludeFullPool bool

	// ExactProgress reports progress against the number of combinations actually
	// enumerated instead of 2^n.
	ExactProgress bool
}

// DefaultConfig returns the historical search behaviour
func DefaultConfig() Config {
	return Config{
		IncludeFullPool: false,
		ExactProgress:   false,
	}
}

// Match is a found subset. Indices point into the pool passed to Search, in
// ascending order, and line up with Records.
type Match struct {
	Indices []int
	Records []ledger.Record
}
