// Package ledger holds the value types shared by every reconciliation component.
//
// A Record is one accounting entry. Loaders decide which side a record lives on
// by placing it into either the targets slice or the pool slice:
//
//	targets, pool, err := loader.Load(ctx)
//	// targets and pool are already sorted by (date, amount)
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNegativeAmount is returned when a record with a negative amount reaches the engine.
// Loaders normalize amounts, so this indicates malformed input.
var ErrNegativeAmount = errors.New("record amount must not be negative")

// Record is one immutable ledger entry.
type Record struct {
	Label  string    `json:"label"`
	Date   time.Time `json:"date"`
	Amount int64     `json:"amount"`
}

// NewRecord builds a record, truncating the date to a calendar day in UTC.
func NewRecord(label string, date time.Time, amount int64) Record {
	y, m, d := date.Date()
	return Record{
		Label:  label,
		Date:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Amount: amount,
	}
}

// Equal reports structural equality.
func (r Record) Equal(other Record) bool {
	return r.Label == other.Label && r.Date.Equal(other.Date) && r.Amount == other.Amount
}

// Validate checks the amount invariant.
func (r Record) Validate() error {
	if r.Amount < 0 {
		return fmt.Errorf("%w: %s (%d)", ErrNegativeAmount, r.Label, r.Amount)
	}
	return nil
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s %d", r.Label, r.Date.Format("2006-01-02"), r.Amount)
}

// MatchResult is the outcome for one target. A nil Subset means no combination
// of the live pool summed to the target amount.
type MatchResult struct {
	Target Record   `json:"target"`
	Subset []Record `json:"subset,omitempty"`
}

// Matched reports whether a subset was found.
func (m MatchResult) Matched() bool {
	return m.Subset != nil
}

// Sum returns the total amount of the matched subset.
func (m MatchResult) Sum() int64 {
	var total int64
	for _, r := range m.Subset {
		total += r.Amount
	}
	return total
}

// Sort orders records ascending by (date, amount). The sort is stable so that
// equal keys keep their load order, which keeps repeated runs deterministic.
func Sort(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Amount < records[j].Amount
	})
}

// Clone returns a copy of records that shares no backing array with the input.
func Clone(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// Loader produces the two input collections for a run.
// Implementations must return both slices sorted with Sort.
type Loader interface {
	Load(ctx context.Context) (targets []Record, pool []Record, err error)
}
