// Package loader reads targets and pool records from files.
//
// Every loader implements ledger.Loader and returns both lists sorted by
// (date, amount). Amounts are decimal in the source and must be whole numbers
// after taking the absolute value.
package loader

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

const (
	// DateLayout is the date format of structured entries
	DateLayout = "2006-01-02"

	// labelDateLayout is the date prefix of a summons label: 20240422-5259-000069
	labelDateLayout = "20060102"
)

var (
	// ErrFractionalAmount is returned for amounts with a non-zero fractional part
	ErrFractionalAmount = errors.New("amount must be a whole number")

	// ErrAmountRange is returned for amounts that do not fit in an int64
	ErrAmountRange = errors.New("amount out of range")

	// ErrLabelDate is returned when a label does not start with YYYYMMDD-
	ErrLabelDate = errors.New("label must start with a YYYYMMDD date")
)

var (
	validate = validator.New()

	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// Entry is one structured record as it appears in YAML ledgers and API requests.
type Entry struct {
	Label  string          `yaml:"label" json:"label" validate:"required"`
	Date   string          `yaml:"date" json:"date" validate:"required"`
	Amount decimal.Decimal `yaml:"amount" json:"amount"`
}

// Record validates the entry and converts it to a ledger record.
func (e Entry) Record() (ledger.Record, error) {
	if err := validate.Struct(e); err != nil {
		return ledger.Record{}, err
	}

	date, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("invalid date %q for %s: %w", e.Date, e.Label, err)
	}

	amount, err := wholeAmount(e.Amount)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%s: %w", e.Label, err)
	}

	return ledger.NewRecord(e.Label, date, amount), nil
}

// Records converts entries in order, reporting the first invalid one by position.
func Records(entries []Entry) ([]ledger.Record, error) {
	out := make([]ledger.Record, 0, len(entries))
	for i, e := range entries {
		r, err := e.Record()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// wholeAmount takes the absolute value and requires it to be integral and
// representable as an int64.
func wholeAmount(d decimal.Decimal) (int64, error) {
	d = d.Abs()
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrFractionalAmount, d.String())
	}
	if d.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s", ErrAmountRange, d.String())
	}
	return d.IntPart(), nil
}

// parseAmount parses a decimal cell.
func parseAmount(cell string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(cell))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", cell, err)
	}
	return wholeAmount(d)
}

// labelDate reads the entry date from the label prefix before the first "-".
func labelDate(label string) (time.Time, error) {
	prefix, _, _ := strings.Cut(label, "-")
	date, err := time.Parse(labelDateLayout, prefix)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrLabelDate, label)
	}
	return date, nil
}
