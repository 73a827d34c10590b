package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

// Input roles
const (
	RoleTarget = "target"
	RolePool   = "pool"
)

// InputsHeader is the column layout of the inputs file
var InputsHeader = []string{"role", "label", "date", "amount", "used"}

// WriteInputsFile writes the loaded inputs to a CSV file at the given path.
func (w *CSVWriter) WriteInputsFile(path string, targets, pool []ledger.Record, results []ledger.MatchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create inputs file %q: %w", path, err)
	}

	if err := w.WriteInputs(f, targets, pool, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteInputs lists every target and pool record as loaded. For a target,
// used means it was matched. For a pool record, used means a subset consumed
// it, so the rows with used=false are the leftover pool.
func (w *CSVWriter) WriteInputs(out io.Writer, targets, pool []ledger.Record, results []ledger.MatchResult) error {
	matched := make(map[inputKey]int)
	consumed := make(map[inputKey]int)
	for _, result := range results {
		if !result.Matched() {
			continue
		}
		matched[keyOf(result.Target)]++
		for _, r := range result.Subset {
			consumed[keyOf(r)]++
		}
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(InputsHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	sections := []struct {
		role    string
		records []ledger.Record
		used    map[inputKey]int
	}{
		{RoleTarget, targets, matched},
		{RolePool, pool, consumed},
	}
	for _, section := range sections {
		for i, r := range section.records {
			k := keyOf(r)
			used := section.used[k] > 0
			if used {
				section.used[k]--
			}
			row := []string{
				section.role,
				r.Label,
				r.Date.Format(dateLayout),
				strconv.FormatInt(r.Amount, 10),
				strconv.FormatBool(used),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row for %s %d: %w", section.role, i, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

type inputKey struct {
	label  string
	date   time.Time
	amount int64
}

func keyOf(r ledger.Record) inputKey {
	return inputKey{label: r.Label, date: r.Date.UTC(), amount: r.Amount}
}
