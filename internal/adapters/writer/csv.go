// Package writer exports match results.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

const dateLayout = "2006-01-02"

// Header is the column layout of the results file
var Header = []string{
	"target_label", "target_date", "target_amount", "matched",
	"entry_label", "entry_date", "entry_amount",
}

// CSVWriter writes match results to CSV format.
//
// Each subset member gets its own row. The target columns are filled on the
// first row of a group only, unless RepeatTarget is set. An unmatched target
// is a single row with matched=false and empty entry columns.
type CSVWriter struct {
	RepeatTarget bool
}

// WriteFile writes results to a CSV file at the given path.
func (w *CSVWriter) WriteFile(path string, results []ledger.MatchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}

	if err := w.Write(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write writes results in CSV format to out.
func (w *CSVWriter) Write(out io.Writer, results []ledger.MatchResult) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, result := range results {
		for _, row := range w.rows(result) {
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row for target %d: %w", i, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *CSVWriter) rows(result ledger.MatchResult) [][]string {
	target := []string{
		result.Target.Label,
		result.Target.Date.Format(dateLayout),
		strconv.FormatInt(result.Target.Amount, 10),
		strconv.FormatBool(result.Matched()),
	}

	if !result.Matched() {
		return [][]string{append(target, "", "", "")}
	}

	blank := make([]string, len(target))
	rows := make([][]string, 0, len(result.Subset))
	for i, entry := range result.Subset {
		lead := target
		if i > 0 && !w.RepeatTarget {
			lead = blank
		}
		row := make([]string, 0, len(Header))
		row = append(row, lead...)
		row = append(row,
			entry.Label,
			entry.Date.Format(dateLayout),
			strconv.FormatInt(entry.Amount, 10),
		)
		rows = append(rows, row)
	}
	return rows
}
