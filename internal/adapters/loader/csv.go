package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

// CSVLoader reads the two-file summons layout.
//
// The targets file lists one target amount per row in the first column. The
// entries file has label,amount rows where the label starts with the entry date.
// An entry whose amount is still among the unclaimed target amounts becomes a
// target and claims that amount once; every other entry joins the pool.
type CSVLoader struct {
	TargetsPath string
	EntriesPath string

	// HasHeader skips the first row of both files
	HasHeader bool
}

// Compile-time check that CSVLoader implements ledger.Loader
var _ ledger.Loader = (*CSVLoader)(nil)

// NewCSVLoader creates a loader for the given files
func NewCSVLoader(targetsPath, entriesPath string) *CSVLoader {
	return &CSVLoader{TargetsPath: targetsPath, EntriesPath: entriesPath}
}

// Load reads both files concurrently and splits entries into targets and pool.
func (l *CSVLoader) Load(ctx context.Context) ([]ledger.Record, []ledger.Record, error) {
	var targetRows, entryRows [][]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := readCSVFile(gctx, l.TargetsPath)
		if err != nil {
			return fmt.Errorf("targets file: %w", err)
		}
		targetRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := readCSVFile(gctx, l.EntriesPath)
		if err != nil {
			return fmt.Errorf("entries file: %w", err)
		}
		entryRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if l.HasHeader {
		targetRows = skipFirst(targetRows)
		entryRows = skipFirst(entryRows)
	}

	amounts, err := parseTargetAmounts(targetRows)
	if err != nil {
		return nil, nil, err
	}

	return splitEntries(entryRows, amounts)
}

// Parse splits already-open CSV streams. It is the synchronous core of Load.
func Parse(targetsCSV, entriesCSV io.Reader) ([]ledger.Record, []ledger.Record, error) {
	targetRows, err := readCSV(targetsCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("targets: %w", err)
	}
	entryRows, err := readCSV(entriesCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("entries: %w", err)
	}

	amounts, err := parseTargetAmounts(targetRows)
	if err != nil {
		return nil, nil, err
	}
	return splitEntries(entryRows, amounts)
}

func readCSVFile(ctx context.Context, path string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func skipFirst(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	return rows[1:]
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(row[0])
}

// parseTargetAmounts builds the target-amount multiset from the first column.
func parseTargetAmounts(rows [][]string) (map[int64]int, error) {
	amounts := make(map[int64]int)
	for i, row := range rows {
		cell := firstCell(row)
		if cell == "" {
			continue
		}
		amount, err := parseAmount(cell)
		if err != nil {
			return nil, fmt.Errorf("targets row %d: %w", i+1, err)
		}
		amounts[amount]++
	}
	return amounts, nil
}

type entryRow struct {
	Label  string `validate:"required"`
	Amount string `validate:"required"`
}

// splitEntries assigns each entry to targets or pool and sorts both lists.
func splitEntries(rows [][]string, amounts map[int64]int) ([]ledger.Record, []ledger.Record, error) {
	targets := make([]ledger.Record, 0)
	pool := make([]ledger.Record, 0, len(rows))

	for i, row := range rows {
		if firstCell(row) == "" {
			continue
		}
		if len(row) < 2 {
			return nil, nil, fmt.Errorf("entries row %d: expected label,amount", i+1)
		}

		in := entryRow{Label: firstCell(row), Amount: strings.TrimSpace(row[1])}
		if err := validate.Struct(in); err != nil {
			return nil, nil, fmt.Errorf("entries row %d: %w", i+1, err)
		}

		date, err := labelDate(in.Label)
		if err != nil {
			return nil, nil, fmt.Errorf("entries row %d: %w", i+1, err)
		}
		amount, err := parseAmount(in.Amount)
		if err != nil {
			return nil, nil, fmt.Errorf("entries row %d: %w", i+1, err)
		}

		record := ledger.NewRecord(in.Label, date, amount)
		if amounts[amount] > 0 {
			amounts[amount]--
			targets = append(targets, record)
		} else {
			pool = append(pool, record)
		}
	}

	ledger.Sort(targets)
	ledger.Sort(pool)
	return targets, pool, nil
}
