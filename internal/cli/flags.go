// Package cli implements the reconcile commands. The cobra wiring lives in
// cmd/reconcile; everything here takes explicit arguments so it can be tested.
package cli

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/eshaffer321/summons-reconcile/internal/adapters/loader"
	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

// ErrNoInput is returned when neither a CSV pair nor a YAML ledger is given
var ErrNoInput = errors.New("either --targets and --entries, or --ledger, is required")

// ErrConflictingInput is returned when both input styles are given
var ErrConflictingInput = errors.New("--ledger cannot be combined with --targets/--entries")

// MatchFlags are the flags for the match command
type MatchFlags struct {
	Targets      string
	Entries      string
	Ledger       string
	Out          string
	InputsOut    string
	Interval     time.Duration
	HasHeader    bool
	RepeatTarget bool
	Verbose      bool
}

// Register binds the flags to fs. A zero Interval keeps the configured value.
func (f *MatchFlags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Targets, "targets", "", "CSV file with one target amount per row")
	fs.StringVar(&f.Entries, "entries", "", "CSV file with label,amount rows")
	fs.StringVar(&f.Ledger, "ledger", "", "YAML ledger with targets and pool")
	fs.StringVar(&f.Out, "out", "", "Write results to this CSV file")
	fs.StringVar(&f.InputsOut, "inputs-out", "", "Write loaded targets and pool, with what was used, to this CSV file")
	fs.DurationVar(&f.Interval, "interval", 0, "Minimum time between progress updates (e.g. 500ms)")
	fs.BoolVar(&f.HasHeader, "header", false, "CSV inputs start with a header row")
	fs.BoolVar(&f.RepeatTarget, "repeat-target", false, "Repeat target columns on every output row")
}

// Validate checks that exactly one input style was chosen
func (f MatchFlags) Validate() error {
	csvInput := f.Targets != "" || f.Entries != ""
	switch {
	case f.Ledger != "" && csvInput:
		return ErrConflictingInput
	case f.Ledger != "":
		return nil
	case f.Targets == "" || f.Entries == "":
		return ErrNoInput
	}
	return nil
}

// Loader returns the loader for the chosen input and its source name.
func (f MatchFlags) Loader() (ledger.Loader, string) {
	if f.Ledger != "" {
		return loader.NewYAMLLoader(f.Ledger), "yaml"
	}
	l := loader.NewCSVLoader(f.Targets, f.Entries)
	l.HasHeader = f.HasHeader
	return l, "csv"
}

// ServeFlags are the flags for the serve command
type ServeFlags struct {
	Port    int
	Verbose bool
}

// Register binds the flags to fs. A zero Port keeps the configured value.
func (f *ServeFlags) Register(fs *pflag.FlagSet) {
	fs.IntVar(&f.Port, "port", 0, "Port to listen on")
}
