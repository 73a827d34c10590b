package loader

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
)

// Ledger is the YAML document layout:
//
//	targets:
//	  - {label: T1, date: 2024-03-01, amount: 10}
//	pool:
//	  - {label: 20240301-a, date: 2024-03-01, amount: -4}
type Ledger struct {
	Targets []Entry `yaml:"targets"`
	Pool    []Entry `yaml:"pool"`
}

// YAMLLoader reads targets and pool from a single YAML file.
type YAMLLoader struct {
	Path string
}

// Compile-time check that YAMLLoader implements ledger.Loader
var _ ledger.Loader = (*YAMLLoader)(nil)

// NewYAMLLoader creates a loader for path
func NewYAMLLoader(path string) *YAMLLoader {
	return &YAMLLoader{Path: path}
}

// Load reads and converts the file.
func (l *YAMLLoader) Load(ctx context.Context) ([]ledger.Record, []ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, nil, err
	}
	return ParseYAML(data)
}

// ParseYAML converts a YAML ledger document into sorted targets and pool.
func ParseYAML(data []byte) ([]ledger.Record, []ledger.Record, error) {
	var doc Ledger
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid ledger: %w", err)
	}

	targets, err := Records(doc.Targets)
	if err != nil {
		return nil, nil, fmt.Errorf("targets: %w", err)
	}
	pool, err := Records(doc.Pool)
	if err != nil {
		return nil, nil, fmt.Errorf("pool: %w", err)
	}

	ledger.Sort(targets)
	ledger.Sort(pool)
	return targets, pool, nil
}
