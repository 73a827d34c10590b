package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eshaffer321/summons-reconcile/internal/adapters/writer"
	"github.com/eshaffer321/summons-reconcile/internal/application/service"
	"github.com/eshaffer321/summons-reconcile/internal/application/worker"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/logging"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/storage"
)

// ErrCancelled is returned when the match command is interrupted
var ErrCancelled = errors.New("reconciliation cancelled")

// pollInterval is how often the command checks the running job
const pollInterval = 100 * time.Millisecond

// RunMatch loads the input, runs one reconciliation and writes the results.
// Cancelling ctx stops the search.
func RunMatch(ctx context.Context, cfg *config.Config, flags MatchFlags, out io.Writer) error {
	if err := flags.Validate(); err != nil {
		return err
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "cli")

	src, source := flags.Loader()
	targets, pool, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	matching := cfg.Matching
	if flags.Interval > 0 {
		matching.ProgressInterval = flags.Interval
	}

	svc := service.NewReconcileService(matching, store, nil, logger)
	defer func() { _ = svc.Close() }()

	PrintHeader(out, source, len(targets), len(pool))

	if _, err := svc.StartJob(ctx, service.JobRequest{
		Source:  source,
		Targets: targets,
		Pool:    pool,
	}); err != nil {
		return err
	}

	job, err := waitForJob(ctx, svc, out)
	if err != nil {
		return err
	}

	if job.Outcome == worker.OutcomeFailed {
		return fmt.Errorf("reconciliation failed: %w", job.Error)
	}

	w := &writer.CSVWriter{RepeatTarget: flags.RepeatTarget}
	if flags.Out != "" {
		if err := w.WriteFile(flags.Out, job.Results); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	if flags.InputsOut != "" {
		if err := w.WriteInputsFile(flags.InputsOut, targets, pool, job.Results); err != nil {
			return fmt.Errorf("failed to write inputs: %w", err)
		}
	}

	PrintSummary(out, job, flags.Out)
	return nil
}

// waitForJob polls the service until the job leaves the running state,
// printing progress whenever the whole percentage changes.
func waitForJob(ctx context.Context, svc *service.ReconcileService, out io.Writer) (*service.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			if err := svc.Cancel(); errors.Is(err, service.ErrNoActiveJob) {
				// finished between the last poll and the interrupt
				return svc.LastJob(), nil
			}
			fmt.Fprintln(out, "Stopped.")
			return nil, ErrCancelled
		case <-ticker.C:
		}

		running := svc.IsRunning()
		status := svc.Status()
		if percent := int(status.Progress * 100); percent != last {
			PrintProgress(out, percent)
			last = percent
		}
		if !running {
			return svc.LastJob(), nil
		}
	}
}
