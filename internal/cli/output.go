package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eshaffer321/summons-reconcile/internal/application/service"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, source string, targets, pool int) {
	fmt.Fprintf(w, "reconcile: %s input | Targets: %d | Pool: %d\n\n", source, targets, pool)
}

// PrintProgress prints a whole-percent progress line
func PrintProgress(w io.Writer, percent int) {
	fmt.Fprintf(w, "Progress: %3d%%\n", percent)
}

// PrintSummary prints the job result summary
func PrintSummary(w io.Writer, job *service.Job, outPath string) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Targets=%d Matched=%d Unmatched=%d\n",
		len(job.Results),
		job.Matched(),
		len(job.Results)-job.Matched())

	if job.CompletedAt != nil {
		fmt.Fprintf(w, "Elapsed: %s\n", job.CompletedAt.Sub(job.StartedAt).Round(time.Millisecond))
	}

	for _, r := range job.Results {
		if !r.Matched() {
			continue
		}
		labels := make([]string, len(r.Subset))
		for i, rec := range r.Subset {
			labels[i] = rec.Label
		}
		fmt.Fprintf(w, "  %s (%d) = %s\n", r.Target.Label, r.Target.Amount, strings.Join(labels, " + "))
	}

	if outPath != "" {
		fmt.Fprintf(w, "\nResults written to %s\n", outPath)
	}
	fmt.Fprintf(w, "Run ID: %s\n", job.ID)
}
