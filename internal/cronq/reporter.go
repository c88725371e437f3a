package cronq

import (
	"context"
	"fmt"
	"log"
	"strings"
	"text/tabwriter"
	"time"

	"cronq/internal/config"
	"cronq/internal/reporting"
	"cronq/internal/state"
	"cronq/internal/store"
)

// DigestReporter periodically renders instance counts per status. Terminal
// statuses are bounded to a trailing window on end_time; queued and running
// represent current backlog and are listed unbounded.
type DigestReporter struct {
	instanceStore store.InstanceStore
	sender        reporting.EmailSender
	reporter      reporting.FailureReporter
	interval      time.Duration
	window        time.Duration
	now           func() time.Time
}

func NewDigestReporter(
	cfg *config.Config,
	instanceStore store.InstanceStore,
	sender reporting.EmailSender,
	reporter reporting.FailureReporter,
) *DigestReporter {
	return &DigestReporter{
		instanceStore: instanceStore,
		sender:        sender,
		reporter:      reporter,
		interval:      cfg.ReportInterval,
		window:        cfg.ReportWindow,
		now:           time.Now,
	}
}

func (r *DigestReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("DigestReporter stopped")
			return ctx.Err()
		case <-ticker.C:
			digest, err := r.BuildDigest(ctx)
			if err != nil {
				r.reporter.Report("Instance report exception", err.Error())
				continue
			}
			if digest == "" {
				continue
			}
			if err := r.sender.Send("Instance Report", digest); err != nil {
				r.reporter.Report("Instance report exception", err.Error())
			}
		}
	}
}

// BuildDigest returns the formatted digest, or the empty string when every
// status bucket is empty. Empty buckets are skipped rather than rendered as
// empty tables.
func (r *DigestReporter) BuildDigest(ctx context.Context) (string, error) {
	counts, err := r.instanceStore.CountGroupedByStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count instances: %w", err)
	}

	now := r.now()
	var b strings.Builder

	for _, status := range state.AllStatuses {
		var endedAfter *time.Time
		if status.IsTerminal() {
			cutoff := now.Add(-r.window)
			endedAfter = &cutoff
		}

		rows, err := r.instanceStore.ListByStatus(ctx, status, endedAfter)
		if err != nil {
			return "", fmt.Errorf("failed to query %s instances: %w", status, err)
		}
		if len(rows) == 0 {
			continue
		}

		fmt.Fprintf(&b, "%s (%d):\n", capitalize(status.String()), len(rows))
		w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tINSTANCE\tSTART\tEND\tELAPSED\tMACHINE")
		for _, row := range rows {
			end, elapsed := "-", "-"
			if row.EndTime != nil {
				end = row.EndTime.UTC().Format(time.RFC3339)
				elapsed = row.EndTime.Sub(row.StartTime).Round(time.Second).String()
			}
			machine := "-"
			if row.Machine != nil {
				machine = *row.Machine
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				row.JobName, row.InstanceID,
				row.StartTime.UTC().Format(time.RFC3339),
				end, elapsed, machine,
			)
		}
		w.Flush()
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return "", nil
	}

	header := fmt.Sprintf("Totals: queued=%d running=%d completed=%d failed=%d\n\n",
		counts[state.StatusQueued], counts[state.StatusRunning],
		counts[state.StatusCompleted], counts[state.StatusFailed],
	)
	return header + b.String(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
