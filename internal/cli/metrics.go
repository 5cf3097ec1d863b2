package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display export and gate metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include export and validation counts, average coverage, readiness
verdicts, gate outcomes and a per-project summary of the latest export.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d (%d failed)\n", "Exports:", metrics.Exports, metrics.ExportFailures)
		fmt.Fprintf(out, "  %-24s %d (%d invalid)\n", "Validations:", metrics.Validations, metrics.InvalidManifests)
		fmt.Fprintf(out, "  %-24s %.1f%%\n", "Average coverage:", metrics.AverageCoverage)
		fmt.Fprintf(out, "  %-24s %d (%d checksum failures)\n", "Gate 1 runs:", metrics.Gate1Runs, metrics.ChecksumFailures)
		fmt.Fprintf(out, "  %-24s %d (%d healthy, %d short-circuited)\n", "Gate 2 runs:", metrics.Gate2Runs, metrics.Gate2Healthy, metrics.Gate2ShortCircuits)

		if len(metrics.Verdicts) > 0 {
			fmt.Fprintln(out, "\n  Verdicts:")
			for _, v := range slices.Sorted(maps.Keys(metrics.Verdicts)) {
				fmt.Fprintf(out, "    %-20s %d\n", v+":", metrics.Verdicts[v])
			}
		}

		if len(metrics.Projects) > 0 {
			t := newTable("Project", "Exports", "Failures", "Coverage", "Score", "Verdict")
			for _, name := range slices.Sorted(maps.Keys(metrics.Projects)) {
				p := metrics.Projects[name]
				t.AppendRow(table.Row{name, p.Exports, p.Failures, fmt.Sprintf("%.1f%%", p.LatestCoverage), p.LatestScore, p.LatestVerdict})
			}
			fmt.Fprintf(out, "\n%s\n", t.Render())
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
