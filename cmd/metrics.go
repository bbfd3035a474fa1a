package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/betateam/betabench/internal/config"
	"github.com/betateam/betabench/internal/dashboard"
	"github.com/betateam/betabench/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show aggregate metrics from the event journal",
	Long: `Replay the durable event journal and print the derived aggregate
metrics: pass rate, crash rate, flaky tests, and response-time
percentiles.

The numbers are identical to what the live run reported, because the
aggregates are derived from the journal alone.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		collector, err := metrics.Replay(Logger, cfg.JournalPath, metrics.WithMinRuns(cfg.MinRuns))
		if err != nil {
			return fmt.Errorf("replaying journal %s: %w", cfg.JournalPath, err)
		}

		renderer := dashboard.NewRenderer(Logger)
		fmt.Print(dashboard.NewSummaryFormatter(Logger, renderer).Format(collector.Snapshot()))

		if flaky := dashboard.NewFlakyFormatter(Logger, renderer).Format(collector.FlakyTests(cfg.MinRuns)); flaky != "" {
			fmt.Print(flaky)
		}

		fmt.Println()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
