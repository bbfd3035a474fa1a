package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/betateam/betabench/internal/config"
	"github.com/betateam/betabench/internal/metrics"
	"github.com/betateam/betabench/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Regenerate reports from the event journal",
	Long: `Rebuild the HTML and JSON reports from the durable event journal
without re-running any scenario. Useful after a crash of the harness
itself, or to re-render with updated history.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		collector, err := metrics.Replay(Logger, cfg.JournalPath, metrics.WithMinRuns(cfg.MinRuns))
		if err != nil {
			return fmt.Errorf("replaying journal %s: %w", cfg.JournalPath, err)
		}

		gen := report.NewGenerator(Logger, cfg.OutputDir)

		if err := gen.LoadHistory(cfg.HistoryPath); err != nil {
			Logger.WithError(err).Warn("failed to load report history")
		}

		snap := collector.Snapshot()
		gen.AttachSnapshot(&snap)
		gen.AddSuite(suiteFromEvents(collector.Events()))

		path, err := gen.WriteHTML("report.html")
		if err != nil {
			return fmt.Errorf("writing HTML report: %w", err)
		}

		if _, err := gen.WriteJSON("report.json"); err != nil {
			return fmt.Errorf("writing JSON report: %w", err)
		}

		fmt.Printf("Report written to %s\n", path)

		return nil
	},
}

// suiteFromEvents folds the journal's test events into a single suite
// for rendering.
func suiteFromEvents(events []metrics.Event) *report.Suite {
	suite := &report.Suite{Name: "journal"}

	for _, ev := range events {
		if ev.Kind != metrics.KindTestResult || ev.Test == nil {
			continue
		}

		suite.Add(&report.TestCase{
			Name:         ev.Test.Name,
			Status:       string(ev.Test.Outcome),
			DurationMs:   float64(ev.Test.Duration.Milliseconds()),
			ErrorMessage: ev.Test.Detail,
		})
	}

	return suite
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
