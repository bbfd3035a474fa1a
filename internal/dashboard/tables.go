package dashboard

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/betateam/betabench/internal/benchmark"
	"github.com/betateam/betabench/internal/format"
	"github.com/betateam/betabench/internal/metrics"
)

// SummaryFormatter formats a metrics snapshot as a table.
type SummaryFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewSummaryFormatter creates a new summary table formatter.
func NewSummaryFormatter(log logrus.FieldLogger, renderer Renderer) *SummaryFormatter {
	return &SummaryFormatter{
		log:      log.WithField("component", "dashboard.summary_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts a snapshot into a formatted table string.
func (f *SummaryFormatter) Format(snap metrics.Snapshot) string {
	passedValue := fmt.Sprintf("%d (%s)", snap.PassedTests, f.colors.FormatPercentage(snap.PassRate))
	if snap.PassedTests == snap.TotalTests && snap.TotalTests > 0 {
		passedValue = f.colors.Success(fmt.Sprintf("%d (%.1f%%)", snap.PassedTests, snap.PassRate))
	}

	failedValue := strconv.Itoa(snap.FailedTests)
	if snap.FailedTests > 0 {
		failedValue = f.colors.Failure(failedValue)
	} else {
		failedValue = f.colors.Success(failedValue)
	}

	crashValue := fmt.Sprintf("%d (%.2f/h)", snap.CrashCount, snap.CrashRatePerHour)
	if snap.CrashCount > 0 {
		crashValue = f.colors.Failure(crashValue)
	} else {
		crashValue = f.colors.Success(crashValue)
	}

	flakyValue := fmt.Sprintf("%d (%.1f%% of tests)", snap.FlakyTests, snap.FlakyTestRate)
	switch {
	case snap.FlakyTests == 0:
		flakyValue = f.colors.Success(flakyValue)
	case snap.FlakyTestRate >= 20.0:
		flakyValue = f.colors.Failure(flakyValue)
	default:
		flakyValue = f.colors.Warning(flakyValue)
	}

	var (
		headers = []string{"Metric", "Value"}
		rows    = [][]string{
			{"Total Tests", f.colors.Bold(strconv.Itoa(snap.TotalTests))},
			{"Passed", passedValue},
			{"Failed", failedValue},
			{"Skipped", strconv.Itoa(snap.SkippedTests)},
			{"Errors", strconv.Itoa(snap.ErrorTests)},
			{"Crashes", crashValue},
			{"Flaky Tests", flakyValue},
			{"Samples", strconv.Itoa(snap.Samples)},
			{"Mean Response", format.Millis(snap.MeanResponseMs)},
			{"p50 / p95 / p99", fmt.Sprintf("%s / %s / %s",
				format.Millis(snap.P50ResponseMs),
				format.Millis(snap.P95ResponseMs),
				format.Millis(snap.P99ResponseMs))},
		}
	)

	return "\n" + f.colors.Header("▸ Summary") + "\n\n" + f.renderer.RenderToString(headers, rows)
}

// ResultsFormatter formats scenario results as a table.
type ResultsFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewResultsFormatter creates a new results table formatter.
func NewResultsFormatter(log logrus.FieldLogger, renderer Renderer) *ResultsFormatter {
	return &ResultsFormatter{
		log:      log.WithField("component", "dashboard.results_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts scenario results into a formatted table string.
func (f *ResultsFormatter) Format(results []*benchmark.ScenarioResult) string {
	headers := []string{"Scenario", "Status", "Passed", "Failed", "Skipped", "Errors", "Duration"}
	rows := make([][]string, 0, len(results))

	for _, res := range results {
		passed, failed, skipped, errored := res.Counts()

		status := f.colors.Success("PASS")
		switch {
		case res.SessionLost:
			status = f.colors.Failure("LOST")
		case res.Cancelled:
			status = f.colors.Muted("CANCELLED")
		case !res.Passed():
			status = f.colors.Failure("FAIL")
		}

		rows = append(rows, []string{
			res.Scenario,
			status,
			strconv.Itoa(passed),
			strconv.Itoa(failed),
			strconv.Itoa(skipped),
			strconv.Itoa(errored),
			format.Duration(res.Duration),
		})
	}

	return "\n" + f.colors.Header("▸ Scenario Results") + "\n\n" + f.renderer.RenderToString(headers, rows)
}

// FlakyFormatter formats flaky test records as a table.
type FlakyFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewFlakyFormatter creates a new flaky-test table formatter.
func NewFlakyFormatter(log logrus.FieldLogger, renderer Renderer) *FlakyFormatter {
	return &FlakyFormatter{
		log:      log.WithField("component", "dashboard.flaky_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts flaky test records into a formatted table string.
// Returns an empty string when there is nothing to show.
func (f *FlakyFormatter) Format(records []metrics.FlakyTestRecord) string {
	if len(records) == 0 {
		return ""
	}

	headers := []string{"Test", "Window", "Passed", "Failed", "Flakiness"}
	rows := make([][]string, 0, len(records))

	for _, rec := range records {
		rows = append(rows, []string{
			f.colors.Warning(rec.Name),
			strconv.Itoa(rec.WindowRuns),
			strconv.Itoa(rec.PassCount),
			strconv.Itoa(rec.FailCount),
			format.Percent(rec.FlakinessRate),
		})
	}

	return "\n" + f.colors.Header("▸ Flaky Tests") + "\n\n" + f.renderer.RenderToString(headers, rows)
}
