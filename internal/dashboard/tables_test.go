package dashboard

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/betateam/betabench/internal/benchmark"
	"github.com/betateam/betabench/internal/metrics"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestSummaryFormatter_Format(t *testing.T) {
	color.NoColor = true

	snap := metrics.Snapshot{
		TotalTests:       10,
		PassedTests:      8,
		FailedTests:      1,
		SkippedTests:     1,
		PassRate:         80,
		CrashCount:       2,
		CrashRatePerHour: 0.5,
		FlakyTests:       1,
		FlakyTestRate:    12.5,
		Samples:          40,
		MeanResponseMs:   120.5,
		P50ResponseMs:    100,
		P95ResponseMs:    240,
		P99ResponseMs:    300,
	}

	out := NewSummaryFormatter(testLogger(), NewRenderer(testLogger())).Format(snap)

	assert.Contains(t, out, "▸ Summary")
	assert.Contains(t, out, "Total Tests")
	assert.Contains(t, out, "8 (80.0%)")
	assert.Contains(t, out, "2 (0.50/h)")
	assert.Contains(t, out, "1 (12.5% of tests)")
	assert.Contains(t, out, "100ms / 240ms / 300ms")
}

func TestResultsFormatter_Format(t *testing.T) {
	color.NoColor = true

	results := []*benchmark.ScenarioResult{
		{
			Scenario: "login_flow",
			Results:  nil,
			Duration: 1500 * time.Millisecond,
		},
		{
			Scenario:    "export_flow",
			SessionLost: true,
			Duration:    30 * time.Second,
		},
		{
			Scenario:  "render_flow",
			Cancelled: true,
		},
	}

	out := NewResultsFormatter(testLogger(), NewRenderer(testLogger())).Format(results)

	assert.Contains(t, out, "▸ Scenario Results")
	assert.Contains(t, out, "login_flow")
	assert.Contains(t, out, "LOST")
	assert.Contains(t, out, "CANCELLED")
	assert.Contains(t, out, "1.5s")
}

func TestFlakyFormatter_Format(t *testing.T) {
	color.NoColor = true

	formatter := NewFlakyFormatter(testLogger(), NewRenderer(testLogger()))

	assert.Empty(t, formatter.Format(nil))

	out := formatter.Format([]metrics.FlakyTestRecord{
		{Name: "login_test", WindowRuns: 3, PassCount: 2, FailCount: 1, FlakinessRate: 33.3},
	})

	assert.Contains(t, out, "login_test")
	assert.Contains(t, out, "33.3%")
}

func TestColorHelper_FormatStatus(t *testing.T) {
	color.NoColor = true

	c := NewColorHelper()

	assert.Equal(t, "PASS", c.FormatStatus("passed"))
	assert.Equal(t, "FAIL", c.FormatStatus("failed"))
	assert.Equal(t, "SKIP", c.FormatStatus("skipped"))
	assert.Equal(t, "ERROR", c.FormatStatus("error"))
}

func TestColorHelper_DisabledPassesThrough(t *testing.T) {
	color.NoColor = true

	c := NewColorHelper()

	assert.Equal(t, "ok", c.Success("ok"))
	assert.Equal(t, "bad", c.Failure("bad"))
	assert.Equal(t, "head", c.Header("head"))
}
