// Package report turns collected test outcomes into human-facing
// artifacts: HTML and JSON reports, bullet-point summaries, exchange
// bundles for external report viewers, and humanized feedback.
package report

import (
	"time"

	"github.com/betateam/betabench/internal/adapter"
)

// TestCase is one test outcome as presented in a report.
type TestCase struct {
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	DurationMs   float64           `json:"duration_ms"`
	Description  string            `json:"description,omitempty"`
	Steps        []string          `json:"steps,omitempty"`
	Attachments  []string          `json:"attachments,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	StackTrace   string            `json:"stack_trace,omitempty"`
	StartTime    time.Time         `json:"start_time,omitempty"`
}

// FromResult converts an adapter test result into a report test case.
func FromResult(res *adapter.TestResult) *TestCase {
	tc := &TestCase{
		Name:         res.Name,
		Status:       string(res.Status),
		DurationMs:   float64(res.Duration) / float64(time.Millisecond),
		Labels:       res.Metadata,
		ErrorMessage: res.ErrorMessage,
	}

	if res.ScreenshotPath != "" {
		tc.Attachments = []string{res.ScreenshotPath}
	}

	// Adapters stamp results on completion, so the start is the stamp
	// minus the measured duration.
	if !res.Timestamp.IsZero() {
		tc.StartTime = res.Timestamp.Add(-res.Duration)
	}

	return tc
}

// Suite is a named collection of test cases, typically one scenario.
type Suite struct {
	Name      string      `json:"name"`
	TestCases []*TestCase `json:"tests"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
}

// Add appends a test case to the suite.
func (s *Suite) Add(tc *TestCase) {
	s.TestCases = append(s.TestCases, tc)
}

// Statistics summarizes pass/fail counts for a suite or a whole report.
type Statistics struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	Broken   int     `json:"broken"`
	PassRate float64 `json:"pass_rate"`
}

// Statistics tallies the suite's test cases. Adapter "error" outcomes
// count as broken: the harness, not the product, failed.
func (s *Suite) Statistics() Statistics {
	var stats Statistics

	for _, tc := range s.TestCases {
		stats.Total++

		switch tc.Status {
		case "passed":
			stats.Passed++
		case "failed":
			stats.Failed++
		case "skipped":
			stats.Skipped++
		default:
			stats.Broken++
		}
	}

	if stats.Total > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Total) * 100
	}

	return stats
}

// Severity orders issues from most to least urgent.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort weight of the severity, lower is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Issue is a reported defect, possibly merged from multiple duplicate
// sightings.
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Tests       []string  `json:"tests,omitempty"`
	Screenshot  string    `json:"screenshot,omitempty"`
	Occurrences int       `json:"occurrences"`
	Created     time.Time `json:"created"`
}

// ScreenshotDiff pairs a baseline capture with the current one for
// visual regression review.
type ScreenshotDiff struct {
	Name      string    `json:"name"`
	Baseline  string    `json:"baseline"`
	Current   string    `json:"current"`
	Diff      string    `json:"diff,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
