// Package metrics provides the thread-safe, append-only event store for
// test results, benchmark samples, and crash events, plus the derived
// aggregates computed from that history. The event history is
// authoritative: every aggregate is recomputed on demand and a collector
// rebuilt by replaying its journal reproduces identical aggregates.
package metrics

import (
	"time"
)

// EventKind discriminates the event union.
type EventKind string

const (
	// KindTestResult is the outcome of one named test invocation.
	KindTestResult EventKind = "test_result"
	// KindBenchmarkSample is one timed measurement of an operation.
	KindBenchmarkSample EventKind = "benchmark_sample"
	// KindCrash is a distinct crash observation, never inferred from
	// failures.
	KindCrash EventKind = "crash"
)

// TestOutcome mirrors the adapter result statuses at the event level.
type TestOutcome string

const (
	// OutcomePassed marks a passing run.
	OutcomePassed TestOutcome = "passed"
	// OutcomeFailed marks a failing run.
	OutcomeFailed TestOutcome = "failed"
	// OutcomeSkipped marks a run that was never dispatched.
	OutcomeSkipped TestOutcome = "skipped"
	// OutcomeError marks a run that could not complete.
	OutcomeError TestOutcome = "error"
)

// TestEvent carries the fields of a recorded test result.
type TestEvent struct {
	Name     string        `json:"name"`
	Outcome  TestOutcome   `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail,omitempty"`
	Scenario string        `json:"scenario,omitempty"`
}

// SampleEvent carries the fields of one benchmark sample.
type SampleEvent struct {
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Value     float64       `json:"value,omitempty"`
	HasValue  bool          `json:"has_value,omitempty"`
	Scenario  string        `json:"scenario,omitempty"`
}

// Event is one record in the ordered history. Exactly one payload field
// is set, matching Kind. Immutable once recorded.
type Event struct {
	Kind      EventKind    `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Test      *TestEvent   `json:"test,omitempty"`
	Sample    *SampleEvent `json:"sample,omitempty"`
}

// FlakyTestRecord describes a test whose most recent window of results
// contains both a pass and a fail. Derived, never stored.
type FlakyTestRecord struct {
	Name          string
	WindowRuns    int
	PassCount     int
	FailCount     int
	FlakinessRate float64 // min(pass,fail)/window, as a percentage
}

// TrendPoint is one labelled point of a historical trend series.
type TrendPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Snapshot is a derived, point-in-time aggregate over the event history.
// It intentionally carries no wall-clock-now fields so that replaying a
// journal yields an identical snapshot.
type Snapshot struct {
	TotalTests   int
	PassedTests  int
	FailedTests  int
	SkippedTests int
	ErrorTests   int

	// PassRate is passed/total as a percentage; 0 when no tests ran.
	PassRate float64

	CrashCount int
	// CrashRatePerHour is crashes divided by the wall-clock hours spanned
	// by the history window (first event to last event).
	CrashRatePerHour float64

	DistinctTests int
	FlakyTests    int
	// FlakyTestRate is flaky names / distinct names as a percentage.
	FlakyTestRate float64

	Samples        int
	MeanResponseMs float64
	P50ResponseMs  float64
	P95ResponseMs  float64
	P99ResponseMs  float64

	WindowStart time.Time
	WindowEnd   time.Time
}
