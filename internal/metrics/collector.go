package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMinRuns is the flaky-detection window used when the caller does
// not supply one.
const DefaultMinRuns = 3

// ErrWriteContention signals that an append could not acquire the store
// within the retry budget. The condition is transient: the caller may
// retry the write.
var ErrWriteContention = errors.New("metrics store write contention")

const (
	appendAttempts = 50
	appendBackoff  = time.Millisecond
)

// Collector is the append-only sink for test-result, benchmark-sample,
// and crash events, and the sole owner of the canonical history.
type Collector interface {
	Start(ctx context.Context) error
	Stop() error

	RecordTestResult(ev TestEvent) error
	RecordSample(ev SampleEvent) error
	RecordCrash() error

	Snapshot() Snapshot
	FlakyTests(minRuns int) []FlakyTestRecord
	// ResponseTimes returns mean and percentile sample durations in
	// milliseconds, optionally filtered by operation name ("" = all).
	ResponseTimes(operation string) (mean, p50, p95, p99 float64, n int)
	TrendSeries(operation string, lastN int) []TrendPoint
	Events() []Event
}

type collector struct {
	log     logrus.FieldLogger
	minRuns int
	journal *Journal

	sem    chan struct{} // single-holder append lock with tryable acquire
	events []Event

	now func() time.Time
}

// Option configures a collector.
type Option func(*collector)

// WithJournal attaches a durable append log; every recorded event is
// appended to it inside the same critical section as the in-memory
// append, so the journal order matches the history order.
func WithJournal(j *Journal) Option {
	return func(c *collector) { c.journal = j }
}

// WithMinRuns overrides the default flaky-detection window used by
// Snapshot.
func WithMinRuns(minRuns int) Option {
	return func(c *collector) {
		if minRuns > 0 {
			c.minRuns = minRuns
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *collector) { c.now = now }
}

// NewCollector creates an empty collector.
func NewCollector(log logrus.FieldLogger, opts ...Option) Collector {
	c := &collector{
		log:     log.WithField("component", "metrics_collector"),
		minRuns: DefaultMinRuns,
		sem:     make(chan struct{}, 1),
		events:  make([]Event, 0, 256),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *collector) Start(_ context.Context) error {
	c.log.Debug("metrics collector started")
	return nil
}

func (c *collector) Stop() error {
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			return fmt.Errorf("closing journal: %w", err)
		}
	}

	c.log.Debug("metrics collector stopped")

	return nil
}

// RecordTestResult appends a test-result event.
func (c *collector) RecordTestResult(ev TestEvent) error {
	return c.append(Event{Kind: KindTestResult, Timestamp: c.now().UTC(), Test: &ev})
}

// RecordSample appends a benchmark-sample event.
func (c *collector) RecordSample(ev SampleEvent) error {
	return c.append(Event{Kind: KindBenchmarkSample, Timestamp: c.now().UTC(), Sample: &ev})
}

// RecordCrash appends a crash event.
func (c *collector) RecordCrash() error {
	return c.append(Event{Kind: KindCrash, Timestamp: c.now().UTC()})
}

// append serializes writers through a single-slot semaphore. A writer
// that cannot acquire the slot retries with backoff and ultimately
// returns ErrWriteContention instead of blocking indefinitely.
func (c *collector) append(ev Event) error {
	for attempt := 0; attempt < appendAttempts; attempt++ {
		select {
		case c.sem <- struct{}{}:
			c.events = append(c.events, ev)

			var err error
			if c.journal != nil {
				err = c.journal.Append(ev)
			}
			<-c.sem

			if err != nil {
				return fmt.Errorf("journaling event: %w", err)
			}

			return nil
		default:
			time.Sleep(appendBackoff)
		}
	}

	c.log.WithField("kind", ev.Kind).Warn("metrics write contended past retry budget")

	return ErrWriteContention
}

// snapshotView copies the history under the append lock.
func (c *collector) snapshotView() []Event {
	c.sem <- struct{}{}
	view := make([]Event, len(c.events))
	copy(view, c.events)
	<-c.sem

	return view
}

// Events returns a copy of the full ordered history.
func (c *collector) Events() []Event {
	return c.snapshotView()
}

// Snapshot derives the point-in-time aggregate from the full history.
func (c *collector) Snapshot() Snapshot {
	events := c.snapshotView()

	var snap Snapshot

	durationsMs := make([]float64, 0, len(events))
	byName := make(map[string][]TestOutcome)
	nameOrder := make([]string, 0)

	for _, ev := range events {
		if snap.WindowStart.IsZero() || ev.Timestamp.Before(snap.WindowStart) {
			snap.WindowStart = ev.Timestamp
		}
		if ev.Timestamp.After(snap.WindowEnd) {
			snap.WindowEnd = ev.Timestamp
		}

		switch ev.Kind {
		case KindTestResult:
			snap.TotalTests++
			switch ev.Test.Outcome {
			case OutcomePassed:
				snap.PassedTests++
			case OutcomeFailed:
				snap.FailedTests++
			case OutcomeSkipped:
				snap.SkippedTests++
			case OutcomeError:
				snap.ErrorTests++
			}

			if _, seen := byName[ev.Test.Name]; !seen {
				nameOrder = append(nameOrder, ev.Test.Name)
			}
			byName[ev.Test.Name] = append(byName[ev.Test.Name], ev.Test.Outcome)

		case KindBenchmarkSample:
			durationsMs = append(durationsMs, float64(ev.Sample.Duration)/float64(time.Millisecond))

		case KindCrash:
			snap.CrashCount++
		}
	}

	if snap.TotalTests > 0 {
		snap.PassRate = float64(snap.PassedTests) / float64(snap.TotalTests) * 100.0
	}

	if snap.CrashCount > 0 {
		hours := snap.WindowEnd.Sub(snap.WindowStart).Hours()
		if hours > 0 {
			snap.CrashRatePerHour = float64(snap.CrashCount) / hours
		}
	}

	snap.DistinctTests = len(byName)
	for _, name := range nameOrder {
		if isFlaky(byName[name], c.minRuns) {
			snap.FlakyTests++
		}
	}
	if snap.DistinctTests > 0 {
		snap.FlakyTestRate = float64(snap.FlakyTests) / float64(snap.DistinctTests) * 100.0
	}

	snap.Samples = len(durationsMs)
	snap.MeanResponseMs, snap.P50ResponseMs, snap.P95ResponseMs, snap.P99ResponseMs = summarize(durationsMs)

	return snap
}

// FlakyTests lists tests whose last minRuns results contain both a pass
// and a fail, most flaky first.
func (c *collector) FlakyTests(minRuns int) []FlakyTestRecord {
	if minRuns <= 0 {
		minRuns = c.minRuns
	}

	events := c.snapshotView()

	byName := make(map[string][]TestOutcome)
	nameOrder := make([]string, 0)
	for _, ev := range events {
		if ev.Kind != KindTestResult {
			continue
		}
		if _, seen := byName[ev.Test.Name]; !seen {
			nameOrder = append(nameOrder, ev.Test.Name)
		}
		byName[ev.Test.Name] = append(byName[ev.Test.Name], ev.Test.Outcome)
	}

	records := make([]FlakyTestRecord, 0)
	for _, name := range nameOrder {
		window := recentWindow(byName[name], minRuns)
		if len(window) < minRuns {
			continue
		}

		pass, fail := tally(window)
		if pass == 0 || fail == 0 {
			continue
		}

		records = append(records, FlakyTestRecord{
			Name:          name,
			WindowRuns:    len(window),
			PassCount:     pass,
			FailCount:     fail,
			FlakinessRate: float64(minInt(pass, fail)) / float64(len(window)) * 100.0,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FlakinessRate > records[j].FlakinessRate
	})

	return records
}

// ResponseTimes summarizes benchmark sample durations in milliseconds,
// optionally filtered by operation name.
func (c *collector) ResponseTimes(operation string) (mean, p50, p95, p99 float64, n int) {
	events := c.snapshotView()

	durationsMs := make([]float64, 0, len(events))
	for _, ev := range events {
		if ev.Kind != KindBenchmarkSample {
			continue
		}
		if operation != "" && ev.Sample.Operation != operation {
			continue
		}
		durationsMs = append(durationsMs, float64(ev.Sample.Duration)/float64(time.Millisecond))
	}

	mean, p50, p95, p99 = summarize(durationsMs)

	return mean, p50, p95, p99, len(durationsMs)
}

// TrendSeries returns the last lastN sample values for an operation as a
// labelled series. Samples without a numeric payload fall back to their
// duration in milliseconds.
func (c *collector) TrendSeries(operation string, lastN int) []TrendPoint {
	events := c.snapshotView()

	points := make([]TrendPoint, 0)
	for _, ev := range events {
		if ev.Kind != KindBenchmarkSample || ev.Sample.Operation != operation {
			continue
		}

		value := float64(ev.Sample.Duration) / float64(time.Millisecond)
		if ev.Sample.HasValue {
			value = ev.Sample.Value
		}

		points = append(points, TrendPoint{
			Label: ev.Timestamp.UTC().Format(time.RFC3339),
			Value: value,
		})
	}

	if lastN > 0 && len(points) > lastN {
		points = points[len(points)-lastN:]
	}

	return points
}

// isFlaky applies the window rule: flagged iff the most recent minRuns
// results contain at least one pass and one fail, never with fewer than
// minRuns results. Skipped runs are excluded from the window; errored
// runs count as failures.
func isFlaky(history []TestOutcome, minRuns int) bool {
	window := recentWindow(history, minRuns)
	if len(window) < minRuns {
		return false
	}

	pass, fail := tally(window)

	return pass > 0 && fail > 0
}

func recentWindow(history []TestOutcome, minRuns int) []TestOutcome {
	counted := make([]TestOutcome, 0, len(history))
	for _, o := range history {
		if o == OutcomeSkipped {
			continue
		}
		counted = append(counted, o)
	}

	if len(counted) > minRuns {
		counted = counted[len(counted)-minRuns:]
	}

	return counted
}

func tally(window []TestOutcome) (pass, fail int) {
	for _, o := range window {
		if o == OutcomePassed {
			pass++
		} else {
			fail++
		}
	}

	return pass, fail
}

// summarize computes mean and nearest-rank percentiles. All zeros for an
// empty input: aggregates are defined, not NaN, when nothing was sampled.
func summarize(values []float64) (mean, p50, p95, p99 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return sum / float64(len(sorted)),
		percentile(sorted, 50),
		percentile(sorted, 95),
		percentile(sorted, 99)
}

// percentile is nearest-rank over an ascending slice.
func percentile(sorted []float64, p int) float64 {
	rank := (len(sorted)*p + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}

	return sorted[rank-1]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var _ Collector = (*collector)(nil)
