package metrics

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// fakeClock hands out timestamps a fixed step apart.
type fakeClock struct {
	current time.Time
	step    time.Duration
}

func newFakeClock(start time.Time, step time.Duration) *fakeClock {
	return &fakeClock{current: start, step: step}
}

func (f *fakeClock) Now() time.Time {
	t := f.current
	f.current = f.current.Add(f.step)
	return t
}

func TestCollector_PassRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outcomes []TestOutcome
		expected float64
	}{
		{
			name:     "empty history",
			outcomes: nil,
			expected: 0,
		},
		{
			name:     "all passed",
			outcomes: []TestOutcome{OutcomePassed, OutcomePassed},
			expected: 100,
		},
		{
			name:     "half passed",
			outcomes: []TestOutcome{OutcomePassed, OutcomeFailed, OutcomePassed, OutcomeError},
			expected: 50,
		},
		{
			name:     "skipped counts against rate",
			outcomes: []TestOutcome{OutcomePassed, OutcomeSkipped, OutcomeSkipped, OutcomeSkipped},
			expected: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewCollector(testLogger())

			for i, outcome := range tt.outcomes {
				require.NoError(t, c.RecordTestResult(TestEvent{
					Name:    "test_" + string(rune('a'+i)),
					Outcome: outcome,
				}))
			}

			snap := c.Snapshot()
			assert.InDelta(t, tt.expected, snap.PassRate, 0.0001)
			assert.Equal(t, len(tt.outcomes), snap.TotalTests)
		})
	}
}

func TestCollector_CrashRateScalesWithWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	build := func(windowHours float64) Snapshot {
		clock := newFakeClock(base, 0)
		c := NewCollector(testLogger(), WithClock(clock.Now))

		require.NoError(t, c.RecordCrash())
		require.NoError(t, c.RecordCrash())

		// Advance to the end of the window before the final event.
		clock.current = base.Add(time.Duration(windowHours * float64(time.Hour)))
		require.NoError(t, c.RecordCrash())

		return c.Snapshot()
	}

	one := build(1)
	two := build(2)

	assert.Equal(t, 3, one.CrashCount)
	assert.InDelta(t, 3.0, one.CrashRatePerHour, 0.0001)

	// Same crash count over twice the window halves the rate.
	assert.InDelta(t, one.CrashRatePerHour/2, two.CrashRatePerHour, 0.0001)
}

func TestCollector_CrashRateZeroWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 0)
	c := NewCollector(testLogger(), WithClock(clock.Now))

	require.NoError(t, c.RecordCrash())

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.CrashCount)
	assert.Zero(t, snap.CrashRatePerHour)
}

func TestCollector_FlakyDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		minRuns  int
		outcomes []TestOutcome
		flaky    bool
	}{
		{
			name:     "below window never flagged",
			minRuns:  3,
			outcomes: []TestOutcome{OutcomePassed, OutcomeFailed},
			flaky:    false,
		},
		{
			name:     "mixed window flagged",
			minRuns:  3,
			outcomes: []TestOutcome{OutcomePassed, OutcomeFailed, OutcomePassed},
			flaky:    true,
		},
		{
			name:     "all passing not flagged",
			minRuns:  3,
			outcomes: []TestOutcome{OutcomePassed, OutcomePassed, OutcomePassed, OutcomePassed},
			flaky:    false,
		},
		{
			name:     "consistently failing not flagged",
			minRuns:  3,
			outcomes: []TestOutcome{OutcomeFailed, OutcomeFailed, OutcomeFailed},
			flaky:    false,
		},
		{
			name:    "old failure outside window",
			minRuns: 3,
			outcomes: []TestOutcome{
				OutcomeFailed,
				OutcomePassed, OutcomePassed, OutcomePassed,
			},
			flaky: false,
		},
		{
			name:    "fail still inside window",
			minRuns: 3,
			outcomes: []TestOutcome{
				OutcomePassed, OutcomeFailed, OutcomePassed, OutcomePassed,
			},
			flaky: true,
		},
		{
			name:     "error counts as fail",
			minRuns:  3,
			outcomes: []TestOutcome{OutcomePassed, OutcomeError, OutcomePassed},
			flaky:    true,
		},
		{
			name:    "skipped excluded from window",
			minRuns: 3,
			outcomes: []TestOutcome{
				OutcomeFailed, OutcomePassed, OutcomePassed,
				OutcomeSkipped, OutcomeSkipped,
			},
			flaky: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewCollector(testLogger(), WithMinRuns(tt.minRuns))

			for _, outcome := range tt.outcomes {
				require.NoError(t, c.RecordTestResult(TestEvent{
					Name:    "login_test",
					Outcome: outcome,
				}))
			}

			records := c.FlakyTests(tt.minRuns)
			snap := c.Snapshot()

			if tt.flaky {
				require.Len(t, records, 1)
				assert.Equal(t, "login_test", records[0].Name)
				assert.Equal(t, 1, snap.FlakyTests)
			} else {
				assert.Empty(t, records)
				assert.Zero(t, snap.FlakyTests)
			}
		})
	}
}

func TestCollector_FlakinessRate(t *testing.T) {
	t.Parallel()

	c := NewCollector(testLogger(), WithMinRuns(4))

	for _, outcome := range []TestOutcome{
		OutcomePassed, OutcomeFailed, OutcomePassed, OutcomePassed,
	} {
		require.NoError(t, c.RecordTestResult(TestEvent{Name: "checkout", Outcome: outcome}))
	}

	records := c.FlakyTests(4)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].WindowRuns)
	assert.Equal(t, 3, records[0].PassCount)
	assert.Equal(t, 1, records[0].FailCount)
	assert.InDelta(t, 25.0, records[0].FlakinessRate, 0.0001)
}

func TestCollector_ResponseTimes(t *testing.T) {
	t.Parallel()

	c := NewCollector(testLogger())

	for i := 1; i <= 100; i++ {
		require.NoError(t, c.RecordSample(SampleEvent{
			Operation: "navigation",
			Duration:  time.Duration(i) * time.Millisecond,
		}))
	}

	mean, p50, p95, p99, n := c.ResponseTimes("navigation")
	assert.Equal(t, 100, n)
	assert.InDelta(t, 50.5, mean, 0.0001)
	assert.InDelta(t, 50.0, p50, 0.0001)
	assert.InDelta(t, 95.0, p95, 0.0001)
	assert.InDelta(t, 99.0, p99, 0.0001)

	_, _, _, _, zero := c.ResponseTimes("missing_op")
	assert.Zero(t, zero)
}

func TestCollector_ResponseTimesEmpty(t *testing.T) {
	t.Parallel()

	c := NewCollector(testLogger())

	mean, p50, p95, p99, n := c.ResponseTimes("")
	assert.Zero(t, n)
	assert.Zero(t, mean)
	assert.Zero(t, p50)
	assert.Zero(t, p95)
	assert.Zero(t, p99)
}

func TestCollector_TrendSeries(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Minute)
	c := NewCollector(testLogger(), WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.NoError(t, c.RecordSample(SampleEvent{
			Operation: "fps",
			Value:     float64(55 + i),
			HasValue:  true,
		}))
	}

	points := c.TrendSeries("fps", 3)
	require.Len(t, points, 3)
	assert.InDelta(t, 57.0, points[0].Value, 0.0001)
	assert.InDelta(t, 59.0, points[2].Value, 0.0001)
}

func TestCollector_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	c := NewCollector(testLogger())

	const writers = 8
	const perWriter = 50

	done := make(chan error, writers)
	for w := 0; w < writers; w++ {
		go func() {
			var firstErr error
			for i := 0; i < perWriter; i++ {
				if err := c.RecordCrash(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			done <- firstErr
		}()
	}

	for w := 0; w < writers; w++ {
		require.NoError(t, <-done)
	}

	snap := c.Snapshot()
	assert.Equal(t, writers*perWriter, snap.CrashCount)
}
