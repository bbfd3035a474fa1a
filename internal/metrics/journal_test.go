package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_ReplayReproducesAggregates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")

	journal, err := OpenJournal(testLogger(), path)
	require.NoError(t, err)

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 30*time.Second)
	live := NewCollector(testLogger(), WithJournal(journal), WithClock(clock.Now), WithMinRuns(3))

	outcomes := []TestOutcome{
		OutcomePassed, OutcomeFailed, OutcomePassed, OutcomePassed,
	}
	for _, outcome := range outcomes {
		require.NoError(t, live.RecordTestResult(TestEvent{
			Name:     "login_test",
			Outcome:  outcome,
			Duration: 120 * time.Millisecond,
			Scenario: "auth",
		}))
	}

	for i := 1; i <= 10; i++ {
		require.NoError(t, live.RecordSample(SampleEvent{
			Operation: "navigation",
			Duration:  time.Duration(i*10) * time.Millisecond,
			Scenario:  "auth",
		}))
	}

	require.NoError(t, live.RecordCrash())

	liveSnap := live.Snapshot()
	require.NoError(t, live.Stop())

	replayed, err := Replay(testLogger(), path, WithMinRuns(3))
	require.NoError(t, err)

	assert.Equal(t, liveSnap, replayed.Snapshot())
	assert.Equal(t, live.Events(), replayed.Events())
	assert.Equal(t, live.FlakyTests(3), replayed.FlakyTests(3))
}

func TestJournal_AppendAfterCloseFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")

	journal, err := OpenJournal(testLogger(), path)
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	err = journal.Append(Event{Kind: KindCrash, Timestamp: time.Now().UTC()})
	require.Error(t, err)

	// Close is idempotent.
	require.NoError(t, journal.Close())
}

func TestReadEvents_PreservesOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")

	journal, err := OpenJournal(testLogger(), path)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kinds := []EventKind{KindCrash, KindTestResult, KindBenchmarkSample, KindCrash}

	for i, kind := range kinds {
		ev := Event{Kind: kind, Timestamp: base.Add(time.Duration(i) * time.Second)}

		switch kind {
		case KindTestResult:
			ev.Test = &TestEvent{Name: "t", Outcome: OutcomePassed}
		case KindBenchmarkSample:
			ev.Sample = &SampleEvent{Operation: "op", Duration: time.Millisecond}
		}

		require.NoError(t, journal.Append(ev))
	}

	require.NoError(t, journal.Close())

	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, len(kinds))

	for i, kind := range kinds {
		assert.Equal(t, kind, events[i].Kind)
		assert.True(t, events[i].Timestamp.Equal(base.Add(time.Duration(i)*time.Second)))
	}
}
