// Package benchmark executes scenarios — ordered lists of named
// operations — against connected adapter instances, timing every
// operation and feeding results and samples into the metrics collector.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betateam/betabench/internal/adapter"
	"github.com/betateam/betabench/internal/metrics"
)

// Step is one named operation with its opaque parameters.
type Step struct {
	Operation string
	Params    adapter.Params
}

// Scenario is an ordered list of steps run against one adapter instance.
// Steps execute strictly sequentially; a session is never shared by two
// in-flight operations.
type Scenario struct {
	Name  string
	Steps []Step
}

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Scenario    string
	Results     []*adapter.TestResult
	SessionLost bool
	Cancelled   bool
	Started     time.Time
	Duration    time.Duration
}

// Passed reports whether every executed step passed and the session
// survived the whole scenario.
func (r *ScenarioResult) Passed() bool {
	if r.SessionLost || r.Cancelled {
		return false
	}

	for _, res := range r.Results {
		if res.Status != adapter.StatusPassed {
			return false
		}
	}

	return len(r.Results) > 0
}

// Counts tallies the results by status.
func (r *ScenarioResult) Counts() (passed, failed, skipped, errored int) {
	for _, res := range r.Results {
		switch res.Status {
		case adapter.StatusPassed:
			passed++
		case adapter.StatusFailed:
			failed++
		case adapter.StatusSkipped:
			skipped++
		case adapter.StatusError:
			errored++
		}
	}

	return passed, failed, skipped, errored
}

// Runner drives scenarios through adapters and records every outcome
// into the metrics collector as it happens, so partial progress is
// already flushed when a run is cancelled.
type Runner struct {
	log       logrus.FieldLogger
	collector metrics.Collector
}

// NewRunner creates a benchmark runner.
func NewRunner(log logrus.FieldLogger, collector metrics.Collector) *Runner {
	return &Runner{
		log:       log.WithField("component", "benchmark_runner"),
		collector: collector,
	}
}

// RunScenario executes the scenario's steps sequentially on a connected
// adapter. A failing step does not abort the remaining steps; loss of
// the backend session does, marking every remaining step skipped. On
// context cancellation no further step is dispatched.
func (r *Runner) RunScenario(ctx context.Context, ad adapter.Adapter, sc Scenario) *ScenarioResult {
	result := &ScenarioResult{
		Scenario: sc.Name,
		Results:  make([]*adapter.TestResult, 0, len(sc.Steps)),
		Started:  time.Now(),
	}

	log := r.log.WithField("scenario", sc.Name)
	log.WithField("steps", len(sc.Steps)).Info("running scenario")

	for i, step := range sc.Steps {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			r.skipRemaining(result, sc, i, "run cancelled")
			result.Duration = time.Since(result.Started)
			return result
		default:
		}

		res, lost := r.runStep(ctx, ad, sc.Name, step)
		result.Results = append(result.Results, res)

		if lost {
			result.SessionLost = true
			r.skipRemaining(result, sc, i+1, "session lost")
			log.Warn("session lost, skipping remaining operations")
			break
		}
	}

	r.recordResourceMetrics(ctx, ad, sc.Name)

	result.Duration = time.Since(result.Started)

	passed, failed, skipped, errored := result.Counts()
	log.WithFields(logrus.Fields{
		"passed":   passed,
		"failed":   failed,
		"skipped":  skipped,
		"errors":   errored,
		"duration": result.Duration,
	}).Info("scenario finished")

	return result
}

// runStep executes one operation, records its sample and result, and
// reports whether the session was lost.
func (r *Runner) runStep(ctx context.Context, ad adapter.Adapter, scenario string, step Step) (*adapter.TestResult, bool) {
	start := time.Now()
	res, err := ad.RunTest(ctx, step.Operation, step.Params)
	elapsed := time.Since(start)

	if err != nil {
		lost := errors.Is(err, adapter.ErrSessionLost)

		res = &adapter.TestResult{
			Name:         step.Operation,
			Status:       adapter.StatusError,
			Duration:     elapsed,
			ErrorMessage: err.Error(),
			Timestamp:    time.Now(),
		}
		r.record(scenario, res, elapsed)

		return res, lost
	}

	r.record(scenario, res, elapsed)

	return res, false
}

func (r *Runner) record(scenario string, res *adapter.TestResult, elapsed time.Duration) {
	if err := r.collector.RecordSample(metrics.SampleEvent{
		Operation: res.Name,
		Duration:  elapsed,
		Scenario:  scenario,
	}); err != nil {
		r.log.WithError(err).Warn("failed to record benchmark sample")
	}

	if err := r.collector.RecordTestResult(metrics.TestEvent{
		Name:     res.Name,
		Outcome:  outcomeFor(res.Status),
		Duration: res.Duration,
		Detail:   res.ErrorMessage,
		Scenario: scenario,
	}); err != nil {
		r.log.WithError(err).Warn("failed to record test result")
	}
}

// skipRemaining marks steps from index on as skipped and records them,
// so aggregate counts reflect the whole scenario.
func (r *Runner) skipRemaining(result *ScenarioResult, sc Scenario, from int, reason string) {
	for _, step := range sc.Steps[from:] {
		res := &adapter.TestResult{
			Name:         step.Operation,
			Status:       adapter.StatusSkipped,
			ErrorMessage: reason,
			Timestamp:    time.Now(),
		}
		result.Results = append(result.Results, res)

		if err := r.collector.RecordTestResult(metrics.TestEvent{
			Name:     step.Operation,
			Outcome:  metrics.OutcomeSkipped,
			Detail:   reason,
			Scenario: sc.Name,
		}); err != nil {
			r.log.WithError(err).Warn("failed to record skipped result")
		}
	}
}

// recordResourceMetrics folds the adapter's end-of-scenario resource
// snapshot into the event history: crashes as crash events, observed
// gauges as valued samples.
func (r *Runner) recordResourceMetrics(ctx context.Context, ad adapter.Adapter, scenario string) {
	rm, err := ad.CollectMetrics(ctx)
	if err != nil {
		r.log.WithError(err).Debug("resource metrics unavailable")
		return
	}

	for i := 0; i < rm.CrashCount; i++ {
		if err := r.collector.RecordCrash(); err != nil {
			r.log.WithError(err).Warn("failed to record crash event")
		}
	}

	gauges := map[string]adapter.Gauge{
		"load_time_ms": rm.LoadTimeMs,
		"memory_mb":    rm.MemoryMB,
		"cpu_percent":  rm.CPUPercent,
		"fps":          rm.FPS,
		"ui_stability": rm.UIStability,
	}
	for name, g := range gauges {
		if !g.Available {
			continue
		}

		r.recordValue(scenario, name, g.Value)
	}

	for name, value := range rm.Custom {
		r.recordValue(scenario, name, value)
	}
}

func (r *Runner) recordValue(scenario, operation string, value float64) {
	if err := r.collector.RecordSample(metrics.SampleEvent{
		Operation: operation,
		Value:     value,
		HasValue:  true,
		Scenario:  scenario,
	}); err != nil {
		r.log.WithError(err).Warn("failed to record resource sample")
	}
}

// StabilityResult summarizes a fixed-duration stability run.
type StabilityResult struct {
	Scenario   string
	Iterations int
	Samples    int
	Cancelled  bool
	Elapsed    time.Duration
}

// RunStability loops the scenario's operations until the wall-clock
// budget elapses or ctx is cancelled. Samples are recorded as they are
// taken, so everything gathered before a cancellation is preserved; no
// new operation is dispatched after the signal.
func (r *Runner) RunStability(ctx context.Context, ad adapter.Adapter, sc Scenario, budget time.Duration) (*StabilityResult, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("stability budget must be positive, got %s", budget)
	}

	log := r.log.WithFields(logrus.Fields{"scenario": sc.Name, "budget": budget})
	log.Info("running stability benchmark")

	result := &StabilityResult{Scenario: sc.Name}
	start := time.Now()
	deadline := start.Add(budget)

loop:
	for time.Now().Before(deadline) {
		for _, step := range sc.Steps {
			select {
			case <-ctx.Done():
				result.Cancelled = true
				break loop
			default:
			}

			if !time.Now().Before(deadline) {
				break loop
			}

			_, lost := r.runStep(ctx, ad, sc.Name, step)
			result.Samples++

			if lost {
				result.Elapsed = time.Since(start)
				return result, fmt.Errorf("stability run aborted: %w", adapter.ErrSessionLost)
			}
		}

		result.Iterations++
	}

	result.Elapsed = time.Since(start)

	log.WithFields(logrus.Fields{
		"iterations": result.Iterations,
		"samples":    result.Samples,
		"cancelled":  result.Cancelled,
	}).Info("stability benchmark finished")

	return result, nil
}

// Bound pairs a connected adapter with the scenario it will run.
type Bound struct {
	Adapter  adapter.Adapter
	Scenario Scenario
}

// RunGroup executes independent scenarios concurrently, each on its own
// adapter instance, bounded by the worker-pool size. Results are
// returned in input order.
func (r *Runner) RunGroup(ctx context.Context, bound []Bound, concurrency int) []*ScenarioResult {
	if concurrency <= 0 {
		concurrency = 1
	}

	type job struct {
		index int
		bound Bound
	}

	results := make([]*ScenarioResult, len(bound))
	jobs := make(chan job, len(bound))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := range jobs {
				// Each worker writes a unique index, no mutex needed.
				results[j.index] = r.RunScenario(ctx, j.bound.Adapter, j.bound.Scenario)
			}
		}()
	}

	for i, b := range bound {
		jobs <- job{index: i, bound: b}
	}
	close(jobs)

	wg.Wait()

	return results
}

func outcomeFor(status adapter.TestStatus) metrics.TestOutcome {
	switch status {
	case adapter.StatusPassed:
		return metrics.OutcomePassed
	case adapter.StatusFailed:
		return metrics.OutcomeFailed
	case adapter.StatusSkipped:
		return metrics.OutcomeSkipped
	default:
		return metrics.OutcomeError
	}
}
