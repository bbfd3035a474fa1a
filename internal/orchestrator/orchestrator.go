// Package orchestrator provides end-to-end benchmark orchestration:
// resolving adapters, connecting to targets with retry, driving
// scenarios through the runner, and producing reports from the
// collected metrics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/betateam/betabench/internal/adapter"
	"github.com/betateam/betabench/internal/benchmark"
	"github.com/betateam/betabench/internal/config"
	"github.com/betateam/betabench/internal/dashboard"
	"github.com/betateam/betabench/internal/metrics"
	"github.com/betateam/betabench/internal/report"
	"github.com/betateam/betabench/internal/scenario"
)

// Config contains dependencies and settings for the orchestrator.
type Config struct {
	Logger    logrus.FieldLogger
	App       *config.Config
	Registry  *adapter.Registry
	Collector metrics.Collector
	Loader    scenario.Loader
	Writer    io.Writer
}

// RunOutcome is the result of a full orchestrated run.
type RunOutcome struct {
	Results    []*benchmark.ScenarioResult
	Snapshot   metrics.Snapshot
	ReportPath string
	AllPassed  bool
}

// Orchestrator coordinates end-to-end benchmark execution.
// This is the concrete implementation without an interface abstraction.
type Orchestrator struct {
	log       logrus.FieldLogger
	app       *config.Config
	registry  *adapter.Registry
	collector metrics.Collector
	loader    scenario.Loader
	runner    *benchmark.Runner
	writer    io.Writer
	feedback  *report.FeedbackEngine
}

// NewOrchestrator creates a new benchmark orchestrator.
func NewOrchestrator(cfg *Config) *Orchestrator {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	return &Orchestrator{
		log:       cfg.Logger.WithField("component", "orchestrator"),
		app:       cfg.App,
		registry:  cfg.Registry,
		collector: cfg.Collector,
		loader:    cfg.Loader,
		runner:    benchmark.NewRunner(cfg.Logger, cfg.Collector),
		writer:    writer,
		feedback:  report.NewFeedbackEngine(),
	}
}

// Start initializes the orchestrator's dependencies.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.feedback.LoadRules(o.app.FeedbackRulesPath); err != nil {
		return fmt.Errorf("loading feedback rules: %w", err)
	}

	return o.collector.Start(ctx)
}

// Stop flushes and releases the orchestrator's dependencies.
func (o *Orchestrator) Stop() error {
	return o.collector.Stop()
}

// Run executes the named scenarios concurrently and renders reports.
func (o *Orchestrator) Run(ctx context.Context, names []string) (*RunOutcome, error) {
	defs := make([]*scenario.Definition, 0, len(names))

	for _, name := range names {
		def, err := o.loader.Load(name)
		if err != nil {
			return nil, fmt.Errorf("loading scenario %s: %w", name, err)
		}

		defs = append(defs, def)
	}

	return o.RunDefinitions(ctx, defs)
}

// RunDefinitions connects one adapter per scenario, runs them through
// the worker pool, and writes the report bundle.
func (o *Orchestrator) RunDefinitions(ctx context.Context, defs []*scenario.Definition) (*RunOutcome, error) {
	if len(defs) == 0 {
		return nil, errors.New("no scenarios to run")
	}

	o.log.WithField("scenarios", len(defs)).Info("starting benchmark run")

	bound, cleanup, err := o.connectAll(ctx, defs)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	results := o.runner.RunGroup(ctx, bound, o.app.Concurrency)

	snap := o.collector.Snapshot()

	outcome := &RunOutcome{
		Results:   results,
		Snapshot:  snap,
		AllPassed: true,
	}

	for _, res := range results {
		if !res.Passed() {
			outcome.AllPassed = false
		}
	}

	path, err := o.writeReports(results, snap)
	if err != nil {
		return nil, err
	}
	outcome.ReportPath = path

	o.render(results, snap)

	return outcome, nil
}

// RunStability runs one scenario in a loop for the given budget,
// then reports on what was collected, including partial data from a
// cancelled run.
func (o *Orchestrator) RunStability(ctx context.Context, name string, budget time.Duration) (metrics.Snapshot, error) {
	def, err := o.loader.Load(name)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("loading scenario %s: %w", name, err)
	}

	ad, err := o.connect(ctx, def)
	if err != nil {
		return metrics.Snapshot{}, err
	}
	defer ad.Disconnect()

	result, err := o.runner.RunStability(ctx, ad, def.Scenario(), budget)
	if err != nil && !errors.Is(err, adapter.ErrSessionLost) {
		return metrics.Snapshot{}, err
	}

	if result != nil && result.Cancelled {
		o.log.WithField("samples", result.Samples).Warn("stability run cancelled, keeping partial data")
	}

	return o.collector.Snapshot(), nil
}

// connectAll connects every scenario's adapter concurrently. On any
// failure the already-connected adapters are disconnected and the
// first error is returned.
func (o *Orchestrator) connectAll(ctx context.Context, defs []*scenario.Definition) ([]benchmark.Bound, func(), error) {
	bound := make([]benchmark.Bound, len(defs))

	g, gctx := errgroup.WithContext(ctx)

	for i, def := range defs {
		g.Go(func() error {
			ad, err := o.connect(gctx, def)
			if err != nil {
				return err
			}

			bound[i] = benchmark.Bound{Adapter: ad, Scenario: def.Scenario()}

			return nil
		})
	}

	cleanup := func() {
		for _, b := range bound {
			if b.Adapter != nil {
				b.Adapter.Disconnect()
			}
		}
	}

	if err := g.Wait(); err != nil {
		cleanup()
		return nil, nil, err
	}

	return bound, cleanup, nil
}

// connect builds, configures, and connects an adapter for the
// definition, retrying with a fresh instance on each attempt. Failed
// attempts never leak a half-connected instance into the run.
func (o *Orchestrator) connect(ctx context.Context, def *scenario.Definition) (adapter.Adapter, error) {
	opts, err := def.AdapterOptions()
	if err != nil {
		return nil, err
	}

	desc := def.Descriptor()
	log := o.log.WithFields(logrus.Fields{
		"scenario": def.Name,
		"category": def.Category,
		"target":   desc.Location,
	})

	var lastErr error

	for attempt := 1; attempt <= o.app.ConnectAttempts; attempt++ {
		factory, err := o.registry.Resolve(def.Category)
		if err != nil {
			return nil, err
		}

		ad := factory(o.log)

		if err := ad.Configure(opts); err != nil {
			return nil, fmt.Errorf("configuring adapter for %s: %w", def.Name, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.app.ConnectTimeout)
		err = ad.Connect(attemptCtx, desc)
		cancel()

		if err == nil {
			log.WithField("attempt", attempt).Info("connected to target")
			return ad, nil
		}

		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("connect attempt failed")

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &adapter.ConnectionError{Target: desc.Location, Err: lastErr}
}

// writeReports builds the report bundle from the run: HTML and JSON
// reports, the chart bundle, the exchange directory, and issues derived
// from failures. The run's summary is appended to the history file last
// so trends cover prior runs only.
func (o *Orchestrator) writeReports(results []*benchmark.ScenarioResult, snap metrics.Snapshot) (string, error) {
	gen := report.NewGenerator(o.log, o.app.OutputDir)
	exchange := report.NewExchangeWriter(o.log, o.app.ExchangeDir)
	vis := report.NewVisualizer(o.log, o.app.OutputDir)

	if err := gen.LoadHistory(o.app.HistoryPath); err != nil {
		o.log.WithError(err).Warn("failed to load report history")
	}

	gen.AttachSnapshot(&snap)

	for _, res := range results {
		suite := &report.Suite{Name: res.Scenario, StartTime: res.Started, EndTime: res.Started.Add(res.Duration)}
		day := res.Started.Format("2006-01-02")

		for _, tr := range res.Results {
			suite.Add(report.FromResult(tr))
			vis.AddHeatmapEntry(tr.Name, day, string(tr.Status))

			if tr.Status == adapter.StatusFailed || tr.Status == adapter.StatusError {
				o.addIssue(gen, res.Scenario, tr)
			}

			if tr.ScreenshotPath != "" {
				diff := report.ScreenshotDiff{
					Name:      fmt.Sprintf("%s/%s", res.Scenario, tr.Name),
					Baseline:  tr.Metadata["baseline"],
					Current:   tr.ScreenshotPath,
					Timestamp: tr.Timestamp,
				}
				gen.AddScreenshotDiff(diff)
				vis.AddScreenshotDiff(diff)
			}
		}

		gen.AddSuite(suite)
		exchange.AddSuite(suite)
	}

	stats := gen.Summary().Statistics
	vis.AddPassFailChart("Test Outcomes", stats.Passed, stats.Failed, stats.Skipped)

	if trends := gen.Trends(); trends != nil {
		labels := make([]string, len(trends.PassRates))
		for i := range labels {
			labels[i] = fmt.Sprintf("run %d", i+1)
		}
		vis.AddTrendChart("Pass Rate Trend", "pass rate %", labels, trends.PassRates)
	}

	vis.HeatmapChart("Failures by Test")

	path, err := gen.WriteHTML("report.html")
	if err != nil {
		return "", fmt.Errorf("writing HTML report: %w", err)
	}

	if _, err := gen.WriteJSON("report.json"); err != nil {
		return "", fmt.Errorf("writing JSON report: %w", err)
	}

	if _, err := vis.Export("dashboard.json"); err != nil {
		return "", fmt.Errorf("writing chart bundle: %w", err)
	}

	if err := exchange.WriteResults(); err != nil {
		return "", fmt.Errorf("writing exchange results: %w", err)
	}

	if err := exchange.WriteEnvironment(o.environment(results)); err != nil {
		return "", fmt.Errorf("writing exchange environment: %w", err)
	}

	if err := exchange.WriteCategories(nil); err != nil {
		return "", fmt.Errorf("writing exchange categories: %w", err)
	}

	if err := gen.AppendHistory(o.app.HistoryPath); err != nil {
		o.log.WithError(err).Warn("failed to append report history")
	}

	return path, nil
}

// addIssue converts a failed result into a deduplicated issue with
// humanized feedback attached to its description.
func (o *Orchestrator) addIssue(gen report.Generator, scenarioName string, tr *adapter.TestResult) {
	issueType := o.feedback.Classify(tr.ErrorMessage)
	fb := o.feedback.For(issueType, report.Vars{Scenario: scenarioName})

	severity := report.SeverityMedium
	if issueType == "session_lost" {
		severity = report.SeverityCritical
	}

	title := fmt.Sprintf("%s failed in %s", tr.Name, scenarioName)
	description := fmt.Sprintf("%s\n\nTester impact: %s\nAction item: %s", tr.ErrorMessage, fb.Human, fb.Dev)

	gen.AddIssue(title, description, severity, tr.Name, tr.ScreenshotPath)
}

func (o *Orchestrator) environment(results []*benchmark.ScenarioResult) map[string]string {
	env := map[string]string{
		"concurrency": fmt.Sprintf("%d", o.app.Concurrency),
		"scenarios":   fmt.Sprintf("%d", len(results)),
		"min_runs":    fmt.Sprintf("%d", o.app.MinRuns),
	}

	return env
}

// render prints the terminal dashboard for the run.
func (o *Orchestrator) render(results []*benchmark.ScenarioResult, snap metrics.Snapshot) {
	r := dashboard.NewRenderer(o.log)

	fmt.Fprint(o.writer, dashboard.NewResultsFormatter(o.log, r).Format(results))
	fmt.Fprint(o.writer, dashboard.NewSummaryFormatter(o.log, r).Format(snap))

	if flaky := (dashboard.NewFlakyFormatter(o.log, r)).Format(o.collector.FlakyTests(o.app.MinRuns)); flaky != "" {
		fmt.Fprint(o.writer, flaky)
	}

	fmt.Fprintln(o.writer)
}
