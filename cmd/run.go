package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/betateam/betabench/internal/adapter"
	"github.com/betateam/betabench/internal/adapter/game"
	"github.com/betateam/betabench/internal/adapter/vst"
	"github.com/betateam/betabench/internal/adapter/web"
	"github.com/betateam/betabench/internal/adapter/windows"
	"github.com/betateam/betabench/internal/config"
	"github.com/betateam/betabench/internal/metrics"
	"github.com/betateam/betabench/internal/orchestrator"
	"github.com/betateam/betabench/internal/scenario"
	"github.com/betateam/betabench/pkg/interactive"
)

var (
	runAll         bool
	runConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run benchmark scenarios",
	Long: `Run one or more scenarios against their configured targets.

Scenario files live in the scenario directory (SCENARIO_DIR, default
"scenarios") as <name>.yaml. Each file names an adapter category, the
target location, adapter options, and an ordered list of operations.

With no scenario arguments an interactive picker lists the available
scenarios. Use --all to run everything without prompting.

The run produces an HTML and JSON report plus an exchange bundle under
the output directory, and prints a summary dashboard.

Examples:
  ./bin/betabench run checkout login
  ./bin/betabench run --all --concurrency 8`,
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if runConcurrency > 0 {
			cfg.Concurrency = runConcurrency
		}

		loader := scenario.NewLoader(Logger, cfg.ScenarioDir)

		names := args
		if len(names) == 0 {
			names, err = pickScenarios(loader, runAll)
			if err != nil {
				return err
			}
		}

		if len(names) == 0 {
			return fmt.Errorf("no scenarios selected")
		}

		orch, stop, err := buildOrchestrator(cfg, loader)
		if err != nil {
			return err
		}
		defer stop()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		outcome, err := orch.Run(ctx, names)
		if err != nil {
			return err
		}

		fmt.Printf("\nReport written to %s\n", outcome.ReportPath)

		if !outcome.AllPassed {
			failed := 0
			for _, res := range outcome.Results {
				if !res.Passed() {
					failed++
				}
			}

			return fmt.Errorf("%d of %d scenarios failed", failed, len(outcome.Results))
		}

		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every available scenario")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max scenarios to run in parallel (overrides CONCURRENCY)")
	rootCmd.AddCommand(runCmd)
}

// pickScenarios resolves which scenarios to run when none were named
// on the command line.
func pickScenarios(loader scenario.Loader, all bool) ([]string, error) {
	names, err := loader.Names()
	if err != nil {
		return nil, fmt.Errorf("listing scenarios: %w", err)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("no scenario files found")
	}

	if all {
		return names, nil
	}

	return interactive.SelectScenarios(names)
}

// buildRegistry wires every built-in adapter into a fresh registry.
func buildRegistry() (*adapter.Registry, error) {
	registry := adapter.NewRegistry(Logger)

	for _, register := range []func(*adapter.Registry) error{
		web.Register,
		windows.Register,
		game.Register,
		vst.Register,
	} {
		if err := register(registry); err != nil {
			return nil, fmt.Errorf("registering adapter: %w", err)
		}
	}

	return registry, nil
}

// buildOrchestrator assembles the orchestrator with a journal-backed
// collector. The returned stop function flushes the journal.
func buildOrchestrator(cfg *config.Config, loader scenario.Loader) (*orchestrator.Orchestrator, func(), error) {
	registry, err := buildRegistry()
	if err != nil {
		return nil, nil, err
	}

	journal, err := metrics.OpenJournal(Logger, cfg.JournalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening metrics journal: %w", err)
	}

	collector := metrics.NewCollector(Logger,
		metrics.WithJournal(journal),
		metrics.WithMinRuns(cfg.MinRuns),
	)

	orch := orchestrator.NewOrchestrator(&orchestrator.Config{
		Logger:    Logger,
		App:       cfg,
		Registry:  registry,
		Collector: collector,
		Loader:    loader,
	})

	if err := orch.Start(context.Background()); err != nil {
		journal.Close()
		return nil, nil, fmt.Errorf("starting orchestrator: %w", err)
	}

	stop := func() {
		if err := orch.Stop(); err != nil {
			Logger.WithError(err).Warn("failed to stop orchestrator")
		}

		if err := journal.Close(); err != nil {
			Logger.WithError(err).Warn("failed to close metrics journal")
		}
	}

	return orch, stop, nil
}
