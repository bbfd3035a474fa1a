package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/betateam/betabench/internal/config"
	"github.com/betateam/betabench/internal/dashboard"
	"github.com/betateam/betabench/internal/scenario"
)

var stabilityDuration time.Duration

var stabilityCmd = &cobra.Command{
	Use:   "stability [scenario]",
	Short: "Run a long-duration stability benchmark",
	Long: `Loop one scenario's operations for a fixed wall-clock budget,
collecting timing samples and crash events throughout.

Interrupting the run (Ctrl-C) keeps everything collected so far; the
summary covers the partial run.

Examples:
  ./bin/betabench stability soak --duration 2h`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		loader := scenario.NewLoader(Logger, cfg.ScenarioDir)

		orch, stop, err := buildOrchestrator(cfg, loader)
		if err != nil {
			return err
		}
		defer stop()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		snap, err := orch.RunStability(ctx, args[0], stabilityDuration)
		if err != nil {
			return err
		}

		renderer := dashboard.NewRenderer(Logger)
		fmt.Print(dashboard.NewSummaryFormatter(Logger, renderer).Format(snap))
		fmt.Println()

		return nil
	},
}

func init() {
	stabilityCmd.Flags().DurationVar(&stabilityDuration, "duration", time.Hour, "wall-clock budget for the run")
	rootCmd.AddCommand(stabilityCmd)
}
