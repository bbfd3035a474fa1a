package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/betateam/betabench/internal/config"
	"github.com/betateam/betabench/internal/dashboard"
	"github.com/betateam/betabench/internal/scenario"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List available scenarios",
	Long:  `Lists every valid scenario file in the scenario directory with its category, target, and step count.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		defs, err := scenario.NewLoader(Logger, cfg.ScenarioDir).LoadAll()
		if err != nil {
			return fmt.Errorf("loading scenarios: %w", err)
		}

		if len(defs) == 0 {
			fmt.Println("No scenarios found.")
			return nil
		}

		renderer := dashboard.NewRenderer(Logger)

		headers := []string{"Scenario", "Category", "Target", "Steps"}
		rows := make([][]string, 0, len(defs))

		for _, name := range sortedNames(defs) {
			def := defs[name]
			rows = append(rows, []string{
				def.Name,
				string(def.Category),
				def.Target,
				fmt.Sprintf("%d", len(def.Steps)),
			})
		}

		renderer.RenderToWriter(rootCmd.OutOrStdout(), headers, rows)

		return nil
	},
}

func sortedNames(defs map[string]*scenario.Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
