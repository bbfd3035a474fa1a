// Package cmd contains CLI command definitions
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/betateam/betabench/pkg/interactive"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive mode",
	Long:  `Launches an interactive menu for running scenarios and inspecting results.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runInteractiveMenu(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractiveMenu(cmd *cobra.Command) {
	fmt.Println("Betabench - Interactive Mode")
	fmt.Println("============================")
	fmt.Println()

	for {
		options := []interactive.MenuOption{
			{
				Name:        "Run Scenarios",
				Description: "Pick scenarios and run them",
				Action: func() error {
					if err := runCmd.RunE(cmd, nil); err != nil {
						fmt.Printf("\nError: %v\n", err)
					}
					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "Show Metrics",
				Description: "Replay the journal and show aggregates",
				Action: func() error {
					if err := metricsCmd.RunE(cmd, nil); err != nil {
						fmt.Printf("\nError: %v\n", err)
					}
					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "Show Config",
				Description: "Display current environment configuration",
				Action: func() error {
					if err := showConfigCmd.RunE(cmd, nil); err != nil {
						fmt.Printf("\nError: %v\n", err)
					}
					interactive.PauseForEnter()
					return nil
				},
			},
		}

		if err := interactive.ShowMainMenu(options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return
			}

			fmt.Printf("\nError: %v\n", err)
		}
	}
}
