package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/flowlogic/pkg/repl"
	"github.com/ormasoftchile/flowlogic/pkg/tui"
)

var consoleCmd = &cobra.Command{
	Use:   "console [workflow.yaml]",
	Short: "Open an interactive console against a workflow",
	Long: `Load a workflow and start an interactive console: evaluate expressions,
set answers, and inspect visibility, validation, and hooks as the answers change.`,
	Args: cobra.ExactArgs(1),
	RunE: runConsole,
}

var walkthroughCmd = &cobra.Command{
	Use:   "walkthrough [workflow.yaml]",
	Short: "Fill a workflow interactively in the terminal",
	Long: `Render the workflow as a terminal form: answer steps, watch visibility
react, and submit sections through validation and lifecycle hooks.`,
	Args: cobra.ExactArgs(1),
	RunE: runWalkthrough,
}

func init() {
	rootCmd.AddCommand(consoleCmd, walkthroughCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(args[0])
	if err != nil {
		return err
	}
	return repl.New(rt.Workflow(), rt).Run(context.Background())
}

func runWalkthrough(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(args[0])
	if err != nil {
		return err
	}
	m := tui.NewModel(rt.Workflow(), rt)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("walkthrough: %w", err)
	}
	return nil
}
