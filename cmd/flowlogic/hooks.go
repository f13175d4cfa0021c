package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/flowlogic/pkg/execlog"
	"github.com/ormasoftchile/flowlogic/pkg/runtime"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

var (
	hooksPhase string
	hooksData  string
	hooksRunID string
	hooksDB    string
)

var hooksCmd = &cobra.Command{
	Use:   "hooks [workflow.yaml]",
	Short: "Execute a workflow's lifecycle hooks for a phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runHooks,
}

var hooksLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Query the hook execution log",
	RunE:  runHooksLog,
}

var (
	logRunID  string
	logHookID string
	logLimit  int
	logDB     string
)

func init() {
	hooksCmd.Flags().StringVar(&hooksPhase, "phase", "", "phase to execute (required)")
	hooksCmd.Flags().StringVar(&hooksData, "data", "{}", "run data as a JSON object")
	hooksCmd.Flags().StringVar(&hooksRunID, "run-id", "cli-run", "run identifier for the execution log")
	hooksCmd.Flags().StringVar(&hooksDB, "db", "", "execution log database path (optional)")
	hooksCmd.MarkFlagRequired("phase")

	hooksLogCmd.Flags().StringVar(&logRunID, "run-id", "", "list executions of one run")
	hooksLogCmd.Flags().StringVar(&logHookID, "hook-id", "", "list recent executions of one hook")
	hooksLogCmd.Flags().IntVar(&logLimit, "limit", 50, "maximum entries when querying by hook")
	hooksLogCmd.Flags().StringVar(&logDB, "db", "flowlogic-execlog.db", "execution log database path")
	hooksCmd.AddCommand(hooksLogCmd)
}

func runHooks(cmd *cobra.Command, args []string) error {
	wf, errs := schema.ValidateFile(args[0])
	if schema.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return fmt.Errorf("workflow validation failed")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(hooksData), &data); err != nil {
		return fmt.Errorf("parse --data: %w", err)
	}

	opts := []runtime.Option{}
	if hooksDB != "" {
		store, err := execlog.Open(hooksDB, slog.Default())
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, runtime.WithRecorder(store))
	}

	rt := runtime.New(wf, opts...)
	res := rt.ExecuteHooksForPhase(context.Background(), hooksRunID, hooksPhase, data)
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%d hook error(s)", len(res.Errors))
	}
	return nil
}

func runHooksLog(cmd *cobra.Command, args []string) error {
	store, err := execlog.Open(logDB, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var entries []execlog.Entry
	switch {
	case logRunID != "":
		entries, err = store.ListByRun(ctx, logRunID)
	case logHookID != "":
		entries, err = store.ListByHook(ctx, logHookID, logLimit)
	default:
		return fmt.Errorf("one of --run-id or --hook-id is required")
	}
	if err != nil {
		return err
	}
	return printJSON(entries)
}
