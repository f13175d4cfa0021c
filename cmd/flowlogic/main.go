package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/flowlogic/pkg/runtime"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowlogic",
	Short: "Workflow logic runtime",
	Long:  "flowlogic — expression evaluation, validation rules, step visibility, and lifecycle hooks for no-code workflows.",
}

func init() {
	rootCmd.AddCommand(validateCmd, evalCmd, visibilityCmd, checkCmd, hooksCmd, schemaCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flowlogic %s (%s)\n", version, commit)
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate a workflow definition against the schema and domain rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	wf, errs := schema.ValidateFile(args[0])

	var errors, warnings []*schema.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			errors = append(errors, e)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
		for i, e := range errors {
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errors))
	}

	fmt.Printf("✓ %s is valid (%d steps, %d hooks)\n", wf.Meta.Name, len(wf.AllSteps()), len(wf.Hooks))
	return nil
}

// --- eval ---

var evalVars []string

var evalCmd = &cobra.Command{
	Use:   "eval [workflow.yaml] [expression]",
	Short: "Evaluate an expression against a workflow's variables",
	Args:  cobra.ExactArgs(2),
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().StringArrayVar(&evalVars, "var", nil, "answer as key=value (repeatable; value parsed as JSON when possible)")
	visibilityCmd.Flags().StringArrayVar(&evalVars, "var", nil, "answer as key=value (repeatable)")
	checkCmd.Flags().StringArrayVar(&evalVars, "var", nil, "answer as key=value (repeatable)")
}

func runEval(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(args[0])
	if err != nil {
		return err
	}
	vars, err := parseVars(evalVars)
	if err != nil {
		return err
	}

	out, err := rt.EvaluateExpression(args[1], vars)
	if err != nil {
		return err
	}
	fmt.Printf("%v\n", out)
	return nil
}

// --- visibility ---

var visibilityCmd = &cobra.Command{
	Use:   "visibility [workflow.yaml]",
	Short: "Resolve step visibility for the given answers",
	Args:  cobra.ExactArgs(1),
	RunE:  runVisibility,
}

func runVisibility(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(args[0])
	if err != nil {
		return err
	}
	vars, err := parseVars(evalVars)
	if err != nil {
		return err
	}

	state := rt.ResolveVisibility(vars)
	return printJSON(state)
}

// --- check ---

var checkSection string

var checkCmd = &cobra.Command{
	Use:   "check [workflow.yaml]",
	Short: "Validate a section's answers against its rules and constraints",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkSection, "section", "", "section id (defaults to the only section)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(args[0])
	if err != nil {
		return err
	}
	vars, err := parseVars(evalVars)
	if err != nil {
		return err
	}

	sectionID := checkSection
	if sectionID == "" {
		sections := rt.Workflow().Sections
		if len(sections) != 1 {
			return fmt.Errorf("--section is required (workflow has %d sections)", len(sections))
		}
		sectionID = sections[0].ID
	}

	res, err := rt.ValidatePage(sectionID, vars)
	if err != nil {
		return err
	}
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("%d validation error(s)", res.ErrorCount)
	}
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the workflow definition JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- helpers ---

func loadRuntime(path string) (*runtime.Runtime, error) {
	wf, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return nil, fmt.Errorf("workflow validation failed")
	}
	return runtime.New(wf), nil
}

// parseVars turns repeated key=value flags into a variable mapping. Values
// are parsed as JSON when possible so numbers and booleans keep their type.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, raw, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[k] = v
	}
	return vars, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
