package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

var explainRaw bool

var explainCmd = &cobra.Command{
	Use:   "explain [workflow.yaml]",
	Short: "Describe a workflow's logic as a readable document",
	Long: `Analyze a workflow definition and produce a Markdown summary of its
steps, visibility conditions, validation rules, and lifecycle hooks.

The document is generated from static analysis of the YAML — no evaluation
occurs.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().BoolVar(&explainRaw, "raw", false, "print raw Markdown instead of rendering for the terminal")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	wf, errs := schema.ValidateFile(args[0])
	if schema.HasErrors(errs) {
		return fmt.Errorf("workflow validation failed; run 'flowlogic validate %s' for details", args[0])
	}

	doc := explainWorkflow(wf)
	if explainRaw {
		fmt.Print(doc)
		return nil
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// No usable terminal style; the raw document is still useful.
		fmt.Print(doc)
		return nil
	}
	out, err := r.Render(doc)
	if err != nil {
		fmt.Print(doc)
		return nil
	}
	fmt.Print(out)
	return nil
}

// explainWorkflow renders the workflow's logic as Markdown.
func explainWorkflow(wf *schema.Workflow) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", wf.Meta.Name)
	if wf.Meta.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", wf.Meta.Description)
	}
	fmt.Fprintf(&b, "`%s` — %d sections, %d steps, %d logic rules, %d hooks\n\n",
		wf.Meta.ID, len(wf.Sections), len(wf.AllSteps()), len(wf.LogicRules), len(wf.Hooks))

	for _, sec := range wf.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		for _, step := range sec.Steps {
			title := step.Title
			if title == "" {
				title = step.ID
			}
			fmt.Fprintf(&b, "- **%s** (`%s`, %s)", title, step.ID, orDefault(string(step.Type), "text"))
			if step.Required {
				b.WriteString(" — required")
			}
			if step.VisibleIf != "" {
				fmt.Fprintf(&b, " — visible when `%s`", step.VisibleIf)
			}
			b.WriteString("\n")
			if c := step.Constraints; c != nil {
				b.WriteString(describeConstraints(c))
			}
		}
		b.WriteString("\n")

		if len(sec.Rules) > 0 {
			fmt.Fprintf(&b, "### Rules\n\n")
			for _, rule := range sec.Rules {
				fmt.Fprintf(&b, "- %s: %s\n", rule.Type, rule.Message)
			}
			b.WriteString("\n")
		}
	}

	if len(wf.LogicRules) > 0 {
		b.WriteString("## Visibility rules\n\n")
		for _, lr := range wf.LogicRules {
			fmt.Fprintf(&b, "- %s `%s` when `%s`\n", lr.Action, lr.TargetStep, lr.Condition)
		}
		b.WriteString("\n")
	}

	if len(wf.Hooks) > 0 {
		b.WriteString("## Lifecycle hooks\n\n")
		for _, h := range wf.Hooks {
			name := h.Name
			if name == "" {
				name = h.ID
			}
			mode := "observe"
			if h.Mutate {
				mode = "mutate"
			}
			fmt.Fprintf(&b, "- **%s** at `%s` (%s, %s, timeout %s)\n",
				name, h.Phase, h.Language, mode, h.Timeout())
			if len(h.InputKeys) > 0 {
				fmt.Fprintf(&b, "  - reads: `%s`\n", strings.Join(h.InputKeys, "`, `"))
			}
			if len(h.OutputKeys) > 0 {
				fmt.Fprintf(&b, "  - writes: `%s`\n", strings.Join(h.OutputKeys, "`, `"))
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func describeConstraints(c *schema.Constraints) string {
	var parts []string
	if c.MinLength != nil {
		parts = append(parts, fmt.Sprintf("min length %d", *c.MinLength))
	}
	if c.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("max length %d", *c.MaxLength))
	}
	if c.Min != nil {
		parts = append(parts, fmt.Sprintf("min %v", *c.Min))
	}
	if c.Max != nil {
		parts = append(parts, fmt.Sprintf("max %v", *c.Max))
	}
	if c.Email {
		parts = append(parts, "email")
	}
	if c.Pattern != "" {
		parts = append(parts, fmt.Sprintf("pattern `%s`", c.Pattern))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("  - constraints: %s\n", strings.Join(parts, ", "))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
