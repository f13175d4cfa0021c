// Package repl implements the interactive expression and workflow console.
package repl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/flowlogic/pkg/runtime"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// REPL provides an interactive console against one loaded workflow: evaluate
// expressions, set answers, and inspect visibility, validation, and hooks.
type REPL struct {
	wf     *schema.Workflow
	rt     *runtime.Runtime
	vars   map[string]any
	output io.Writer
	rl     *readline.Instance
}

// New creates a REPL over a validated workflow.
func New(wf *schema.Workflow, rt *runtime.Runtime) *REPL {
	return &REPL{
		wf:     wf,
		rt:     rt,
		vars:   map[string]any{},
		output: os.Stdout,
	}
}

// Run starts the interactive loop. Any input that is not a command is
// evaluated as an expression against the current answers.
func (r *REPL) Run(ctx context.Context) error {
	commands := []string{"set", "unset", "vars", "visibility", "validate",
		"hooks", "steps", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	r.rl = rl
	defer rl.Close()

	fmt.Fprintf(r.output, "flowlogic console — %s (%d steps)\n", r.wf.Meta.Name, len(r.wf.AllSteps()))
	fmt.Fprintf(r.output, "Type 'help' for commands, or any expression to evaluate it.\n\n")

	for {
		rl.SetPrompt(r.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch parts[0] {
		case "set":
			r.handleSet(parts)
		case "unset":
			r.handleUnset(parts)
		case "vars", "v":
			r.handleVars()
		case "visibility":
			r.handleVisibility()
		case "validate":
			r.handleValidate(parts)
		case "hooks":
			r.handleHooks(ctx, parts)
		case "steps":
			r.handleSteps()
		case "help", "?":
			r.handleHelp()
		case "quit", "q", "exit":
			fmt.Fprintf(r.output, "Bye.\n")
			return nil
		default:
			r.handleEval(line)
		}
	}
}

// buildPrompt creates the prompt string: flowlogic[workflow | N answers]>
func (r *REPL) buildPrompt() string {
	return fmt.Sprintf("flowlogic[%s | %d answers]> ", r.wf.Meta.ID, len(r.vars))
}

func (r *REPL) handleEval(source string) {
	out, err := r.rt.EvaluateExpression(source, r.vars)
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.output, "= %v\n", out)
}

// handleSet parses `set key value`; the value is tried as JSON first so
// numbers, booleans, and arrays round-trip, falling back to a raw string.
func (r *REPL) handleSet(parts []string) {
	if len(parts) < 3 {
		fmt.Fprintf(r.output, "Usage: set <step_id> <value>\n")
		return
	}
	key := parts[1]
	raw := strings.Join(parts[2:], " ")
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	r.vars[key] = v
	fmt.Fprintf(r.output, "%s = %v\n", key, v)
}

func (r *REPL) handleUnset(parts []string) {
	if len(parts) != 2 {
		fmt.Fprintf(r.output, "Usage: unset <step_id>\n")
		return
	}
	delete(r.vars, parts[1])
}

func (r *REPL) handleVars() {
	if len(r.vars) == 0 {
		fmt.Fprintf(r.output, "No answers set.\n")
		return
	}
	data, _ := json.MarshalIndent(r.vars, "", "  ")
	fmt.Fprintf(r.output, "%s\n", data)
}

func (r *REPL) handleVisibility() {
	state := r.rt.ResolveVisibility(r.vars)
	data, _ := json.MarshalIndent(state, "", "  ")
	fmt.Fprintf(r.output, "%s\n", data)
}

func (r *REPL) handleValidate(parts []string) {
	sectionID := ""
	if len(parts) > 1 {
		sectionID = parts[1]
	} else if len(r.wf.Sections) == 1 {
		sectionID = r.wf.Sections[0].ID
	} else {
		fmt.Fprintf(r.output, "Usage: validate <section_id>\n")
		return
	}

	res, err := r.rt.ValidatePage(sectionID, r.vars)
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	if res.Valid {
		fmt.Fprintf(r.output, "✓ section %s is valid\n", sectionID)
		return
	}
	fmt.Fprintf(r.output, "✗ %d error(s)\n", res.ErrorCount)
	for _, fe := range res.Errors {
		for _, msg := range fe.Errors {
			fmt.Fprintf(r.output, "  %s: %s\n", fe.FieldID, msg)
		}
		for idx, msgs := range fe.InstanceErrors {
			for _, msg := range msgs {
				fmt.Fprintf(r.output, "  %s[%d]: %s\n", fe.FieldID, idx, msg)
			}
		}
	}
}

func (r *REPL) handleHooks(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		fmt.Fprintf(r.output, "Usage: hooks <phase>\n")
		return
	}
	res := r.rt.ExecuteHooksForPhase(ctx, "repl-run", parts[1], r.vars)
	data, _ := json.MarshalIndent(res, "", "  ")
	fmt.Fprintf(r.output, "%s\n", data)
	if res.Success {
		// Hooks may have mutated the data; adopt it so the console reflects
		// what a real run would see.
		r.vars = res.Data
	}
}

func (r *REPL) handleSteps() {
	state := r.rt.ResolveVisibility(r.vars)
	visible := state.VisibleSet()
	required := map[string]bool{}
	for _, id := range state.Required {
		required[id] = true
	}
	for _, sec := range r.wf.Sections {
		fmt.Fprintf(r.output, "%s:\n", sec.ID)
		for _, step := range sec.Steps {
			mark := " "
			if !visible[step.ID] {
				mark = "H"
			} else if required[step.ID] {
				mark = "*"
			}
			fmt.Fprintf(r.output, "  [%s] %s  %s\n", mark, step.ID, step.Title)
		}
	}
}

func (r *REPL) handleHelp() {
	fmt.Fprint(r.output, `Commands:
  <expression>            Evaluate an expression against current answers
  set <step_id> <value>   Set an answer (JSON or raw string)
  unset <step_id>         Remove an answer
  vars                    Show current answers
  steps                   List steps ([H]=hidden, [*]=required)
  visibility              Resolve and print visibility state
  validate [section_id]   Validate a section's answers
  hooks <phase>           Execute the hooks of a phase
  quit                    Exit
`)
}
