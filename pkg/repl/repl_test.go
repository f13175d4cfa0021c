package repl

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/ormasoftchile/flowlogic/pkg/runtime"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

const consoleDoc = `
apiVersion: workflow/v0
meta:
  id: wf-console
  name: Console fixture
sections:
  - id: main
    title: Main
    steps:
      - id: age
        title: Age
        type: number
        required: true
      - id: guardian
        title: Guardian
        visible_if: age < 18
`

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	wf, err := schema.Load(strings.NewReader(consoleDoc))
	if err != nil {
		t.Fatal(err)
	}
	r := New(wf, runtime.New(wf, runtime.WithLogger(slog.New(slog.DiscardHandler))))
	var buf bytes.Buffer
	r.output = &buf
	return r, &buf
}

func TestREPLHelpListsAllCommands(t *testing.T) {
	r, buf := newTestREPL(t)
	r.handleHelp()
	for _, cmd := range []string{"set", "unset", "vars", "steps", "visibility", "validate", "hooks", "quit"} {
		if !strings.Contains(buf.String(), cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

func TestREPLSetParsesJSON(t *testing.T) {
	r, _ := newTestREPL(t)
	r.handleSet([]string{"set", "age", "15"})
	if r.vars["age"] != float64(15) {
		t.Errorf("age = %#v, want JSON number", r.vars["age"])
	}
	r.handleSet([]string{"set", "name", "Ada", "Lovelace"})
	if r.vars["name"] != "Ada Lovelace" {
		t.Errorf("name = %#v, want raw string fallback", r.vars["name"])
	}
}

func TestREPLEval(t *testing.T) {
	r, buf := newTestREPL(t)
	r.vars["age"] = 15
	r.handleEval("age * 2")
	if !strings.Contains(buf.String(), "30") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	r.handleEval("nonsense(")
	if !strings.Contains(buf.String(), "Error") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestREPLStepsMarksHiddenAndRequired(t *testing.T) {
	r, buf := newTestREPL(t)
	r.vars["age"] = 40
	r.handleSteps()
	out := buf.String()
	if !strings.Contains(out, "[H] guardian") {
		t.Errorf("guardian should be marked hidden:\n%s", out)
	}
	if !strings.Contains(out, "[*] age") {
		t.Errorf("age should be marked required:\n%s", out)
	}
}

func TestREPLValidateDefaultsToOnlySection(t *testing.T) {
	r, buf := newTestREPL(t)
	r.handleValidate([]string{"validate"})
	if !strings.Contains(buf.String(), "Age is required") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	r.vars["age"] = 30
	r.handleValidate([]string{"validate"})
	if !strings.Contains(buf.String(), "valid") {
		t.Errorf("output = %q", buf.String())
	}
}
