package tui

import (
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/flowlogic/pkg/runtime"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

const walkthroughDoc = `
apiVersion: workflow/v0
meta:
  id: wf-walk
  name: Walkthrough fixture
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

func newTestModel(t *testing.T) Model {
	t.Helper()
	wf, err := schema.Load(strings.NewReader(walkthroughDoc))
	if err != nil {
		t.Fatal(err)
	}
	rt := runtime.New(wf, runtime.WithLogger(slog.New(slog.DiscardHandler)))
	return NewModel(wf, rt)
}

func TestModel_InitiallyAllStepsVisible(t *testing.T) {
	m := newTestModel(t)
	steps := m.visibleSteps()
	// No age answered yet, so guardian's condition fails open.
	if len(steps) != 2 {
		t.Fatalf("visible steps = %d, want 2", len(steps))
	}
}

func TestModel_AnswerUpdatesVisibility(t *testing.T) {
	m := newTestModel(t)
	m.answers["age"] = 40.0
	m.refresh()
	steps := m.visibleSteps()
	if len(steps) != 1 || steps[0].ID != "age" {
		t.Errorf("visible steps = %+v, want only age", steps)
	}
}

func TestModel_SubmitBlocksOnValidation(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.submitSection()
	m = next.(Model)
	if cmd != nil {
		t.Error("invalid section must not run hooks")
	}
	if m.pageResult == nil || m.pageResult.Valid {
		t.Errorf("expected a failing page result, got %+v", m.pageResult)
	}
}

func TestModel_SubmitRunsHooksWhenValid(t *testing.T) {
	m := newTestModel(t)
	m.answers["age"] = 40.0
	m.refresh()
	next, cmd := m.submitSection()
	m = next.(Model)
	if cmd == nil {
		t.Fatal("valid section should produce a hook command")
	}
	msg := cmd()
	updated, _ := m.Update(msg)
	m = updated.(Model)
	if !m.submitted {
		t.Error("last section's successful submit should complete the walkthrough")
	}
}

func TestModel_ViewShowsStepsAndErrors(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.submitSection()
	m = next.(Model)
	view := m.View()
	if !strings.Contains(view, "Age") {
		t.Error("view missing step title")
	}
	if !strings.Contains(view, "Age is required") {
		t.Errorf("view missing validation error:\n%s", view)
	}
}

func TestModel_QuitKey(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}
