package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/flowlogic/pkg/hooks"
	"github.com/ormasoftchile/flowlogic/pkg/rules"
	"github.com/ormasoftchile/flowlogic/pkg/runtime"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
	"github.com/ormasoftchile/flowlogic/pkg/visibility"
)

// Model is the Bubble Tea model for the workflow walkthrough.
type Model struct {
	wf *schema.Workflow
	rt *runtime.Runtime

	answers map[string]any
	state   visibility.State

	section int
	cursor  int
	editing bool
	input   textinput.Model

	pageResult *rules.PageResult
	submitted  bool
	hookResult *hooks.PhaseResult

	width  int
	height int
	err    error
}

// NewModel creates a walkthrough model from a validated workflow.
func NewModel(wf *schema.Workflow, rt *runtime.Runtime) Model {
	ti := textinput.New()
	ti.Placeholder = "answer"
	ti.CharLimit = 256

	m := Model{
		wf:      wf,
		rt:      rt,
		answers: map[string]any{},
		input:   ti,
	}
	m.state = rt.ResolveVisibility(m.answers)
	return m
}

// hookPhaseMsg delivers the outcome of a section's submit hooks.
type hookPhaseMsg struct {
	result hooks.PhaseResult
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case hookPhaseMsg:
		m.hookResult = &msg.result
		if msg.result.Success {
			// Adopt hook mutations so later sections see them.
			m.answers = msg.result.Data
			m.refresh()
			m.advanceSection()
		}
	}

	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	steps := m.visibleSteps()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(steps)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(steps) {
			m.editing = true
			m.input.SetValue(answerString(m.answers[steps[m.cursor].ID]))
			m.input.Focus()
			return m, textinput.Blink
		}
	case "s":
		return m.submitSection()
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		steps := m.visibleSteps()
		if m.cursor < len(steps) {
			m.answers[steps[m.cursor].ID] = parseAnswer(m.input.Value())
			m.refresh()
		}
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitSection validates the current section and, when clean, runs its
// submit hooks before moving on.
func (m Model) submitSection() (tea.Model, tea.Cmd) {
	sec := m.wf.Sections[m.section]
	res, err := m.rt.ValidatePage(sec.ID, m.answers)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.pageResult = res
	if !res.Valid {
		return m, nil
	}

	rt := m.rt
	answers := m.answers
	return m, func() tea.Msg {
		return hookPhaseMsg{result: rt.ExecuteHooksForPhase(
			context.Background(), "tui-run", "before_submit", answers)}
	}
}

func (m *Model) advanceSection() {
	m.pageResult = nil
	if m.section+1 < len(m.wf.Sections) {
		m.section++
		m.cursor = 0
		return
	}
	m.submitted = true
}

func (m *Model) refresh() {
	m.state = m.rt.ResolveVisibility(m.answers)
	steps := m.visibleSteps()
	if m.cursor >= len(steps) && m.cursor > 0 {
		m.cursor = len(steps) - 1
	}
}

// visibleSteps returns the current section's steps filtered by visibility.
func (m Model) visibleSteps() []schema.Step {
	if m.section >= len(m.wf.Sections) {
		return nil
	}
	visible := m.state.VisibleSet()
	var out []schema.Step
	for _, step := range m.wf.Sections[m.section].Steps {
		if visible[step.ID] {
			out = append(out, step)
		}
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("flowlogic: %s", m.wf.Meta.Name)))
	b.WriteString("\n\n")

	if m.submitted {
		b.WriteString(validStyle.Render("  ✓ All sections complete"))
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("  q: quit"))
		return b.String()
	}

	sec := m.wf.Sections[m.section]
	b.WriteString(sectionStyle.Render(fmt.Sprintf("  %s (%d/%d)", sec.Title, m.section+1, len(m.wf.Sections))))
	b.WriteString("\n\n")

	required := map[string]bool{}
	for _, id := range m.state.Required {
		required[id] = true
	}
	fieldErrors := map[string][]string{}
	if m.pageResult != nil {
		for _, fe := range m.pageResult.Errors {
			fieldErrors[fe.FieldID] = fe.Errors
		}
	}

	steps := m.visibleSteps()
	for i, step := range steps {
		glyph := GlyphPending
		if _, answered := m.answers[step.ID]; answered {
			glyph = GlyphAnswered
		}
		title := step.Title
		if title == "" {
			title = step.ID
		}
		if required[step.ID] {
			title += " " + GlyphRequired
		}

		line := fmt.Sprintf("%s %s  %s", glyph, runewidth.FillRight(title, 28), answerString(m.answers[step.ID]))

		switch {
		case i == m.cursor && m.editing:
			b.WriteString("  " + GlyphCursor + " " + stepCurrent.Render(fmt.Sprintf("%s %s  ", glyph, runewidth.FillRight(title, 28))))
			b.WriteString(m.input.View())
		case i == m.cursor:
			b.WriteString("  " + GlyphCursor + " " + stepCurrent.Render(line))
		default:
			style := dimStyle
			if _, answered := m.answers[step.ID]; answered {
				style = stepAnswered
			}
			b.WriteString("    " + style.Render(line))
		}
		b.WriteString("\n")

		for _, msg := range fieldErrors[step.ID] {
			b.WriteString("      " + errorStyle.Render(GlyphError+" "+msg) + "\n")
		}
	}

	if m.pageResult != nil && !m.pageResult.Valid {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("  %d validation error(s)", m.pageResult.ErrorCount)))
		b.WriteString("\n")
	}
	if m.hookResult != nil && !m.hookResult.Success {
		b.WriteString("\n")
		for _, he := range m.hookResult.Errors {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  hook %s: %s", he.HookID, he.Message)))
			b.WriteString("\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  "+m.err.Error()) + "\n")
	}

	b.WriteString("\n")
	if m.editing {
		b.WriteString(dimStyle.Render("  enter: save  esc: cancel"))
	} else {
		b.WriteString(dimStyle.Render("  ↑/↓: navigate  enter: answer  s: submit section  q: quit"))
	}
	return b.String()
}

// parseAnswer interprets typed input: numbers and booleans become typed
// values, everything else stays a string.
func parseAnswer(s string) any {
	s = strings.TrimSpace(s)
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

func answerString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
