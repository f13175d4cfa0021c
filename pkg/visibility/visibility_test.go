package visibility

import (
	"log/slog"
	"testing"

	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

func quiet() *Resolver {
	return New(WithLogger(slog.New(slog.DiscardHandler)))
}

func stepIDs(ids ...string) []schema.Step {
	steps := make([]schema.Step, len(ids))
	for i, id := range ids {
		steps[i] = schema.Step{ID: id}
	}
	return steps
}

func has(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func TestResolve_NoRulesAllVisible(t *testing.T) {
	state := quiet().Resolve(nil, stepIDs("a", "b"), map[string]any{})
	if len(state.Visible) != 2 || len(state.Hidden) != 0 {
		t.Errorf("got %+v", state)
	}
}

func TestResolve_VisibleIf(t *testing.T) {
	steps := []schema.Step{
		{ID: "guardian", VisibleIf: "age < 18"},
		{ID: "license", VisibleIf: "age >= 18"},
	}
	state := quiet().Resolve(nil, steps, map[string]any{"age": 15})
	if !has(state.Visible, "guardian") || !has(state.Hidden, "license") {
		t.Errorf("got %+v", state)
	}
}

func TestResolve_FailOpenOnUndefinedVariable(t *testing.T) {
	// A condition referencing an undefined variable must leave the step
	// visible rather than silently disappearing — including the bare
	// identifier form, which would otherwise evaluate to nil and read falsy.
	for _, cond := range []string{"undefined_thing > 3", "undefined_thing"} {
		steps := []schema.Step{{ID: "s", VisibleIf: cond}}
		state := quiet().Resolve(nil, steps, map[string]any{})
		if !has(state.Visible, "s") {
			t.Errorf("%s: expected fail-open visibility, got %+v", cond, state)
		}
	}
}

func TestResolve_HideRuleOverridesVisibleIf(t *testing.T) {
	// Step-level says visible, a workflow hide rule says hide: both systems
	// must agree for a step to show.
	steps := []schema.Step{{ID: "s", VisibleIf: "true"}}
	rules := []schema.LogicRule{{TargetStep: "s", Action: schema.ActionHide, Condition: "mode == \"strict\""}}
	state := quiet().Resolve(rules, steps, map[string]any{"mode": "strict"})
	if !has(state.Hidden, "s") {
		t.Errorf("expected hidden, got %+v", state)
	}
}

func TestResolve_ShowRulesAreAllowList(t *testing.T) {
	steps := stepIDs("s")
	rules := []schema.LogicRule{{TargetStep: "s", Action: schema.ActionShow, Condition: "vip == true"}}

	state := quiet().Resolve(rules, steps, map[string]any{"vip": false})
	if !has(state.Hidden, "s") {
		t.Errorf("show-targeted step with no true show rule must hide, got %+v", state)
	}

	state = quiet().Resolve(rules, steps, map[string]any{"vip": true})
	if !has(state.Visible, "s") {
		t.Errorf("true show rule must show, got %+v", state)
	}
}

func TestResolve_UntargetedStepsDefaultVisible(t *testing.T) {
	steps := stepIDs("targeted", "other")
	rules := []schema.LogicRule{{TargetStep: "targeted", Action: schema.ActionHide, Condition: "true"}}
	state := quiet().Resolve(rules, steps, map[string]any{})
	if !has(state.Visible, "other") {
		t.Errorf("untargeted step must default visible, got %+v", state)
	}
}

func TestResolve_RequiredUnion(t *testing.T) {
	steps := []schema.Step{
		{ID: "always", Required: true},
		{ID: "conditional"},
		{ID: "never"},
	}
	rules := []schema.LogicRule{{TargetStep: "conditional", Action: schema.ActionRequire, Condition: "age < 18"}}
	state := quiet().Resolve(rules, steps, map[string]any{"age": 12})
	if !has(state.Required, "always") || !has(state.Required, "conditional") {
		t.Errorf("got %+v", state)
	}
	if has(state.Required, "never") {
		t.Errorf("got %+v", state)
	}
}

func TestResolve_HiddenStepIsNeverRequired(t *testing.T) {
	steps := []schema.Step{{ID: "s", Required: true, VisibleIf: "false"}}
	state := quiet().Resolve(nil, steps, map[string]any{})
	if has(state.Required, "s") {
		t.Errorf("hidden step must not be required, got %+v", state)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	steps := []schema.Step{
		{ID: "a", VisibleIf: "x > 1"},
		{ID: "b"},
		{ID: "c", Required: true},
	}
	rules := []schema.LogicRule{
		{TargetStep: "b", Action: schema.ActionHide, Condition: "x > 5"},
	}
	vars := map[string]any{"x": 10}
	r := quiet()
	first := r.Resolve(rules, steps, vars)
	for i := 0; i < 5; i++ {
		again := r.Resolve(rules, steps, vars)
		if len(again.Visible) != len(first.Visible) || len(again.Hidden) != len(first.Hidden) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
		for j := range first.Visible {
			if again.Visible[j] != first.Visible[j] {
				t.Fatalf("order differs at %d", j)
			}
		}
	}
}
