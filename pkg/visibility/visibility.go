// Package visibility computes which steps are shown, hidden, and required by
// merging two independent rule sources: step-level visible_if conditions and
// workflow-level show/hide/require logic rules. The resolver is stateless;
// the host re-invokes it on every answer change with a fresh snapshot.
package visibility

import (
	"log/slog"

	"github.com/ormasoftchile/flowlogic/pkg/expression"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// State is the resolved visibility verdict. Slices are ordered by step
// declaration order, so identical inputs yield byte-identical results.
type State struct {
	Visible  []string `json:"visible_steps"`
	Hidden   []string `json:"hidden_steps"`
	Required []string `json:"required_steps"`
}

// IsVisible reports whether a step id is in the visible set.
func (s State) IsVisible(stepID string) bool {
	for _, id := range s.Visible {
		if id == stepID {
			return true
		}
	}
	return false
}

// VisibleSet returns the visible steps as a set, the shape the validation
// evaluator consumes.
func (s State) VisibleSet() map[string]bool {
	set := make(map[string]bool, len(s.Visible))
	for _, id := range s.Visible {
		set[id] = true
	}
	return set
}

// Resolver evaluates visibility against a variable mapping.
type Resolver struct {
	eval   *expression.Evaluator
	clock  expression.Clock
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock injects the evaluation clock.
func WithClock(clock expression.Clock) Option {
	return func(r *Resolver) { r.clock = clock }
}

// WithLogger injects the logger used for fail-open condition errors.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New creates a visibility resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{eval: expression.New(), logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve computes the visibility state for the given steps.
//
// Step-level visible_if is evaluated first; a condition that errors defaults
// to visible (fail-open: hiding content because of a bad expression is worse
// than showing it) and is logged. Workflow-level rules are then partitioned
// per target: a step with at least one show rule is visible only if one of
// them holds (allow-list semantics); a step with only hide rules is hidden
// when any holds; untargeted steps stay visible. Both sources must agree for
// a step to show.
func (r *Resolver) Resolve(logicRules []schema.LogicRule, steps []schema.Step, vars map[string]any) State {
	ctx := expression.Context{Vars: vars, Clock: r.clock}

	// Partition workflow-level rules by target step.
	shows := make(map[string][]string)
	hides := make(map[string][]string)
	requires := make(map[string][]string)
	for _, lr := range logicRules {
		switch lr.Action {
		case schema.ActionShow:
			shows[lr.TargetStep] = append(shows[lr.TargetStep], lr.Condition)
		case schema.ActionHide:
			hides[lr.TargetStep] = append(hides[lr.TargetStep], lr.Condition)
		case schema.ActionRequire:
			requires[lr.TargetStep] = append(requires[lr.TargetStep], lr.Condition)
		}
	}

	var state State
	for _, step := range steps {
		stepVisible := r.evalFailOpen(step.VisibleIf, ctx, step.ID)

		ruleVisible := true
		if len(logicRules) > 0 {
			ruleVisible = r.resolveRuleVisibility(step.ID, shows, hides, ctx)
		}

		if stepVisible && ruleVisible {
			state.Visible = append(state.Visible, step.ID)
		} else {
			state.Hidden = append(state.Hidden, step.ID)
			continue
		}

		if r.isRequired(step, requires[step.ID], ctx) {
			state.Required = append(state.Required, step.ID)
		}
	}
	return state
}

// resolveRuleVisibility applies workflow-level show/hide semantics for one
// step. Errors fail open in both directions: an erroring show rule counts as
// satisfied and an erroring hide rule does not hide.
func (r *Resolver) resolveRuleVisibility(stepID string, shows, hides map[string][]string, ctx expression.Context) bool {
	if conds, ok := shows[stepID]; ok {
		for _, cond := range conds {
			if r.evalFailOpen(cond, ctx, stepID) {
				return true
			}
		}
		return false // allow-list: a show-targeted step needs a true show rule
	}
	for _, cond := range hides[stepID] {
		if r.evalFailClosed(cond, ctx, stepID) {
			return false
		}
	}
	return true
}

// isRequired merges authoring-time required flags with require rules.
func (r *Resolver) isRequired(step schema.Step, requireConds []string, ctx expression.Context) bool {
	if step.Required {
		return true
	}
	for _, cond := range requireConds {
		if r.evalFailClosed(cond, ctx, step.ID) {
			return true
		}
	}
	return false
}

// evalFailOpen evaluates a visibility condition, defaulting to visible on error.
func (r *Resolver) evalFailOpen(source string, ctx expression.Context, stepID string) bool {
	if source == "" {
		return true
	}
	visible, err := r.eval.EvaluateBool(source, ctx)
	if err != nil {
		r.logger.Warn("visibility condition failed, defaulting to visible",
			"step", stepID, "condition", source, "error", err)
		return true
	}
	return visible
}

// evalFailClosed evaluates a rule condition, treating an error as false: an
// erroring hide rule does not hide and an erroring require rule does not
// require (the safer default is optional).
func (r *Resolver) evalFailClosed(source string, ctx expression.Context, stepID string) bool {
	ok, err := r.eval.EvaluateBool(source, ctx)
	if err != nil {
		r.logger.Warn("logic rule condition failed, treating as false",
			"step", stepID, "condition", source, "error", err)
		return false
	}
	return ok
}
