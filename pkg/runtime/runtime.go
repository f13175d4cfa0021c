// Package runtime is the façade a host embeds: one object per loaded
// workflow exposing expression validation and evaluation, page validation,
// visibility resolution, and hook phase execution with a consistent clock
// and logger across all of them.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ormasoftchile/flowlogic/pkg/expression"
	"github.com/ormasoftchile/flowlogic/pkg/hooks"
	"github.com/ormasoftchile/flowlogic/pkg/rules"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
	"github.com/ormasoftchile/flowlogic/pkg/visibility"
)

// Runtime evaluates one workflow definition. Safe for concurrent use; all
// state is either immutable or internally synchronized.
type Runtime struct {
	wf       *schema.Workflow
	aliases  map[string]string
	clock    expression.Clock
	logger   *slog.Logger
	recorder hooks.Recorder

	eval     *expression.Evaluator
	rules    *rules.Evaluator
	vis      *visibility.Resolver
	registry *hooks.Registry
	engine   *hooks.Engine
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock fixes the clock used by expressions, visibility, and hooks.
func WithClock(clock expression.Clock) Option {
	return func(r *Runtime) { r.clock = clock }
}

// WithLogger injects the logger shared by all evaluators.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

// WithRecorder installs the hook execution log sink.
func WithRecorder(rec hooks.Recorder) Option {
	return func(r *Runtime) { r.recorder = rec }
}

// WithCustomValidators installs host-supplied field validators keyed by
// step id.
func WithCustomValidators(custom map[string]rules.CustomValidator) Option {
	return func(r *Runtime) { r.rules.Custom = custom }
}

// New builds a runtime for a loaded workflow. The definition should already
// have passed schema.Validate; New does not re-validate.
func New(wf *schema.Workflow, opts ...Option) *Runtime {
	r := &Runtime{
		wf:      wf,
		aliases: aliasTable(wf),
		clock:   time.Now,
		logger:  slog.Default(),
		eval:    expression.New(),
		rules:   &rules.Evaluator{},
	}
	for _, o := range opts {
		o(r)
	}
	r.vis = visibility.New(
		visibility.WithClock(r.clock),
		visibility.WithLogger(r.logger),
	)
	r.registry = hooks.NewRegistry(wf)
	engineOpts := []hooks.Option{
		hooks.WithClock(r.clock),
		hooks.WithLogger(r.logger),
	}
	if r.recorder != nil {
		engineOpts = append(engineOpts, hooks.WithRecorder(r.recorder))
	}
	r.engine = hooks.New(r.registry, engineOpts...)
	return r
}

// Workflow returns the definition this runtime serves.
func (r *Runtime) Workflow() *schema.Workflow { return r.wf }

// Hooks exposes the hook registry for host-driven lifecycle management.
func (r *Runtime) Hooks() *hooks.Registry { return r.registry }

// ValidateExpression checks an expression against the workflow's known
// variable names. A nil return means the expression is safe to store.
func (r *Runtime) ValidateExpression(source string) error {
	return expression.Validate(source, r.wf.KnownVariableNames())
}

// EvaluateExpression evaluates an expression against a variable mapping,
// merged over the workflow's meta vars.
func (r *Runtime) EvaluateExpression(source string, vars map[string]any, opts ...expression.Options) (any, error) {
	return r.eval.Evaluate(source, expression.Context{
		Vars:  r.mergedVars(vars),
		Clock: r.clock,
	}, opts...)
}

// ResolveVisibility computes the current show/hide/require state across the
// whole workflow from a variable mapping snapshot.
func (r *Runtime) ResolveVisibility(vars map[string]any) visibility.State {
	return r.vis.Resolve(r.wf.LogicRules, r.wf.AllSteps(), r.mergedVars(vars))
}

// ValidatePage validates one section's answers: field constraints for its
// visible steps plus the section's declared rules. Hidden steps are exempt.
func (r *Runtime) ValidatePage(sectionID string, answers map[string]any) (*rules.PageResult, error) {
	sec := r.wf.SectionByID(sectionID)
	if sec == nil {
		return nil, fmt.Errorf("runtime: section %q does not exist", sectionID)
	}
	vars := r.mergedVars(answers)
	state := r.ResolveVisibility(vars)
	scope := rules.NewMapScope(vars, r.aliases)
	return r.rules.ValidatePage(sec.Steps, sec.Rules, scope, state.VisibleSet()), nil
}

// ExecuteHooksForPhase runs the workflow's enabled hooks for a phase against
// the run's data snapshot.
func (r *Runtime) ExecuteHooksForPhase(ctx context.Context, runID, phase string, data map[string]any) hooks.PhaseResult {
	return r.engine.ExecutePhase(ctx, hooks.Request{
		WorkflowID: r.wf.Meta.ID,
		RunID:      runID,
		Phase:      phase,
		Data:       data,
	})
}

// mergedVars overlays the caller's mapping on the workflow's meta vars.
func (r *Runtime) mergedVars(vars map[string]any) map[string]any {
	merged := make(map[string]any, len(r.wf.Meta.Vars)+len(vars))
	for k, v := range r.wf.Meta.Vars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return merged
}

func aliasTable(wf *schema.Workflow) map[string]string {
	aliases := map[string]string{}
	for _, step := range wf.AllSteps() {
		if step.Alias != "" {
			aliases[step.Alias] = step.ID
		}
	}
	return aliases
}
