// Package hooks runs lifecycle scripts against run data. Hooks for a phase
// execute sequentially in declared order inside a sandboxed JavaScript
// runtime; a failing hook is contained and never blocks its siblings or the
// run.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ormasoftchile/flowlogic/pkg/expression"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// SystemHookID marks errors raised by the engine itself rather than by a
// hook script (for example, hook lookup failing).
const SystemHookID = "system"

// Source supplies the hooks for a phase, already filtered to enabled ones and
// sorted by order.
type Source interface {
	HooksForPhase(ctx context.Context, workflowID, phase string) ([]schema.Hook, error)
}

// Invocation is the durable record of one hook execution.
type Invocation struct {
	WorkflowID string
	RunID      string
	HookID     string
	HookName   string
	Phase      string
	StartedAt  time.Time
	Duration   time.Duration
	OK         bool
	Error      string
	Console    []string
}

// Recorder persists invocations. The engine fires and forgets: storage and
// retry semantics belong to the implementation.
type Recorder interface {
	Record(inv Invocation)
}

// HookError is one contained hook failure.
type HookError struct {
	HookID   string `json:"hook_id"`
	HookName string `json:"hook_name"`
	Message  string `json:"message"`
}

// PhaseResult is the outcome of running every hook of a phase.
type PhaseResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Errors  []HookError    `json:"errors,omitempty"`
	Console []string       `json:"console_output,omitempty"`
}

// Request identifies one phase invocation.
type Request struct {
	WorkflowID string
	RunID      string
	Phase      string
	Data       map[string]any
}

// Engine executes hook phases.
type Engine struct {
	source   Source
	recorder Recorder
	clock    expression.Clock
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder installs the execution log sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock injects the clock used for timestamps and script date helpers.
func WithClock(clock expression.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger injects the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates a hook engine over a source.
func New(source Source, opts ...Option) *Engine {
	e := &Engine{source: source, clock: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExecutePhase runs every enabled hook of the request's phase, in order.
//
// Data flows as a fold: each hook sees only its input_keys projected from the
// running accumulator, and a mutating hook's output (restricted to its
// output_keys) is merged back before the next hook runs. A hook that errors
// contributes an entry to Errors and nothing to Data; execution continues.
// If the hook lookup itself fails, a single synthetic error with hook id
// "system" is returned along with the original, unmutated data.
func (e *Engine) ExecutePhase(ctx context.Context, req Request) PhaseResult {
	hooks, err := e.source.HooksForPhase(ctx, req.WorkflowID, req.Phase)
	if err != nil {
		return PhaseResult{
			Success: false,
			Data:    req.Data,
			Errors: []HookError{{
				HookID:  SystemHookID,
				Message: fmt.Sprintf("load hooks: %v", err),
			}},
		}
	}

	running := cloneData(req.Data)
	result := PhaseResult{Data: running}

	for i := range hooks {
		h := &hooks[i]
		started := e.clock()
		out, console, runErr := runScript(h, projectKeys(running, h.InputKeys), e.clock)
		elapsed := e.clock().Sub(started)

		result.Console = append(result.Console, console...)

		inv := Invocation{
			WorkflowID: req.WorkflowID,
			RunID:      req.RunID,
			HookID:     h.ID,
			HookName:   h.Name,
			Phase:      req.Phase,
			StartedAt:  started,
			Duration:   elapsed,
			OK:         runErr == nil,
			Console:    console,
		}

		if runErr != nil {
			inv.Error = runErr.Error()
			result.Errors = append(result.Errors, HookError{
				HookID:   h.ID,
				HookName: h.Name,
				Message:  runErr.Error(),
			})
			e.logger.Warn("hook failed",
				"workflow", req.WorkflowID, "phase", req.Phase,
				"hook", h.ID, "error", runErr)
		} else if h.Mutate {
			for k, v := range projectKeys(out, h.OutputKeys) {
				running[k] = v
			}
		}

		if e.recorder != nil {
			e.recorder.Record(inv)
		}
	}

	result.Success = len(result.Errors) == 0
	result.Data = running
	return result
}

func cloneData(data map[string]any) map[string]any {
	clone := make(map[string]any, len(data))
	for k, v := range data {
		clone[k] = cloneValue(v)
	}
	return clone
}

// cloneValue deep-copies the JSON-shaped values that flow through run data
// (maps, slices, scalars). Scripts and callers must never share structure.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// projectKeys keeps only the named keys that are actually present. Values are
// deep-copied: the projection is the sandbox boundary, so a script writing
// through a nested input reference must never reach the accumulator, and a
// merged output must never alias the script's runtime.
func projectKeys(data map[string]any, keys []string) map[string]any {
	projected := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := data[k]; ok {
			projected[k] = cloneValue(v)
		}
	}
	return projected
}

// WorkflowSource serves hooks straight from a loaded workflow definition,
// filtering to enabled hooks and sorting by order.
type WorkflowSource struct {
	Workflow *schema.Workflow
}

// HooksForPhase implements Source.
func (s *WorkflowSource) HooksForPhase(_ context.Context, workflowID, phase string) ([]schema.Hook, error) {
	var out []schema.Hook
	for _, h := range s.Workflow.Hooks {
		if !h.Enabled || h.Phase != phase {
			continue
		}
		if h.WorkflowID != "" && h.WorkflowID != workflowID {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}
