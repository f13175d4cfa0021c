package hooks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

func jsHook(id, code string, mutate bool, inputKeys, outputKeys []string) schema.Hook {
	return schema.Hook{
		ID:         id,
		Name:       id,
		WorkflowID: "wf",
		Phase:      "before_render",
		Language:   schema.LanguageJavaScript,
		Code:       code,
		InputKeys:  inputKeys,
		OutputKeys: outputKeys,
		Enabled:    true,
		TimeoutMs:  500,
		Mutate:     mutate,
	}
}

type staticSource struct {
	hooks []schema.Hook
	err   error
}

func (s *staticSource) HooksForPhase(context.Context, string, string) ([]schema.Hook, error) {
	return s.hooks, s.err
}

type memRecorder struct {
	invocations []Invocation
}

func (r *memRecorder) Record(inv Invocation) { r.invocations = append(r.invocations, inv) }

func newEngine(src Source, opts ...Option) *Engine {
	opts = append(opts, WithLogger(slog.New(slog.DiscardHandler)))
	return New(src, opts...)
}

func run(t *testing.T, e *Engine, data map[string]any) PhaseResult {
	t.Helper()
	return e.ExecutePhase(context.Background(), Request{
		WorkflowID: "wf", RunID: "run-1", Phase: "before_render", Data: data,
	})
}

func TestExecutePhase_FailureContainment(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h-throws", `throw new Error("boom")`, true, nil, nil),
		jsHook("h-emits", `output = { b: 2 }`, true, nil, []string{"b"}),
	}}
	res := run(t, newEngine(src), map[string]any{"a": 1})

	if res.Success {
		t.Error("a failing hook must make the phase unsuccessful")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	if res.Errors[0].HookName != "h-throws" {
		t.Errorf("error attributed to %q", res.Errors[0].HookName)
	}
	if got, ok := res.Data["b"]; !ok || got != int64(2) {
		t.Errorf("second hook's mutation missing: data = %v", res.Data)
	}
}

func TestExecutePhase_SequentialMutationVisibility(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h1", `output = { x: 10 }`, true, nil, []string{"x"}),
		jsHook("h2", `output = { y: input.x + 5 }`, true, []string{"x"}, []string{"y"}),
	}}
	res := run(t, newEngine(src), map[string]any{})
	if !res.Success {
		t.Fatalf("errors: %v", res.Errors)
	}
	if res.Data["y"] != int64(15) {
		t.Errorf("y = %v, want 15 (second hook must see first hook's mutation)", res.Data["y"])
	}
}

func TestExecutePhase_InputProjection(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `output = { leaked: typeof input.secret, seen: input.allowed }`, true, []string{"allowed"}, []string{"leaked", "seen"}),
	}}
	res := run(t, newEngine(src), map[string]any{"allowed": "yes", "secret": "no"})
	if res.Data["leaked"] != "undefined" {
		t.Errorf("undeclared key leaked into the sandbox: %v", res.Data["leaked"])
	}
	if res.Data["seen"] != "yes" {
		t.Errorf("declared key missing: %v", res.Data["seen"])
	}
}

func TestExecutePhase_OutputRestriction(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `output = { wanted: 1, unwanted: 2 }`, true, nil, []string{"wanted"}),
	}}
	res := run(t, newEngine(src), map[string]any{})
	if _, ok := res.Data["wanted"]; !ok {
		t.Error("declared output key not merged")
	}
	if _, ok := res.Data["unwanted"]; ok {
		t.Error("undeclared output key must be discarded")
	}
}

func TestExecutePhase_ObservationOnlyDiscardsOutput(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `output = { x: 1 }`, false, nil, []string{"x"}),
	}}
	res := run(t, newEngine(src), map[string]any{})
	if _, ok := res.Data["x"]; ok {
		t.Error("non-mutating hook's output must be discarded")
	}
}

func TestExecutePhase_NestedInputWriteIsContained(t *testing.T) {
	// Writing through a nested object reached via input must not escape the
	// sandbox: the hook is non-mutating and declares no output keys.
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `input.user.role = "admin"`, false, []string{"user"}, nil),
	}}
	original := map[string]any{"user": map[string]any{"role": "viewer"}}
	res := run(t, newEngine(src), original)
	if !res.Success {
		t.Fatalf("errors: %v", res.Errors)
	}
	if role := original["user"].(map[string]any)["role"]; role != "viewer" {
		t.Errorf("caller's data mutated through input reference: role=%v", role)
	}
	if role := res.Data["user"].(map[string]any)["role"]; role != "viewer" {
		t.Errorf("non-mutating hook changed result data: role=%v", role)
	}
}

func TestExecutePhase_MergedOutputDoesNotAliasCallerData(t *testing.T) {
	// A declared, mutating write to a nested object lands in the result but
	// never in the caller's original map.
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `output.user = input.user; output.user.role = "admin"`, true, []string{"user"}, []string{"user"}),
	}}
	original := map[string]any{"user": map[string]any{"role": "viewer"}}
	res := run(t, newEngine(src), original)
	if !res.Success {
		t.Fatalf("errors: %v", res.Errors)
	}
	if role := res.Data["user"].(map[string]any)["role"]; role != "admin" {
		t.Errorf("declared mutation missing from result: role=%v", role)
	}
	if role := original["user"].(map[string]any)["role"]; role != "viewer" {
		t.Errorf("caller's data mutated: role=%v", role)
	}
}

func TestExecutePhase_NestedSliceWriteIsContained(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `input.tags[0] = "hacked"`, false, []string{"tags"}, nil),
	}}
	original := map[string]any{"tags": []any{"a", "b"}}
	res := run(t, newEngine(src), original)
	if !res.Success {
		t.Fatalf("errors: %v", res.Errors)
	}
	if original["tags"].([]any)[0] != "a" {
		t.Errorf("caller's slice mutated: %v", original["tags"])
	}
	if res.Data["tags"].([]any)[0] != "a" {
		t.Errorf("result slice mutated: %v", res.Data["tags"])
	}
}

func TestExecutePhase_Timeout(t *testing.T) {
	h := jsHook("h-spin", `while (true) {}`, false, nil, nil)
	h.TimeoutMs = 50
	src := &staticSource{hooks: []schema.Hook{
		h,
		jsHook("h-after", `output = { done: true }`, true, nil, []string{"done"}),
	}}
	res := run(t, newEngine(src), map[string]any{})
	if res.Success {
		t.Error("timed-out hook must fail the phase")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "timed out") {
		t.Errorf("errors = %v", res.Errors)
	}
	if res.Data["done"] != true {
		t.Error("timeout must not stop later hooks")
	}
}

func TestExecutePhase_ConsoleCaptured(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `console.log("one", 2); console.warn("careful"); console.error("bad")`, false, nil, nil),
	}}
	res := run(t, newEngine(src), map[string]any{})
	want := []string{"[log] one 2", "[warn] careful", "[error] bad"}
	if len(res.Console) != len(want) {
		t.Fatalf("console = %v", res.Console)
	}
	for i := range want {
		if res.Console[i] != want[i] {
			t.Errorf("console[%d] = %q, want %q", i, res.Console[i], want[i])
		}
	}
}

func TestExecutePhase_EvalDisabled(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `output = { t: typeof eval }`, true, nil, []string{"t"}),
	}}
	res := run(t, newEngine(src), map[string]any{})
	if res.Data["t"] != "undefined" {
		t.Errorf("eval reachable from sandbox: %v", res.Data["t"])
	}
}

func TestExecutePhase_HelpersAvailable(t *testing.T) {
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h", `output = { total: roundTo(99.99 * 1.0825, 2), shout: upper("hi") }`, true, nil, []string{"total", "shout"}),
	}}
	res := run(t, newEngine(src), map[string]any{})
	if !res.Success {
		t.Fatalf("errors: %v", res.Errors)
	}
	if res.Data["total"] != 108.24 {
		t.Errorf("total = %v", res.Data["total"])
	}
	if res.Data["shout"] != "HI" {
		t.Errorf("shout = %v", res.Data["shout"])
	}
}

func TestExecutePhase_SystemErrorReturnsOriginalData(t *testing.T) {
	src := &staticSource{err: errors.New("store down")}
	original := map[string]any{"a": 1}
	res := run(t, newEngine(src), original)
	if res.Success {
		t.Error("source failure must be unsuccessful")
	}
	if len(res.Errors) != 1 || res.Errors[0].HookID != SystemHookID {
		t.Fatalf("errors = %v, want one system error", res.Errors)
	}
	if res.Data["a"] != 1 || len(res.Data) != 1 {
		t.Errorf("data must be returned unmutated, got %v", res.Data)
	}
}

func TestExecutePhase_RecordsEveryInvocation(t *testing.T) {
	rec := &memRecorder{}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &staticSource{hooks: []schema.Hook{
		jsHook("h-ok", `output = {}`, false, nil, nil),
		jsHook("h-bad", `throw new Error("x")`, false, nil, nil),
	}}
	e := newEngine(src, WithRecorder(rec), WithClock(func() time.Time { return fixed }))
	run(t, e, map[string]any{})

	if len(rec.invocations) != 2 {
		t.Fatalf("recorded %d invocations, want 2", len(rec.invocations))
	}
	if !rec.invocations[0].OK || rec.invocations[1].OK {
		t.Errorf("ok flags wrong: %+v", rec.invocations)
	}
	if rec.invocations[1].Error == "" {
		t.Error("failed invocation must carry the error message")
	}
	if !rec.invocations[0].StartedAt.Equal(fixed) {
		t.Errorf("timestamp = %v", rec.invocations[0].StartedAt)
	}
}

func TestWorkflowSource_FiltersAndOrders(t *testing.T) {
	wf := &schema.Workflow{Hooks: []schema.Hook{
		{ID: "late", WorkflowID: "wf", Phase: "p", Enabled: true, Order: 2, Language: schema.LanguageJavaScript},
		{ID: "disabled", WorkflowID: "wf", Phase: "p", Enabled: false, Order: 0, Language: schema.LanguageJavaScript},
		{ID: "other-phase", WorkflowID: "wf", Phase: "q", Enabled: true, Order: 0, Language: schema.LanguageJavaScript},
		{ID: "early", WorkflowID: "wf", Phase: "p", Enabled: true, Order: 1, Language: schema.LanguageJavaScript},
	}}
	src := &WorkflowSource{Workflow: wf}
	hooks, err := src.HooksForPhase(context.Background(), "wf", "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(hooks) != 2 || hooks[0].ID != "early" || hooks[1].ID != "late" {
		t.Errorf("got %+v", hooks)
	}
}
