package hooks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/ormasoftchile/flowlogic/pkg/expression"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// runScript executes one hook in a fresh sandboxed runtime and returns the
// exported `output` object, the captured console lines, and any script error.
//
// The sandbox exposes exactly three surfaces: the projected `input` object,
// a write-only `console` shim, and the expression helper library. `eval` and
// `Function` are removed so scripts cannot manufacture code at runtime.
func runScript(h *schema.Hook, input map[string]any, clock expression.Clock) (map[string]any, []string, error) {
	if h.Language != schema.LanguageJavaScript {
		return nil, nil, fmt.Errorf("unsupported language %q", h.Language)
	}

	vm := goja.New()
	vm.Set("eval", goja.Undefined())
	vm.Set("Function", goja.Undefined())

	vm.Set("input", input)
	vm.Set("output", vm.NewObject())

	var console []string
	vm.Set("console", consoleShim(vm, &console))

	for name, fn := range expression.Helpers(clock) {
		vm.Set(name, fn)
	}

	timer := time.AfterFunc(h.Timeout(), func() {
		vm.Interrupt("timeout")
	})
	defer timer.Stop()

	_, err := vm.RunString(h.Code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, console, fmt.Errorf("timed out after %s", h.Timeout())
		}
		return nil, console, fmt.Errorf("script error: %w", err)
	}

	return exportOutput(vm), console, nil
}

// consoleShim captures log/warn/error calls into an ordered line buffer
// instead of any real output stream.
func consoleShim(vm *goja.Runtime, lines *[]string) *goja.Object {
	capture := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			*lines = append(*lines, fmt.Sprintf("[%s] %s", level, strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	obj := vm.NewObject()
	obj.Set("log", capture("log"))
	obj.Set("warn", capture("warn"))
	obj.Set("error", capture("error"))
	return obj
}

// exportOutput reads the script's global `output` object back as a plain map.
// Anything that is not an object exports as an empty output.
func exportOutput(vm *goja.Runtime) map[string]any {
	v := vm.Get("output")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if m, ok := v.Export().(map[string]any); ok {
		return m
	}
	return nil
}
