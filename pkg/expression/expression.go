// Package expression implements the restricted expression language used by
// workflow logic: visibility conditions, validation comparisons, and computed
// values. Expressions are pure; the only ambient input is an injected clock,
// so evaluation is deterministic for a fixed (expression, vars, clock).
package expression

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrExpression is the stable prefix hosts pattern-match on. Every failure
// returned by Evaluate wraps it.
var ErrExpression = errors.New("expression error")

// Context carries the inputs of one evaluation.
type Context struct {
	Vars  map[string]any
	Clock Clock // nil defaults to time.Now
}

// Options tune a single Evaluate call.
type Options struct {
	// Timeout is a defensive ceiling. The language has no recursion or
	// unbounded loops, so well-formed expressions never hit it.
	Timeout time.Duration
}

// Evaluator compiles and runs expressions, caching compiled programs.
// Programs are compiled against a fixed helper environment with undefined
// variables allowed, so a cached program is valid for any variable mapping;
// the identifiers each program references are checked against the live
// mapping on every run instead.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]compiled
}

// compiled pairs a program with the identifiers its source references.
type compiled struct {
	program *vm.Program
	idents  []string
}

// New creates an expression evaluator with an empty compile cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]compiled)}
}

// defaultEvaluator backs the package-level convenience functions.
var defaultEvaluator = New()

// Evaluate runs an expression against a variable mapping using the default
// evaluator.
func Evaluate(source string, ctx Context, opts ...Options) (any, error) {
	return defaultEvaluator.Evaluate(source, ctx, opts...)
}

// EvaluateBool runs an expression and reports its truthiness. Empty source
// evaluates to true (no condition = always on).
func EvaluateBool(source string, ctx Context, opts ...Options) (bool, error) {
	return defaultEvaluator.EvaluateBool(source, ctx, opts...)
}

// Evaluate runs an expression against the context's variable mapping. The
// mapping is read-only during evaluation. All failures wrap ErrExpression.
func (e *Evaluator) Evaluate(source string, ctx Context, opts ...Options) (any, error) {
	c, err := e.compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", ErrExpression, source, err)
	}

	clock := ctx.Clock
	if clock == nil {
		clock = time.Now
	}

	env := make(map[string]any, len(ctx.Vars)+24)
	for k, v := range ctx.Vars {
		env[k] = v
	}
	for k, v := range Helpers(clock) {
		env[k] = v
	}
	env["_div"] = divide

	// Compilation allows undefined variables so programs cache across
	// mappings; a bare undefined identifier would otherwise evaluate to nil
	// and flow on silently. Reject it here, against the live mapping.
	for _, name := range c.idents {
		if _, ok := env[name]; !ok {
			return nil, fmt.Errorf("%w: eval %q: undefined variable %q", ErrExpression, source, name)
		}
	}

	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}

	out, err := runProgram(c.program, env, opt.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: eval %q: %v", ErrExpression, source, err)
	}
	return out, nil
}

// EvaluateBool evaluates and coerces the result to a boolean.
func (e *Evaluator) EvaluateBool(source string, ctx Context, opts ...Options) (bool, error) {
	if source == "" {
		return true, nil
	}
	out, err := e.Evaluate(source, ctx, opts...)
	if err != nil {
		return false, err
	}
	return Truthy(out), nil
}

// compile compiles an expression and caches the result together with the
// identifiers it references. Forbidden identifiers are rejected here, so they
// can never reach evaluation even when stored-time validation was skipped.
func (e *Evaluator) compile(source string) (compiled, error) {
	e.mu.RLock()
	if c, ok := e.cache[source]; ok {
		e.mu.RUnlock()
		return c, nil
	}
	e.mu.RUnlock()

	idents, err := referencedIdentifiers(source)
	if err != nil {
		return compiled{}, err
	}

	compileEnv := Helpers(time.Now)
	compileEnv["_div"] = divide

	options := []expr.Option{
		expr.Env(compileEnv),
		expr.AllowUndefinedVariables(),
		expr.DisableAllBuiltins(),
		expr.Operator("/", "_div"),
	}
	for _, name := range enabledBuiltins {
		options = append(options, expr.EnableBuiltin(name))
	}

	prog, err := expr.Compile(source, options...)
	if err != nil {
		return compiled{}, err
	}

	c := compiled{program: prog, idents: idents}
	e.mu.Lock()
	e.cache[source] = c
	e.mu.Unlock()
	return c, nil
}

// runProgram executes a compiled program, optionally bounded by a timeout.
func runProgram(program *vm.Program, env map[string]any, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		return expr.Run(program, env)
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := expr.Run(program, env)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-time.After(timeout):
		// The run goroutine is abandoned, not interrupted; it drains into
		// the buffered channel whenever the run completes. The language has
		// no unbounded constructs, so completion is guaranteed.
		return nil, fmt.Errorf("timed out after %s", timeout)
	}
}

// divide backs the overloaded `/` operator. Division is always performed in
// floating point; dividing by zero yields the infinite sentinel rather than
// an error.
func divide(a, b any) float64 {
	bf := toFloat(b)
	if bf == 0 {
		af := toFloat(a)
		if af < 0 {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	return toFloat(a) / bf
}
