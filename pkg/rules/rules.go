// Package rules evaluates declarative validation rules and field-level
// constraints against the current answer set. Rules run in author-declared
// order and every rule is always evaluated; nothing short-circuits across
// rules or fields, because the UI must show every error at once.
package rules

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ormasoftchile/flowlogic/pkg/expression"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// CustomValidator is a host-supplied check for one field's answer. A non-nil
// return fails the field with the returned message.
type CustomValidator func(value any) error

// Evaluator validates pages. The zero value is usable.
type Evaluator struct {
	// Custom validators keyed by field id, applied after structural
	// constraints.
	Custom map[string]CustomValidator
}

// ValidatePage validates the visible steps of a page plus the page's rules
// against the scope. Hidden steps are skipped entirely; a hidden field can
// neither fail nor be required.
func (e *Evaluator) ValidatePage(steps []schema.Step, pageRules []schema.Rule, scope Scope, visible map[string]bool) *PageResult {
	c := newPageCollector()

	for _, step := range steps {
		if visible != nil && !visible[step.ID] {
			continue
		}
		value, _ := scope.Lookup(step.ID)
		for _, msg := range e.validateField(step, value) {
			c.add(step.ID, step.Title, msg)
		}
	}

	for _, rule := range pageRules {
		e.evalRule(rule, scope, c)
	}

	return c.result()
}

// evalRule dispatches one rule. Rule failures are user-facing messages, not
// errors; an evaluation problem inside a rule fails that rule (fail-closed:
// under-validating is worse than over-validating).
func (e *Evaluator) evalRule(rule schema.Rule, scope Scope, c *pageCollector) {
	switch {
	case rule.Compare != nil:
		if !evalCompare(rule.Compare, scope) {
			c.add(rule.Compare.Left, "", rule.Message)
		}
	case rule.Require != nil:
		e.evalRequire(rule, scope, c)
	case rule.ForEach != nil:
		e.evalForEach(rule, scope, c)
	case rule.Assert != nil:
		if !evalAssert(rule.Assert, scope) {
			c.add(rule.Assert.Key, "", rule.Message)
		}
	}
}

// evalRequire handles conditional_required: when the condition holds, every
// listed field must be non-empty. A condition that cannot be evaluated is
// treated as true.
func (e *Evaluator) evalRequire(rule schema.Rule, scope Scope, c *pageCollector) {
	if !evalCompare(&rule.Require.When, scope) && compareResolvable(&rule.Require.When, scope) {
		return
	}
	for _, field := range rule.Require.Fields {
		v, _ := scope.Lookup(field)
		if expression.IsEmpty(v) {
			c.add(field, "", rule.Message)
		}
	}
}

// evalForEach validates every element of a list answer, binding the item
// alias in a derived scope. Failures never short-circuit: each element's
// outcome is recorded independently under InstanceErrors.
func (e *Evaluator) evalForEach(rule schema.Rule, scope Scope, c *pageCollector) {
	fe := rule.ForEach
	raw, ok := scope.Lookup(fe.List)
	if !ok || raw == nil {
		return // nothing to iterate; the list itself is policed by required/assert rules
	}
	items := toSlice(raw)
	if items == nil {
		c.add(fe.List, "", rule.Message)
		return
	}

	failed := false
	for i, item := range items {
		child := Bind(scope, fe.As, item)
		sub := newPageCollector()
		for _, nested := range fe.Rules {
			e.evalRule(nested, child, sub)
		}
		if sub.count > 0 {
			failed = true
			c.addInstance(fe.List, "", i, flatten(sub))
		}
	}
	if failed {
		// Per-instance detail is preserved above; the user-facing message
		// is the parent rule's.
		c.add(fe.List, "", rule.Message)
	}
}

func flatten(c *pageCollector) []string {
	var msgs []string
	for _, id := range c.order {
		f := c.fields[id]
		for _, m := range f.Errors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", id, m))
		}
	}
	return msgs
}

// evalCompare applies a compare rule. Numeric operators coerce both sides to
// numbers; contains requires a string or array-like left side. Any resolution
// or coercion failure makes the comparison false, which fails the owning rule.
func evalCompare(cmp *schema.CompareRule, scope Scope) bool {
	left, ok := scope.Lookup(cmp.Left)
	if !ok {
		return false
	}
	right := cmp.Right
	if cmp.RightType == schema.RightField {
		right, ok = scope.Lookup(toKey(cmp.Right))
		if !ok {
			return false
		}
	}

	switch cmp.Op {
	case schema.OpEquals:
		return expression.LooseEqual(left, right)
	case schema.OpNotEquals:
		return !expression.LooseEqual(left, right)
	case schema.OpGreaterThan, schema.OpLessThan:
		lf, lok := expression.ParseFloat(left)
		rf, rok := expression.ParseFloat(right)
		if !lok || !rok {
			return false
		}
		if cmp.Op == schema.OpGreaterThan {
			return lf > rf
		}
		return lf < rf
	case schema.OpContains:
		return containsValue(left, right)
	default:
		return false
	}
}

// compareResolvable reports whether both sides of a compare can be resolved
// and coerced. Used by conditional_required to distinguish "condition is
// false" from "condition cannot be evaluated" (the latter fails closed).
func compareResolvable(cmp *schema.CompareRule, scope Scope) bool {
	left, ok := scope.Lookup(cmp.Left)
	if !ok {
		return false
	}
	right := cmp.Right
	if cmp.RightType == schema.RightField {
		if right, ok = scope.Lookup(toKey(cmp.Right)); !ok {
			return false
		}
	}
	if cmp.Op == schema.OpGreaterThan || cmp.Op == schema.OpLessThan {
		_, lok := expression.ParseFloat(left)
		_, rok := expression.ParseFloat(right)
		return lok && rok
	}
	return true
}

func evalAssert(a *schema.AssertRule, scope Scope) bool {
	v, _ := scope.Lookup(a.Key)
	switch a.Op {
	case schema.AssertNotEmpty:
		return !expression.IsEmpty(v)
	case schema.AssertEmpty:
		return expression.IsEmpty(v)
	case schema.AssertTrue:
		return expression.Truthy(v)
	case schema.AssertFalse:
		return !expression.Truthy(v)
	default:
		return false
	}
}

func containsValue(left, right any) bool {
	switch l := left.(type) {
	case string:
		return strings.Contains(l, fmt.Sprint(right))
	case []any:
		for _, el := range l {
			if expression.LooseEqual(el, right) {
				return true
			}
		}
		return false
	}
	rv := reflect.ValueOf(left)
	if left != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		for i := 0; i < rv.Len(); i++ {
			if expression.LooseEqual(rv.Index(i).Interface(), right) {
				return true
			}
		}
		return false
	}
	return false // contains needs a string or array-like left side
}

func toSlice(v any) []any {
	if items, ok := v.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

func toKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
