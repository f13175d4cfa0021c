package expression

import (
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Reasons an expression can be rejected before it is ever stored.
const (
	ReasonSyntax    = "syntax"
	ReasonUnknown   = "unknown_identifier"
	ReasonForbidden = "forbidden_identifier"
)

// InvalidExpressionError reports why an authored expression was rejected at
// validation time.
type InvalidExpressionError struct {
	Reason string // syntax, unknown_identifier, forbidden_identifier
	Detail string
}

func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid expression [%s]: %s", e.Reason, e.Detail)
}

// Validate parses the expression and walks every identifier reference.
// An identifier must resolve to a known variable name or a whitelisted helper;
// anything in the forbidden set is rejected wherever it appears, including as
// a member property (`x.constructor`). Returns nil when the expression is
// safe to store.
func Validate(source string, knownVars []string) error {
	tree, err := parser.Parse(source)
	if err != nil {
		return &InvalidExpressionError{Reason: ReasonSyntax, Detail: err.Error()}
	}

	known := make(map[string]bool, len(knownVars)+24)
	for _, name := range WhitelistNames() {
		known[name] = true
	}
	for _, name := range knownVars {
		known[name] = true
	}

	v := &identifierChecker{known: known}
	ast.Walk(&tree.Node, v)
	return v.err
}

// referencedIdentifiers parses the source and returns every bare identifier
// it references. Forbidden identifiers are an error wherever they appear,
// including as member properties.
func referencedIdentifiers(source string) ([]string, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	c := &identifierCollector{}
	ast.Walk(&tree.Node, c)
	if c.forbidden != "" {
		return nil, fmt.Errorf("forbidden identifier %q", c.forbidden)
	}
	return c.names, nil
}

// identifierCollector gathers identifier references and flags the first
// forbidden one.
type identifierCollector struct {
	names     []string
	forbidden string
}

func (c *identifierCollector) Visit(node *ast.Node) {
	if c.forbidden != "" {
		return
	}
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if forbiddenIdentifiers[n.Value] {
			c.forbidden = n.Value
			return
		}
		c.names = append(c.names, n.Value)
	case *ast.MemberNode:
		if prop, ok := n.Property.(*ast.StringNode); ok && forbiddenIdentifiers[prop.Value] {
			c.forbidden = prop.Value
		}
	}
}

// identifierChecker walks the AST collecting the first identifier violation.
type identifierChecker struct {
	known map[string]bool
	err   error
}

func (c *identifierChecker) Visit(node *ast.Node) {
	if c.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if forbiddenIdentifiers[n.Value] {
			c.err = &InvalidExpressionError{Reason: ReasonForbidden, Detail: n.Value}
			return
		}
		if !c.known[n.Value] {
			c.err = &InvalidExpressionError{
				Reason: ReasonUnknown,
				Detail: fmt.Sprintf("%q is not a variable or helper", n.Value),
			}
		}
	case *ast.MemberNode:
		// Property access: only the forbidden set matters here; object keys
		// inside an answer are not statically known.
		if prop, ok := n.Property.(*ast.StringNode); ok && forbiddenIdentifiers[prop.Value] {
			c.err = &InvalidExpressionError{Reason: ReasonForbidden, Detail: prop.Value}
		}
	case *ast.BuiltinNode:
		if !c.known[n.Name] {
			c.err = &InvalidExpressionError{
				Reason: ReasonUnknown,
				Detail: fmt.Sprintf("builtin %q is not whitelisted", n.Name),
			}
		}
	}
}
