package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/flowlogic/pkg/expression"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "sections[0].steps[2]")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether the list contains at least one error-severity entry.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a workflow file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules, including expression validation)
func ValidateFile(path string) (*Workflow, []*ValidationError) {
	wf, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{structuralError(err)}
	}
	return wf, validateLoaded(wf)
}

// Validate runs the same pipeline against a definition read from a stream.
func Validate(r io.Reader) (*Workflow, []*ValidationError) {
	wf, err := Load(r)
	if err != nil {
		return nil, []*ValidationError{structuralError(err)}
	}
	return wf, validateLoaded(wf)
}

func structuralError(err error) *ValidationError {
	return &ValidationError{Phase: "structural", Message: err.Error(), Severity: "error"}
}

func validateLoaded(wf *Workflow) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(wf)...)
	all = append(all, ValidateDomain(wf)...)
	return all
}

// validateSemantic validates the workflow against the generated JSON Schema.
func validateSemantic(wf *Workflow) []*ValidationError {
	semErr := func(msg string, err error) []*ValidationError {
		return []*ValidationError{{
			Phase: "semantic", Message: fmt.Sprintf("%s: %v", msg, err), Severity: "error",
		}}
	}

	data, err := json.Marshal(wf)
	if err != nil {
		return semErr("marshal for schema validation", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semErr("generate schema", err)
	}

	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return semErr("unmarshal schema", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("workflow-v0.json", schemaDoc); err != nil {
		return semErr("add schema resource", err)
	}
	compiled, err := c.Compile("workflow-v0.json")
	if err != nil {
		return semErr("compile schema", err)
	}

	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return semErr("unmarshal document", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: err.Error(), Severity: "error"}}
	}
	return nil
}

// ValidateDomain applies the Go-level rules the JSON Schema cannot express:
// identifier uniqueness, target references, and compile-time validation of
// every authored expression against the workflow's known variable names.
// Expressions are rejected here, before storage; they never reach evaluation.
func ValidateDomain(wf *Workflow) []*ValidationError {
	var errs []*ValidationError
	addErr := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"})
	}
	addWarn := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "warning"})
	}

	// Step ids and aliases share one namespace: an alias resolves inside
	// expressions exactly like an id.
	seen := map[string]string{}
	for si, sec := range wf.Sections {
		for pi, step := range sec.Steps {
			path := fmt.Sprintf("sections[%d].steps[%d]", si, pi)
			if step.ID == "" {
				addErr(path, "step id is required")
				continue
			}
			if prev, dup := seen[step.ID]; dup {
				addErr(path, fmt.Sprintf("step id %q already used at %s", step.ID, prev))
			}
			seen[step.ID] = path
			if step.Alias != "" {
				if prev, dup := seen[step.Alias]; dup {
					addErr(path, fmt.Sprintf("alias %q collides with %s", step.Alias, prev))
				}
				seen[step.Alias] = path
			}
		}
	}

	known := wf.KnownVariableNames()
	checkExpr := func(path, source string) {
		if source == "" {
			return
		}
		if err := expression.Validate(source, known); err != nil {
			addErr(path, err.Error())
		}
	}

	for si, sec := range wf.Sections {
		for pi, step := range sec.Steps {
			checkExpr(fmt.Sprintf("sections[%d].steps[%d].visible_if", si, pi), step.VisibleIf)
		}
		for ri, rule := range sec.Rules {
			validateRule(fmt.Sprintf("sections[%d].rules[%d]", si, ri), rule, addErr)
		}
	}

	for li, lr := range wf.LogicRules {
		path := fmt.Sprintf("logic_rules[%d]", li)
		switch lr.Action {
		case ActionShow, ActionHide, ActionRequire:
		default:
			addErr(path, fmt.Sprintf("unknown action %q", lr.Action))
		}
		if lr.TargetStep == "" {
			addErr(path, "target_step is required")
		} else if _, ok := seen[lr.TargetStep]; !ok {
			addErr(path, fmt.Sprintf("target_step %q does not exist", lr.TargetStep))
		}
		checkExpr(path+".condition", lr.Condition)
	}

	hookIDs := map[string]bool{}
	for hi := range wf.Hooks {
		h := &wf.Hooks[hi]
		path := fmt.Sprintf("hooks[%d]", hi)
		if h.ID == "" {
			addErr(path, "hook id is required")
		} else if hookIDs[h.ID] {
			addErr(path, fmt.Sprintf("duplicate hook id %q", h.ID))
		}
		hookIDs[h.ID] = true
		if h.Phase == "" {
			addErr(path, "phase is required")
		}
		if h.Language != LanguageJavaScript {
			addErr(path, fmt.Sprintf("unsupported language %q", h.Language))
		}
		if h.Code == "" {
			addErr(path, "code is required")
		}
		if h.TimeoutMs < 0 {
			addErr(path, "timeout_ms must be positive")
		}
		if h.Mutate && len(h.OutputKeys) == 0 {
			addWarn(path, "mutate is set but output_keys is empty; no output will be merged")
		}
		if h.SectionID != "" && wf.SectionByID(h.SectionID) == nil {
			addErr(path, fmt.Sprintf("section_id %q does not exist", h.SectionID))
		}
	}

	return errs
}

// validateRule checks one validation rule, recursing into for_each nests.
func validateRule(path string, r Rule, addErr func(path, msg string)) {
	variants := 0
	if r.Compare != nil {
		variants++
	}
	if r.Require != nil {
		variants++
	}
	if r.ForEach != nil {
		variants++
	}
	if r.Assert != nil {
		variants++
	}
	if variants != 1 {
		addErr(path, fmt.Sprintf("rule must have exactly one variant, found %d", variants))
		return
	}
	if r.Message == "" {
		addErr(path, "message is required")
	}

	switch r.Type {
	case RuleCompare:
		if r.Compare == nil {
			addErr(path, "type compare requires a compare block")
			return
		}
		validateCompare(path+".compare", r.Compare, addErr)
	case RuleRequire:
		if r.Require == nil {
			addErr(path, "type conditional_required requires a require block")
			return
		}
		validateCompare(path+".require.when", &r.Require.When, addErr)
		if len(r.Require.Fields) == 0 {
			addErr(path+".require", "fields must not be empty")
		}
	case RuleForEach:
		if r.ForEach == nil {
			addErr(path, "type for_each requires a for_each block")
			return
		}
		if r.ForEach.List == "" {
			addErr(path+".for_each", "list is required")
		}
		if r.ForEach.As == "" {
			addErr(path+".for_each", "as is required")
		}
		for i, nested := range r.ForEach.Rules {
			validateRule(fmt.Sprintf("%s.for_each.rules[%d]", path, i), nested, addErr)
		}
	case RuleAssert:
		if r.Assert == nil {
			addErr(path, "type assert requires an assert block")
			return
		}
		switch r.Assert.Op {
		case AssertNotEmpty, AssertEmpty, AssertTrue, AssertFalse:
		default:
			addErr(path+".assert", fmt.Sprintf("unknown op %q", r.Assert.Op))
		}
		if r.Assert.Key == "" {
			addErr(path+".assert", "key is required")
		}
	default:
		addErr(path, fmt.Sprintf("unknown rule type %q", r.Type))
	}
}

func validateCompare(path string, c *CompareRule, addErr func(path, msg string)) {
	if c.Left == "" {
		addErr(path, "left is required")
	}
	switch c.Op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains:
	default:
		addErr(path, fmt.Sprintf("unknown op %q", c.Op))
	}
	switch c.RightType {
	case RightLiteral, RightField, "":
	default:
		addErr(path, fmt.Sprintf("unknown right_type %q", c.RightType))
	}
}
