// Package schema defines the workflow definition document and its 3-phase
// validation pipeline: structural (strict YAML decode), semantic (JSON
// Schema), and domain (Go rules, including compile-time expression checks).
package schema

import "time"

// DefaultHookTimeoutMs bounds a hook script when the author sets no timeout.
const DefaultHookTimeoutMs = 1000

// Workflow is the root of a workflow logic definition document.
type Workflow struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Meta       Meta        `yaml:"meta" json:"meta"`
	Sections   []Section   `yaml:"sections" json:"sections"`
	LogicRules []LogicRule `yaml:"logic_rules,omitempty" json:"logic_rules,omitempty"`
	Hooks      []Hook      `yaml:"hooks,omitempty" json:"hooks,omitempty"`
}

// Meta carries workflow identity and author-defined variables.
type Meta struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	CreatedBy   string         `yaml:"created_by,omitempty" json:"created_by,omitempty"`
	Vars        map[string]any `yaml:"vars,omitempty" json:"vars,omitempty"`
}

// Section groups steps into a page with its own validation rules.
type Section struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
	Steps []Step `yaml:"steps" json:"steps"`
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Step is a single question or input field.
type Step struct {
	ID          string       `yaml:"id" json:"id"`
	Alias       string       `yaml:"alias,omitempty" json:"alias,omitempty"`
	Title       string       `yaml:"title,omitempty" json:"title,omitempty"`
	Type        StepType     `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool         `yaml:"required,omitempty" json:"required,omitempty"`
	VisibleIf   string       `yaml:"visible_if,omitempty" json:"visible_if,omitempty"`
	Constraints *Constraints `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// StepType names the input widget a step renders as. The logic layer only
// cares about the answer value, so unknown types are tolerated.
type StepType string

const (
	StepText     StepType = "text"
	StepNumber   StepType = "number"
	StepBoolean  StepType = "boolean"
	StepSelect   StepType = "select"
	StepDate     StepType = "date"
	StepList     StepType = "list"
	StepTextArea StepType = "textarea"
)

// Constraints are field-level checks applied to a non-empty answer.
type Constraints struct {
	MinLength *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Email     bool     `yaml:"email,omitempty" json:"email,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// RuleType discriminates the validation rule variants.
type RuleType string

const (
	RuleCompare RuleType = "compare"
	RuleRequire RuleType = "conditional_required"
	RuleForEach RuleType = "for_each"
	RuleAssert  RuleType = "assert"
)

// Rule is one declarative validation rule. Exactly one variant block must be
// set, matching Type.
type Rule struct {
	Type    RuleType     `yaml:"type" json:"type"`
	Message string       `yaml:"message" json:"message"`
	Compare *CompareRule `yaml:"compare,omitempty" json:"compare,omitempty"`
	Require *RequireRule `yaml:"require,omitempty" json:"require,omitempty"`
	ForEach *ForEachRule `yaml:"for_each,omitempty" json:"for_each,omitempty"`
	Assert  *AssertRule  `yaml:"assert,omitempty" json:"assert,omitempty"`
}

// CompareOp is a compare rule operator.
type CompareOp string

const (
	OpEquals      CompareOp = "equals"
	OpNotEquals   CompareOp = "not_equals"
	OpGreaterThan CompareOp = "greater_than"
	OpLessThan    CompareOp = "less_than"
	OpContains    CompareOp = "contains"
)

// RightType says whether a compare's right side is a literal or another
// field reference.
type RightType string

const (
	RightLiteral RightType = "literal"
	RightField   RightType = "field"
)

// CompareRule compares a field's answer against a literal or another field.
type CompareRule struct {
	Left      string    `yaml:"left" json:"left"`
	Op        CompareOp `yaml:"op" json:"op"`
	Right     any       `yaml:"right" json:"right"`
	RightType RightType `yaml:"right_type,omitempty" json:"right_type,omitempty"`
}

// RequireRule makes fields mandatory when a condition holds.
type RequireRule struct {
	When   CompareRule `yaml:"when" json:"when"`
	Fields []string    `yaml:"fields" json:"fields"`
}

// ForEachRule applies nested rules to every element of a list answer, with
// the element bound under As.
type ForEachRule struct {
	List  string `yaml:"list" json:"list"`
	As    string `yaml:"as" json:"as"`
	Rules []Rule `yaml:"rules" json:"rules"`
}

// AssertOp is a legacy assert operator.
type AssertOp string

const (
	AssertNotEmpty AssertOp = "not_empty"
	AssertEmpty    AssertOp = "empty"
	AssertTrue     AssertOp = "is_true"
	AssertFalse    AssertOp = "is_false"
)

// AssertRule is the legacy single-key assertion form kept for older
// definitions.
type AssertRule struct {
	Key string   `yaml:"key" json:"key"`
	Op  AssertOp `yaml:"op" json:"op"`
}

// LogicAction is a workflow-level visibility rule action.
type LogicAction string

const (
	ActionShow    LogicAction = "show"
	ActionHide    LogicAction = "hide"
	ActionRequire LogicAction = "require"
)

// LogicRule is a workflow-level show/hide/require rule targeting one step.
type LogicRule struct {
	TargetType string      `yaml:"target_type,omitempty" json:"target_type,omitempty"`
	TargetStep string      `yaml:"target_step" json:"target_step"`
	Action     LogicAction `yaml:"action" json:"action"`
	Condition  string      `yaml:"condition" json:"condition"`
}

// LanguageJavaScript is the only hook script language the engine runs.
const LanguageJavaScript = "javascript"

// Hook is a lifecycle script attached to a workflow phase.
type Hook struct {
	ID         string   `yaml:"id" json:"id"`
	WorkflowID string   `yaml:"workflow_id,omitempty" json:"workflow_id,omitempty"`
	SectionID  string   `yaml:"section_id,omitempty" json:"section_id,omitempty"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Phase      string   `yaml:"phase" json:"phase"`
	Language   string   `yaml:"language,omitempty" json:"language,omitempty"`
	Code       string   `yaml:"code" json:"code"`
	InputKeys  []string `yaml:"input_keys,omitempty" json:"input_keys,omitempty"`
	OutputKeys []string `yaml:"output_keys,omitempty" json:"output_keys,omitempty"`
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Order      int      `yaml:"order,omitempty" json:"order,omitempty"`
	TimeoutMs  int      `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	Mutate     bool     `yaml:"mutate,omitempty" json:"mutate,omitempty"`
}

// Timeout returns the hook's execution bound.
func (h *Hook) Timeout() time.Duration {
	ms := h.TimeoutMs
	if ms <= 0 {
		ms = DefaultHookTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// AllSteps flattens every section's steps in declaration order.
func (w *Workflow) AllSteps() []Step {
	var steps []Step
	for _, sec := range w.Sections {
		steps = append(steps, sec.Steps...)
	}
	return steps
}

// SectionByID returns the section with the given id, or nil.
func (w *Workflow) SectionByID(id string) *Section {
	for i := range w.Sections {
		if w.Sections[i].ID == id {
			return &w.Sections[i]
		}
	}
	return nil
}

// KnownVariableNames returns every identifier an expression in this workflow
// may reference: step ids, step aliases, and meta vars, in declaration order.
func (w *Workflow) KnownVariableNames() []string {
	var names []string
	for _, step := range w.AllSteps() {
		names = append(names, step.ID)
		if step.Alias != "" {
			names = append(names, step.Alias)
		}
	}
	for name := range w.Meta.Vars {
		names = append(names, name)
	}
	return names
}
