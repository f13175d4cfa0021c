package schema

import (
	"strings"
	"testing"
)

const validWorkflow = `
apiVersion: workflow/v0
meta:
  id: wf-onboarding
  name: Customer onboarding
  created_by: author-1
  vars:
    region: emea
sections:
  - id: applicant
    title: Applicant
    steps:
      - id: full_name
        alias: name
        title: Full name
        type: text
        required: true
        constraints:
          min_length: 2
          max_length: 80
      - id: age
        title: Age
        type: number
        constraints:
          min: 0
          max: 130
      - id: guardian_name
        title: Guardian
        type: text
        visible_if: age < 18
    rules:
      - type: compare
        message: Age must be at least 18 for self-service
        compare:
          left: age
          op: greater_than
          right: 17
      - type: conditional_required
        message: Guardian name is required for minors
        require:
          when:
            left: age
            op: less_than
            right: 18
          fields: [guardian_name]
logic_rules:
  - target_step: guardian_name
    action: require
    condition: age < 18
hooks:
  - id: hook-welcome
    phase: before_render
    code: "output = { greeting: 'hi' }"
    enabled: true
    input_keys: [full_name]
    output_keys: [greeting]
    mutate: true
`

func TestLoad_Valid(t *testing.T) {
	wf, err := Load(strings.NewReader(validWorkflow))
	if err != nil {
		t.Fatal(err)
	}
	if wf.Meta.ID != "wf-onboarding" {
		t.Errorf("meta.id = %q", wf.Meta.ID)
	}
	if len(wf.Sections) != 1 || len(wf.Sections[0].Steps) != 3 {
		t.Fatalf("unexpected shape: %+v", wf.Sections)
	}
	// Defaults applied on load.
	h := wf.Hooks[0]
	if h.Language != LanguageJavaScript {
		t.Errorf("hook language = %q", h.Language)
	}
	if h.TimeoutMs != DefaultHookTimeoutMs {
		t.Errorf("hook timeout = %d", h.TimeoutMs)
	}
	if h.WorkflowID != "wf-onboarding" {
		t.Errorf("hook workflow id = %q", h.WorkflowID)
	}
	if wf.Sections[0].Rules[0].Compare.RightType != RightLiteral {
		t.Errorf("right_type default not applied")
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	doc := strings.Replace(validWorkflow, "name: Customer onboarding", "name: x\n  bogus_field: y", 1)
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatal("expected strict decode to fail on unknown field")
	}
}

func TestValidate_ValidWorkflowPasses(t *testing.T) {
	_, errs := Validate(strings.NewReader(validWorkflow))
	for _, e := range errs {
		if e.Severity != "warning" {
			t.Errorf("unexpected error: %v", e)
		}
	}
}

func TestValidateDomain_DuplicateStepID(t *testing.T) {
	wf, err := Load(strings.NewReader(validWorkflow))
	if err != nil {
		t.Fatal(err)
	}
	wf.Sections[0].Steps[1].ID = "full_name"
	errs := ValidateDomain(wf)
	if !HasErrors(errs) {
		t.Fatal("expected duplicate id error")
	}
}

func TestValidateDomain_AliasCollidesWithID(t *testing.T) {
	wf, _ := Load(strings.NewReader(validWorkflow))
	wf.Sections[0].Steps[1].Alias = "full_name"
	if !HasErrors(ValidateDomain(wf)) {
		t.Fatal("expected alias collision error")
	}
}

func TestValidateDomain_BadExpressionRejectedBeforeStorage(t *testing.T) {
	wf, _ := Load(strings.NewReader(validWorkflow))
	wf.Sections[0].Steps[2].VisibleIf = "nonexistent_var > 1"
	errs := ValidateDomain(wf)
	if !HasErrors(errs) {
		t.Fatal("expected unknown identifier error")
	}
}

func TestValidateDomain_ForbiddenIdentifier(t *testing.T) {
	wf, _ := Load(strings.NewReader(validWorkflow))
	wf.LogicRules[0].Condition = "__proto__"
	if !HasErrors(ValidateDomain(wf)) {
		t.Fatal("expected forbidden identifier error")
	}
}

func TestValidateDomain_LogicRuleTargetMustExist(t *testing.T) {
	wf, _ := Load(strings.NewReader(validWorkflow))
	wf.LogicRules[0].TargetStep = "missing_step"
	if !HasErrors(ValidateDomain(wf)) {
		t.Fatal("expected missing target error")
	}
}

func TestValidateDomain_MutateWithoutOutputKeysWarns(t *testing.T) {
	wf, _ := Load(strings.NewReader(validWorkflow))
	wf.Hooks[0].OutputKeys = nil
	errs := ValidateDomain(wf)
	warned := false
	for _, e := range errs {
		if e.Severity == "warning" {
			warned = true
		} else {
			t.Errorf("unexpected error: %v", e)
		}
	}
	if !warned {
		t.Fatal("expected warning for mutate without output_keys")
	}
}

func TestValidateDomain_RuleMustHaveExactlyOneVariant(t *testing.T) {
	wf, _ := Load(strings.NewReader(validWorkflow))
	wf.Sections[0].Rules[0].Assert = &AssertRule{Key: "age", Op: AssertNotEmpty}
	if !HasErrors(ValidateDomain(wf)) {
		t.Fatal("expected multi-variant rule error")
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "workflow-v0.json") {
		t.Error("schema id missing")
	}
}

func TestKnownVariableNames(t *testing.T) {
	wf, _ := Load(strings.NewReader(validWorkflow))
	names := map[string]bool{}
	for _, n := range wf.KnownVariableNames() {
		names[n] = true
	}
	for _, want := range []string{"full_name", "name", "age", "guardian_name", "region"} {
		if !names[want] {
			t.Errorf("missing %q", want)
		}
	}
}
