package main

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

const explainDoc = `
apiVersion: workflow/v0
meta:
  id: wf-explain
  name: Explain fixture
sections:
  - id: main
    title: Main
    steps:
      - id: age
        title: Age
        type: number
        required: true
        constraints:
          min: 0
          max: 130
      - id: guardian
        title: Guardian
        visible_if: age < 18
    rules:
      - type: conditional_required
        message: Guardian name is required for minors
        require:
          when: {left: age, op: less_than, right: 18}
          fields: [guardian]
logic_rules:
  - target_step: guardian
    action: require
    condition: age < 18
hooks:
  - id: hook-audit
    name: audit
    phase: before_submit
    code: "console.log('submitted')"
    enabled: true
    input_keys: [age]
`

func TestExplainWorkflow(t *testing.T) {
	wf, err := schema.Load(strings.NewReader(explainDoc))
	if err != nil {
		t.Fatal(err)
	}
	doc := explainWorkflow(wf)

	for _, want := range []string{
		"# Explain fixture",
		"**Age** (`age`, number) — required",
		"constraints: min 0, max 130",
		"visible when `age < 18`",
		"conditional_required: Guardian name is required for minors",
		"require `guardian` when `age < 18`",
		"**audit** at `before_submit`",
		"reads: `age`",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"age=15", "name=Ada Lovelace", "vip=true", `tags=["a","b"]`})
	if err != nil {
		t.Fatal(err)
	}
	if vars["age"] != float64(15) {
		t.Errorf("age = %#v, want JSON number", vars["age"])
	}
	if vars["name"] != "Ada Lovelace" {
		t.Errorf("name = %#v", vars["name"])
	}
	if vars["vip"] != true {
		t.Errorf("vip = %#v", vars["vip"])
	}
	if tags, ok := vars["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", vars["tags"])
	}

	if _, err := parseVars([]string{"no-equals-sign"}); err == nil {
		t.Error("expected error for malformed pair")
	}
}
