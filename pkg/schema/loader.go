package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and strictly decodes a workflow definition from disk.
func LoadFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow file: %w", err)
	}
	defer f.Close()
	wf, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// Load strictly decodes a workflow definition. Unknown fields are rejected so
// typos fail at load time instead of silently disabling a rule.
func Load(r io.Reader) (*Workflow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var wf Workflow
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	applyDefaults(&wf)
	return &wf, nil
}

// applyDefaults fills omitted fields with their documented defaults so the
// rest of the engine never re-checks them.
func applyDefaults(wf *Workflow) {
	for hi := range wf.Hooks {
		h := &wf.Hooks[hi]
		if h.WorkflowID == "" {
			h.WorkflowID = wf.Meta.ID
		}
		if h.Language == "" {
			h.Language = LanguageJavaScript
		}
		if h.TimeoutMs == 0 {
			h.TimeoutMs = DefaultHookTimeoutMs
		}
	}
	for li := range wf.LogicRules {
		if wf.LogicRules[li].TargetType == "" {
			wf.LogicRules[li].TargetType = "step"
		}
	}
	for si := range wf.Sections {
		for ri := range wf.Sections[si].Rules {
			defaultRule(&wf.Sections[si].Rules[ri])
		}
	}
}

func defaultRule(r *Rule) {
	if r.Compare != nil && r.Compare.RightType == "" {
		r.Compare.RightType = RightLiteral
	}
	if r.Require != nil && r.Require.When.RightType == "" {
		r.Require.When.RightType = RightLiteral
	}
	if r.ForEach != nil {
		for i := range r.ForEach.Rules {
			defaultRule(&r.ForEach.Rules[i])
		}
	}
}
