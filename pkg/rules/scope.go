package rules

// Scope resolves a field reference (step id or alias) to its answer value.
// Evaluation treats scopes as read-only.
type Scope interface {
	Lookup(name string) (any, bool)
}

// MapScope resolves references against a variable mapping, with an optional
// alias table mapping human aliases to answer keys.
type MapScope struct {
	Values  map[string]any
	Aliases map[string]string // alias -> key
}

// NewMapScope builds a scope over a variable mapping.
func NewMapScope(values map[string]any, aliases map[string]string) *MapScope {
	return &MapScope{Values: values, Aliases: aliases}
}

// Lookup resolves name directly, then through the alias table.
func (s *MapScope) Lookup(name string) (any, bool) {
	if v, ok := s.Values[name]; ok {
		return v, true
	}
	if key, ok := s.Aliases[name]; ok {
		v, ok := s.Values[key]
		return v, ok
	}
	return nil, false
}

// childScope overlays a single binding on a parent scope. Used by for_each
// to bind the item alias without touching the parent mapping.
type childScope struct {
	parent Scope
	name   string
	value  any
}

func (s *childScope) Lookup(name string) (any, bool) {
	if name == s.name {
		return s.value, true
	}
	return s.parent.Lookup(name)
}

// Bind derives a scope with one extra binding.
func Bind(parent Scope, name string, value any) Scope {
	return &childScope{parent: parent, name: name, value: value}
}
