package rules

import (
	"fmt"
	"regexp"

	"github.com/ormasoftchile/flowlogic/pkg/expression"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// emailRe is deliberately RFC-light: one @, something on both sides, a dot in
// the domain.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validateField applies a step's structural constraints to its answer.
// A failing required check suppresses every other check for the field
// (fail-fast per field, never across fields). An empty optional answer
// passes unconditionally.
func (e *Evaluator) validateField(step schema.Step, value any) []string {
	title := step.Title
	if title == "" {
		title = step.ID
	}

	if expression.IsEmpty(value) {
		if step.Required {
			return []string{fmt.Sprintf("%s is required", title)}
		}
		return nil
	}

	var errs []string
	if c := step.Constraints; c != nil {
		s := toStr(value)

		if c.MinLength != nil && len([]rune(s)) < *c.MinLength {
			errs = append(errs, fmt.Sprintf("%s must be at least %d characters", title, *c.MinLength))
		}
		if c.MaxLength != nil && len([]rune(s)) > *c.MaxLength {
			errs = append(errs, fmt.Sprintf("%s must be at most %d characters", title, *c.MaxLength))
		}

		if c.Min != nil || c.Max != nil {
			n, ok := expression.ParseFloat(value)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s must be a number", title))
			} else {
				if c.Min != nil && n < *c.Min {
					errs = append(errs, fmt.Sprintf("%s must be at least %v", title, *c.Min))
				}
				if c.Max != nil && n > *c.Max {
					errs = append(errs, fmt.Sprintf("%s must be at most %v", title, *c.Max))
				}
			}
		}

		if c.Email && !emailRe.MatchString(s) {
			errs = append(errs, fmt.Sprintf("%s must be a valid email address", title))
		}

		if c.Pattern != "" {
			// An invalid author-supplied pattern is no constraint, not a crash.
			if re, err := regexp.Compile(c.Pattern); err == nil && !re.MatchString(s) {
				errs = append(errs, fmt.Sprintf("%s has an invalid format", title))
			}
		}
	}

	if e.Custom != nil {
		if fn, ok := e.Custom[step.ID]; ok && fn != nil {
			if err := fn(value); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	return errs
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
