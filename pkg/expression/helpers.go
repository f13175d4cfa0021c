package expression

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Clock supplies the current time to date helpers. Evaluation never reads the
// system clock directly, so fixing the clock makes results reproducible.
type Clock func() time.Time

// Forbidden identifiers are rejected wherever they appear in an expression:
// as bare identifiers, member properties, or call targets.
var forbiddenIdentifiers = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
	"eval":        true,
	"Function":    true,
}

// enabledBuiltins are the expr-lang builtins the language keeps. Everything
// else is disabled so the validator's whitelist and the evaluator's
// environment stay in lockstep.
var enabledBuiltins = []string{"len"}

// Helpers builds the helper-function environment for one evaluation. The
// clock is closed over by the date helpers.
//
// `contains` and `not` are grammar-level operators in the language
// (`name contains "x"`, `not done`) and therefore do not appear here.
func Helpers(clock Clock) map[string]any {
	return map[string]any{
		// math
		"abs":     func(v any) float64 { return math.Abs(toFloat(v)) },
		"ceil":    func(v any) float64 { return math.Ceil(toFloat(v)) },
		"floor":   func(v any) float64 { return math.Floor(toFloat(v)) },
		"min":     func(a, b any) float64 { return math.Min(toFloat(a), toFloat(b)) },
		"max":     func(a, b any) float64 { return math.Max(toFloat(a), toFloat(b)) },
		"roundTo": roundTo,

		// string
		"upper":  func(v any) string { return strings.ToUpper(toString(v)) },
		"lower":  func(v any) string { return strings.ToLower(toString(v)) },
		"trim":   func(v any) string { return strings.TrimSpace(toString(v)) },
		"concat": concatValues,

		// array
		"count":    countValues,
		"includes": includesValue,

		// logic
		"coalesce": coalesceValues,
		"isEmpty":  IsEmpty,

		// date
		"dateDiff": func(unit, since any) (int, error) {
			return dateDiff(toString(unit), toString(since), clock)
		},
	}
}

// WhitelistNames returns every callable name the language admits: the helper
// library plus the enabled builtins. The validator and the evaluator both
// derive their identifier tables from this single list.
func WhitelistNames() []string {
	names := make([]string, 0, 24)
	for name := range Helpers(time.Now) {
		names = append(names, name)
	}
	names = append(names, enabledBuiltins...)
	return names
}

func roundTo(v, places any) float64 {
	p := math.Pow(10, float64(int(toFloat(places))))
	return math.Round(toFloat(v)*p) / p
}

func concatValues(args ...any) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(toString(a))
	}
	return b.String()
}

func countValues(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return len(val)
	case []any:
		return len(val)
	case map[string]any:
		return len(val)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}

func includesValue(collection, item any) bool {
	switch c := collection.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(c, toString(item))
	case []any:
		for _, el := range c {
			if LooseEqual(el, item) {
				return true
			}
		}
		return false
	}
	rv := reflect.ValueOf(collection)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if LooseEqual(rv.Index(i).Interface(), item) {
				return true
			}
		}
	}
	return false
}

// coalesceValues returns the first argument that is neither nil nor an empty
// string, or nil when every argument is empty.
func coalesceValues(args ...any) any {
	for _, a := range args {
		if a == nil {
			continue
		}
		if s, ok := a.(string); ok && s == "" {
			continue
		}
		return a
	}
	return nil
}

// IsEmpty reports whether a value counts as "no answer": nil, a blank string,
// or an empty collection.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// dateDiff returns the whole number of units elapsed between `since` and the
// injected clock, truncated toward zero. Accepted timestamp layouts are
// RFC 3339 and bare dates (2006-01-02).
func dateDiff(unit, since string, clock Clock) (int, error) {
	t, err := parseTimestamp(since)
	if err != nil {
		return 0, err
	}
	d := clock().Sub(t)
	switch unit {
	case "seconds":
		return int(d.Seconds()), nil
	case "minutes":
		return int(d.Minutes()), nil
	case "hours":
		return int(d.Hours()), nil
	case "days":
		return int(d.Hours() / 24), nil
	case "weeks":
		return int(d.Hours() / (24 * 7)), nil
	case "years":
		return int(d.Hours() / (24 * 365.2425)), nil
	default:
		return 0, fmt.Errorf("dateDiff: unknown unit %q", unit)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("dateDiff: cannot parse timestamp %q", s)
}
