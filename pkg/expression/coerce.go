package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// toFloat coerces an answer value to a float64. Unparseable values coerce to
// 0, matching the lenient numeric semantics of authored expressions.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ParseFloat is the strict variant of toFloat: it reports whether the value
// was actually numeric.
func ParseFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// LooseEqual compares two dynamically typed values the way rule authors
// expect: numerics compare numerically, everything else by string form.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := ParseFloat(a)
	bf, bok := ParseFloat(b)
	if aok && bok {
		return af == bf
	}
	return toString(a) == toString(b)
}

// Truthy reports the boolean reading of an arbitrary evaluation result.
// Empty values, zero, and false are falsy; everything else is truthy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	}
	return !IsEmpty(v)
}
