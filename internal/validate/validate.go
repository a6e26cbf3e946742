// Package validate checks closed-domain field values against the schema
// enumerations and proposes the closest canonical value when they miss.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/HendryAvila/recordpilot/internal/fuzzy"
	"github.com/HendryAvila/recordpilot/internal/schema"
)

// SuggestThreshold is the minimum Ratio for the closest canonical value to
// be offered as the suggestion. Below it the first declared value is offered.
const SuggestThreshold = 60

// Result is the outcome of validating a single value.
type Result struct {
	Valid      bool
	Value      any    // canonical value when Valid, otherwise the input
	Suggested  string // empty when Valid
	Similarity int    // score of the best canonical value, 0 when Valid
}

// Failure describes the first rejected field of a field map.
type Failure struct {
	Field      string
	UserValue  string
	Suggested  string
	Similarity int
}

// Validate checks value against the enumeration of table.field.
// Fields without an enumeration, and nil values, are always valid.
func Validate(table, field string, value any) Result {
	values, ok := schema.Enum(table, field)
	if !ok || value == nil {
		return Result{Valid: true, Value: value}
	}

	in := strings.ToLower(Stringify(value))
	for _, v := range values {
		if in == strings.ToLower(v) {
			return Result{Valid: true, Value: v}
		}
	}

	best, bestScore := "", 0
	for _, v := range values {
		if s := fuzzy.Ratio(in, strings.ToLower(v)); s > bestScore {
			best, bestScore = v, s
		}
	}
	if bestScore < SuggestThreshold {
		// Deliberate: fall back to the first declared value even though it
		// may be unrelated to the input. The user still has to confirm it.
		best = values[0]
	}
	return Result{Valid: false, Value: value, Suggested: best, Similarity: bestScore}
}

// FirstInvalid validates data in sorted key order and returns the first
// failure, or nil when every field passes.
func FirstInvalid(table string, data map[string]any) *Failure {
	for _, k := range sortedKeys(data) {
		r := Validate(table, k, data[k])
		if !r.Valid {
			return &Failure{
				Field:      k,
				UserValue:  Stringify(data[k]),
				Suggested:  r.Suggested,
				Similarity: r.Similarity,
			}
		}
	}
	return nil
}

// Canonicalize returns a copy of data with every valid enumerated value
// replaced by its canonical casing. Invalid values are left untouched.
func Canonicalize(table string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if r := Validate(table, k, v); r.Valid {
			out[k] = r.Value
		} else {
			out[k] = v
		}
	}
	return out
}

// Stringify renders a field value the way it is compared and echoed back.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		// JSON numbers decode as float64; whole numbers print without ".0"
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	default:
		return fmt.Sprint(x)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
