package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/recordpilot/internal/schema"
)

// ErrInvalidValue is returned when a value cannot be coerced to its field kind.
var ErrInvalidValue = errors.New("invalid value")

// DateLayout is the storage and wire format for date fields.
const DateLayout = "2006-01-02T15:04:05.999999"

// Accepted input layouts. Fractional seconds are accepted after the
// seconds field without being spelled out in the layout.
var (
	dateTimeLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	dateOnlyLayout  = "2006-01-02"
)

// ParseDate parses the accepted date and datetime formats.
// The second result is false for empty or unparseable input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.ContainsAny(s, "T ") {
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseList coerces v into an ordered sequence.
//
//   - nil stays nil
//   - a slice is kept as is
//   - a string holding a JSON array is decoded; a JSON scalar is wrapped
//   - any other string is split on commas, trimmed, empties dropped
//   - any other scalar is wrapped in a one-element list
func ParseList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(x), &decoded); err == nil {
			if arr, ok := decoded.([]any); ok {
				return arr
			}
			return []any{decoded}
		}
		out := []any{}
		for _, part := range strings.Split(x, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []any{x}
	}
}

// encodeValue converts an inbound value into its SQLite column value.
func encodeValue(kind schema.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case schema.KindDate:
		var t time.Time
		switch x := v.(type) {
		case time.Time:
			t = x
		default:
			parsed, ok := ParseDate(toText(v))
			if !ok {
				// unparseable dates are stored as null
				return nil, nil
			}
			t = parsed
		}
		return t.Format(DateLayout), nil

	case schema.KindList:
		b, err := json.Marshal(ParseList(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return string(b), nil

	case schema.KindBool:
		switch x := v.(type) {
		case bool:
			return boolToInt(x), nil
		case float64:
			return boolToInt(x != 0), nil
		case int:
			return boolToInt(x != 0), nil
		case int64:
			return boolToInt(x != 0), nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, x)
			}
			return boolToInt(b), nil
		}
		return nil, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, v)

	case schema.KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if x != float64(int64(x)) {
				return nil, fmt.Errorf("%w: %v is not a whole number", ErrInvalidValue, x)
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a whole number", ErrInvalidValue, x)
			}
			return n, nil
		}
		return nil, fmt.Errorf("%w: %v is not a whole number", ErrInvalidValue, v)

	default:
		return toText(v), nil
	}
}

// decodeValue converts a scanned column value back into its Go shape.
func decodeValue(kind schema.Kind, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch kind {
	case schema.KindDate:
		s, ok := v.(string)
		if !ok {
			return v
		}
		if t, err := time.Parse(DateLayout, s); err == nil {
			return t
		}
		return s
	case schema.KindList:
		s, ok := v.(string)
		if !ok {
			return v
		}
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return []any{s}
		}
		return out
	case schema.KindBool:
		if n, ok := v.(int64); ok {
			return n != 0
		}
		return v
	default:
		return v
	}
}

func encodeFields(table string, data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		enc, err := encodeValue(schema.KindOf(table, k), v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
