package expressions

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// ToString renders a value the way it should appear inside interpolated text.
func ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case map[string]any, []any, map[string]string, []string, []map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cast.ToString(v)
		}
		return string(encoded)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		encoded, jsonErr := json.Marshal(value)
		if jsonErr != nil {
			return ""
		}
		return string(encoded)
	}

	return s
}

func IsNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return true
	}
	return false
}

// ToNumber converts numbers and numeric strings. Booleans and nil do not convert.
func ToNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}

	if !IsNumber(value) {
		return 0, false
	}

	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}

	return f, true
}

func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}

	if f, ok := ToNumber(value); ok {
		return f != 0 && !math.IsNaN(f)
	}

	return true
}

// IsEmpty is true for nil, blank strings and empty collections.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}

	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

// LooseEquals compares with type coercion between numbers, numeric strings
// and booleans.
func LooseEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if IsNumber(a) || IsNumber(b) {
		na, okA := ToNumber(a)
		nb, okB := ToNumber(b)
		if okA && okB {
			return na == nb
		}
	}

	if ba, ok := a.(bool); ok {
		bb, err := cast.ToBoolE(b)
		return err == nil && ba == bb
	}

	if bb, ok := b.(bool); ok {
		ba, err := cast.ToBoolE(a)
		return err == nil && ba == bb
	}

	if isScalar(a) && isScalar(b) {
		return ToString(a) == ToString(b)
	}

	return reflect.DeepEqual(a, b)
}

// StrictEquals compares without coercion. Integer and float representations of
// the same number are equal.
func StrictEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if IsNumber(a) && IsNumber(b) {
		na, _ := ToNumber(a)
		nb, _ := ToNumber(b)
		return na == nb
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}

	return reflect.DeepEqual(a, b)
}

// Compare orders two values numerically when both convert to numbers and
// lexically otherwise. ok is false when the values cannot be ordered.
func Compare(a, b any) (result int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}

	na, okA := ToNumber(a)
	nb, okB := ToNumber(b)
	if okA && okB {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}

	return 0, false
}

// Contains checks substrings, slice membership and map keys.
func Contains(container, item any) bool {
	switch c := container.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(c, ToString(item))
	case []any:
		for _, element := range c {
			if LooseEquals(element, item) {
				return true
			}
		}
		return false
	case []string:
		needle := ToString(item)
		for _, element := range c {
			if element == needle {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := c[ToString(item)]
		return ok
	}

	return strings.Contains(ToString(container), ToString(item))
}

// ToSlice returns value as a slice, splitting comma separated strings.
func ToSlice(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]any, 0, len(parts))
		for _, part := range parts {
			out = append(out, strings.TrimSpace(part))
		}
		return out
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}

	return []any{value}
}

func isScalar(value any) bool {
	switch value.(type) {
	case string, bool:
		return true
	}
	return IsNumber(value)
}

// CloneValue deep-copies maps and slices so callers can modify the result
// without touching values shared with other nodes.
func CloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}
