package assertions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Equal reports whether actual and expected are equal by value. nil equals
// only nil. Numbers compare numerically whatever their Go representation, so
// int64(1) equals float64(1); strings are never coerced to numbers. Values
// that contain themselves are never equal.
func Equal(actual, expected any) bool {
	return equal(actual, expected, make(map[visit]struct{}))
}

// visit identifies a pair of containers on the current comparison path.
type visit struct {
	actual, expected uintptr
}

func equal(actual, expected any, path map[visit]struct{}) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	if a, ok := toFloat64(actual); ok {
		e, ok := toFloat64(expected)
		return ok && a == e
	}

	switch a := actual.(type) {
	case map[string]any:
		e, ok := expected.(map[string]any)
		if !ok || len(a) != len(e) {
			return false
		}
		v, ok := enter(path, a, e)
		if !ok {
			return false
		}
		defer delete(path, v)
		for k, av := range a {
			ev, ok := e[k]
			if !ok || !equal(av, ev, path) {
				return false
			}
		}
		return true
	case []any:
		e, ok := expected.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		if len(a) == 0 {
			return true
		}
		v, ok := enter(path, a, e)
		if !ok {
			return false
		}
		defer delete(path, v)
		for i := range a {
			if !equal(a[i], e[i], path) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(actual, expected)
}

// enter records the container pair on path. ok is false when the pair is
// already being compared, which means the values are cyclic.
func enter(path map[visit]struct{}, actual, expected any) (visit, bool) {
	v := visit{
		actual:   reflect.ValueOf(actual).Pointer(),
		expected: reflect.ValueOf(expected).Pointer(),
	}
	if _, seen := path[v]; seen {
		return v, false
	}
	path[v] = struct{}{}
	return v, true
}

// Contains reports whether the string form of haystack contains the string
// form of needle. nil values are treated as empty strings.
func Contains(haystack, needle any) bool {
	return strings.Contains(Stringify(haystack), Stringify(needle))
}

// Stringify renders a value the way a script author would expect to see it:
// strings verbatim, nil as empty, whole floats without exponent, structured
// values as JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%v", val)
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}

	// json.Marshal rejects cyclic values; %v would recurse forever on them.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return "[object Object]"
	case reflect.Slice, reflect.Array:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return "[object Array]"
	}
	return fmt.Sprintf("%v", v)
}

// TypeOf returns the JSON type name of a decoded value.
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := toFloat64(v); ok {
		return "number"
	}
	return reflect.TypeOf(v).String()
}

// IsNumber reports whether v holds a Go numeric value.
func IsNumber(v any) bool {
	_, ok := toFloat64(v)
	return ok
}

// ToInt converts a numeric value to int. Fractional values are rejected.
func ToInt(v any) (int, bool) {
	f, ok := toFloat64(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
