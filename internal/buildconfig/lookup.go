package buildconfig

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Lookup walks a dotted path such as "output.path" through nested mappings.
func Lookup(cfg Configuration, path string) (any, bool) {
	var cur any = cfg
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Require is Lookup for keys that must be present.
func Require(cfg Configuration, path string) (any, error) {
	v, ok := Lookup(cfg, path)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingValue, path)
	}
	return v, nil
}

// String returns the string at path, or def when the key is absent.
func String(cfg Configuration, path, def string) (string, error) {
	v, ok := Lookup(cfg, path)
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(path, "string", v)
	}
	return s, nil
}

// Bool returns the bool at path, or def when the key is absent.
func Bool(cfg Configuration, path string, def bool) (bool, error) {
	v, ok := Lookup(cfg, path)
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalid(path, "bool", v)
	}
	return b, nil
}

// Int returns the integer at path, or def when the key is absent. Whole
// floats are accepted since decoded YAML and JSON documents produce them.
func Int(cfg Configuration, path string, def int) (int, error) {
	v, ok := Lookup(cfg, path)
	if !ok || v == nil {
		return def, nil
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint16:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid(path, "integer", v)
		}
		return int(n), nil
	default:
		return 0, invalid(path, "integer", v)
	}
}

// Strings returns the string list at path; an absent key yields nil.
func Strings(cfg Configuration, path string) ([]string, error) {
	items, err := Slice(cfg, path)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, invalid(fmt.Sprintf("%s[%d]", path, i), "string", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Slice returns the elements of the sequence at path; an absent key yields nil.
func Slice(cfg Configuration, path string) ([]any, error) {
	v, ok := Lookup(cfg, path)
	if !ok || v == nil {
		return nil, nil
	}
	if items, ok := v.([]any); ok {
		return items, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, invalid(path, "list", v)
	}
	out := make([]any, rv.Len())
	for i := range rv.Len() {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// Map returns the mapping at path; an absent key yields nil.
func Map(cfg Configuration, path string) (Configuration, error) {
	v, ok := Lookup(cfg, path)
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil, invalid(path, "mapping", v)
	}
	return Configuration(m), nil
}

func invalid(path, want string, got any) error {
	return fmt.Errorf("%w: %s must be a %s, got %T", ErrInvalidValue, path, want, got)
}
