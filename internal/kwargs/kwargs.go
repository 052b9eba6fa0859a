// Package kwargs reads loosely typed keyword arguments, such as the
// [optimizer.args] and [criterion.args] tables of a run configuration.
package kwargs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrBadArgument is returned for unknown keys and values of the wrong type.
var ErrBadArgument = errors.New("bad argument")

// Args maps argument names to values as decoded from TOML
// (int64, float64, string, bool or []any).
type Args map[string]any

// Check returns an error naming every key that is not in allowed.
func (a Args) Check(allowed ...string) error {
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}
	var unknown []string
	for k := range a {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	accepted := append([]string(nil), allowed...)
	sort.Strings(unknown)
	sort.Strings(accepted)
	return fmt.Errorf("%w: unknown %s (accepted: %s)", ErrBadArgument,
		strings.Join(unknown, ", "), strings.Join(accepted, ", "))
}

// Float returns the numeric argument key, or def when absent.
func (a Args) Float(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrBadArgument, key, v)
	}
	return f, nil
}

// Bool returns the boolean argument key, or def when absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrBadArgument, key, v)
	}
	return b, nil
}

// String returns the string argument key, or def when absent.
func (a Args) String(key, def string) (string, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrBadArgument, key, v)
	}
	return s, nil
}

// Floats returns a numeric list argument of exactly n entries, or def when absent.
func (a Args) Floats(key string, n int, def []float64) ([]float64, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []float64:
		for _, f := range list {
			items = append(items, f)
		}
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrBadArgument, key, v)
	}
	if len(items) != n {
		return nil, fmt.Errorf("%w: %s must have %d entries, got %d", ErrBadArgument, key, n, len(items))
	}
	out := make([]float64, n)
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be a number, got %T", ErrBadArgument, key, i, item)
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
