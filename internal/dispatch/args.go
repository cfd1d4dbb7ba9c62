package dispatch

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxExactInt is the largest magnitude a float64 holds without losing
// integer precision.
const maxExactInt = 1 << 53

// Args are the decoded arguments of one call.
type Args map[string]interface{}

// String returns a required, non-blank string argument.
func (a Args) String(key string) (string, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return "", invalidArg("Missing required parameter: %s", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidArg("Parameter %s must be a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", invalidArg("Missing required parameter: %s", key)
	}
	return s, nil
}

// OptString returns an optional string argument, or "" when absent or not a
// string.
func (a Args) OptString(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns an optional integer argument. Whole-valued JSON numbers and
// numeric strings are accepted.
func (a Args) Int(key string) (*int64, error) {
	f, err := a.Float(key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, invalidArg("Parameter %s must be an integer", key)
	}
	if *f < -maxExactInt || *f > maxExactInt {
		return nil, invalidArg("Parameter %s must be an integer", key)
	}
	n := int64(*f)
	return &n, nil
}

// Float returns an optional numeric argument.
func (a Args) Float(key string) (*float64, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, invalidArg("Parameter %s must be a number", key)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, invalidArg("Parameter %s must be a number", key)
		}
		f = parsed
	default:
		return nil, invalidArg("Parameter %s must be a number", key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalidArg("Parameter %s must be a number", key)
	}
	return &f, nil
}

// RequiredStrings is Strings for a list that must be present. An explicit
// empty list is accepted.
func (a Args) RequiredStrings(key string) ([]string, error) {
	if raw, ok := a[key]; !ok || raw == nil {
		return nil, invalidArg("Missing required parameter: %s", key)
	}
	l, err := a.Strings(key)
	if err == nil && l == nil {
		l = []string{}
	}
	return l, err
}

// Strings returns an optional list of strings.
func (a Args) Strings(key string) ([]string, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalidArg("Parameter %s must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, invalidArg("Parameter %s must be a list of strings", key)
}
