package serializer

import (
	"fmt"
	"math"
)

func intField(m map[string]any, name string) (int, bool, error) {
	raw, ok := m[name]
	if !ok || raw == nil {
		return 0, false, nil
	}

	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case int32:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, true, InvalidFieldError{Field: name, Reason: fmt.Sprintf("%v is not an integer", v)}
		}
		return int(v), true, nil
	default:
		return 0, true, InvalidFieldError{Field: name, Reason: fmt.Sprintf("expected integer, got %T", raw)}
	}
}

func requireInt(m map[string]any, name string) (int, error) {
	v, ok, err := intField(m, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, MissingFieldError{Field: name}
	}
	return v, nil
}

func optionalInt(m map[string]any, name string, def int) (int, error) {
	v, ok, err := intField(m, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func nonNegative(name string, v int) error {
	if v < 0 {
		return InvalidFieldError{Field: name, Reason: "must not be negative"}
	}
	return nil
}

func requireString(m map[string]any, name string) (string, error) {
	raw, ok := m[name]
	if !ok || raw == nil {
		return "", MissingFieldError{Field: name}
	}
	s, ok := raw.(string)
	if !ok {
		return "", InvalidFieldError{Field: name, Reason: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

func requireBool(m map[string]any, name string) (bool, error) {
	raw, ok := m[name]
	if !ok || raw == nil {
		return false, MissingFieldError{Field: name}
	}
	b, ok := raw.(bool)
	if !ok {
		return false, InvalidFieldError{Field: name, Reason: fmt.Sprintf("expected bool, got %T", raw)}
	}
	return b, nil
}

func oneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return InvalidFieldError{Field: name, Reason: fmt.Sprintf("%q is not one of %v", v, allowed)}
}
