package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"realestate/internal/apperr"
)

// Args is a flat parameter object as decoded from JSON. Numbers may arrive
// as float64, json.Number, Go integers or numeric strings.
type Args map[string]any

// check rejects parameter names the tool does not declare.
func (a Args) check(allowed map[string]bool) error {
	for name := range a {
		if !allowed[name] {
			return apperr.Validation(name, "unknown parameter %q", name)
		}
	}
	return nil
}

func (a Args) has(name string) bool {
	value, ok := a[name]
	return ok && value != nil
}

func (a Args) String(name string) (string, error) {
	value, ok := a[name]
	if !ok || value == nil {
		return "", nil
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int, int64, int32:
		return fmt.Sprint(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", apperr.Validation(name, "%s must be a string", name)
	}
}

func (a Args) Int(name string) (int, error) {
	v, err := a.Int64(name)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, apperr.Validation(name, "%s is out of range", name)
	}
	return int(v), nil
}

func (a Args) Int64(name string) (int64, error) {
	value, ok := a[name]
	if !ok || value == nil {
		return 0, nil
	}
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, apperr.Validation(name, "%s must be a whole number", name)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, apperr.Validation(name, "%s must be a whole number", name)
		}
		return n, nil
	case string:
		text := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if text == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, apperr.Validation(name, "%s must be a whole number", name)
		}
		return n, nil
	default:
		return 0, apperr.Validation(name, "%s must be a number", name)
	}
}

func (a Args) Float(name string) (float64, error) {
	value, ok := a[name]
	if !ok || value == nil {
		return 0, nil
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, apperr.Validation(name, "%s must be a number", name)
		}
		return f, nil
	case string:
		text := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if text == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, apperr.Validation(name, "%s must be a number", name)
		}
		return f, nil
	default:
		return 0, apperr.Validation(name, "%s must be a number", name)
	}
}
