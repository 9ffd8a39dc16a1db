package executor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// jsonPathGet evaluates a dot-notation JSONPath ($.field, $.a.b, $.items[0].id)
// against a decoded JSON document. found is false when the path does not resolve.
func jsonPathGet(doc any, path string) (value any, found bool, err error) {
	if !strings.HasPrefix(path, "$") {
		return nil, false, fmt.Errorf("JSONPath must start with $: %q", path)
	}
	rest := strings.TrimPrefix(path[1:], ".")
	current := doc
	if rest == "" {
		return current, true, nil
	}

	for _, seg := range strings.Split(rest, ".") {
		if seg == "" {
			return nil, false, fmt.Errorf("empty segment in JSONPath %q", path)
		}

		field := seg
		var indexes []int
		if idx := strings.Index(seg, "["); idx >= 0 {
			field = seg[:idx]
			for _, raw := range strings.Split(seg[idx:], "[")[1:] {
				n, err := strconv.Atoi(strings.TrimSuffix(raw, "]"))
				if err != nil || !strings.HasSuffix(raw, "]") {
					return nil, false, fmt.Errorf("invalid array index in %q", seg)
				}
				indexes = append(indexes, n)
			}
		}

		if field != "" {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			if current, ok = obj[field]; !ok {
				return nil, false, nil
			}
		}
		for _, i := range indexes {
			arr, ok := current.([]any)
			if !ok || i < 0 || i >= len(arr) {
				return nil, false, nil
			}
			current = arr[i]
		}
	}
	return current, true, nil
}

// valuesEqual compares a decoded JSON value with an expected value, treating
// all numeric types as float64.
func valuesEqual(actual, expected any) bool {
	if af, ok := toFloat64(actual); ok {
		if ef, ok := toFloat64(expected); ok {
			return af == ef
		}
		return false
	}
	switch a := actual.(type) {
	case string, bool, nil:
		return a == expected
	default:
		ab, err1 := json.Marshal(actual)
		eb, err2 := json.Marshal(expected)
		return err1 == nil && err2 == nil && string(ab) == string(eb)
	}
}

func toFloat64(v any) (float64, bool) {
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
