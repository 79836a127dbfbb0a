// Package serialize turns typed resource properties into the JSON data model
// written to the template.
package serialize

import (
	"encoding/json"
	"fmt"
)

// Normalize converts v to its JSON data model: maps become map[string]any,
// slices become []any and numbers become float64. Templates built in memory
// and templates read back from disk compare equal after normalization.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Properties serializes a resource's property struct through its json tags
// and prunes unset values: nulls, empty strings, and maps or lists left
// empty after pruning. A resource with no properties returns nil.
func Properties(v any) (map[string]any, error) {
	normalized, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	if normalized == nil {
		return nil, nil
	}
	props, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("properties must serialize to an object, got %T", normalized)
	}
	pruneMap(props)
	if len(props) == 0 {
		return nil, nil
	}
	return props, nil
}

func pruneMap(m map[string]any) {
	for k, v := range m {
		if prune(v) {
			delete(m, k)
		}
	}
}

// prune reports whether v is unset, pruning nested maps in place first.
// List elements are kept so positions in intrinsic arguments survive.
func prune(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		pruneMap(val)
		return len(val) == 0
	case []any:
		for _, elem := range val {
			if m, ok := elem.(map[string]any); ok {
				pruneMap(m)
			}
		}
		return len(val) == 0
	default:
		return false
	}
}
