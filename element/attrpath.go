package element

import (
	"fmt"
	"strings"
)

// GetAttrPath retrieves a nested value from a map using dot-separated segments.
func GetAttrPath(obj map[string]any, path string) (any, bool) {
	segments := SplitAttrPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	current := obj
	for idx, segment := range segments {
		value, ok := current[segment]
		if !ok {
			return nil, false
		}
		if idx == len(segments)-1 {
			return value, true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

func SetAttrPath(obj map[string]any, path string, value any) {
	segments := SplitAttrPath(path)
	if len(segments) == 0 {
		return
	}
	current := obj
	for idx, segment := range segments {
		if idx == len(segments)-1 {
			current[segment] = value
			return
		}
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
}

func DeleteAttrPath(obj map[string]any, path string) {
	segments := SplitAttrPath(path)
	if len(segments) == 0 {
		return
	}
	current := obj
	for idx, segment := range segments {
		if idx == len(segments)-1 {
			delete(current, segment)
			return
		}
		next, ok := current[segment].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
}

func SplitAttrPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	var segments []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

// LookupString reads a nested value and renders it as a string. Objects,
// arrays, and references report false: only primitives name things.
func LookupString(obj map[string]any, path string) (string, bool) {
	value, ok := GetAttrPath(obj, path)
	if !ok {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case nil, map[string]any, []any, *Reference:
		return "", false
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}
