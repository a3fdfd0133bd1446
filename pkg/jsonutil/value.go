package jsonutil

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceString returns v when it is a string, "" otherwise.
func CoerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return ""
	}
}

// AsInt reports integral numeric values. Fractional numbers, strings and
// booleans are rejected.
func AsInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// SetPath writes value at a dot-separated path, creating intermediate
// objects. A non-object value found on the way is replaced by a fresh
// object. A nil value is ignored, so it never creates or clears a key.
func SetPath(root map[string]any, path string, value any) {
	if root == nil || value == nil {
		return
	}
	parts := strings.Split(path, ".")
	cur := root
	for _, key := range parts[:len(parts)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// GetPath reads a value by dot-separated path. Segments may carry an array
// index, e.g. "lines[1].qty".
func GetPath(root any, path string) (any, bool) {
	p := strings.TrimSpace(path)
	if p == "" {
		return root, true
	}
	cur := root
	for _, part := range strings.Split(p, ".") {
		name, idx, hasIdx := splitIndex(part)
		if name != "" {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := m[name]
			if !ok {
				return nil, false
			}
			cur = next
		}
		if !hasIdx {
			continue
		}
		switch arr := cur.(type) {
		case []any:
			if idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
		case []string:
			if idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func splitIndex(s string) (name string, idx int, hasIdx bool) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return s, 0, false
	}
	end := strings.IndexByte(s, ']')
	if end < 0 || end < open {
		return s, 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[open+1 : end]))
	if err != nil {
		return s, 0, false
	}
	return s[:open], n, true
}
