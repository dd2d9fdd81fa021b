package ledger

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Fields reads loosely typed ledger object content. Every accessor takes a
// list of candidate keys tried in order and reports false when none holds a
// value of the requested shape. Nothing is coerced beyond decimal strings to
// numbers and {"id": ...} wrappers to ids.
type Fields map[string]any

// Path addresses a nested value, e.g. Path{"storage", "fields", "end_epoch"}.
type Path []string

// At walks p through nested objects.
func (f Fields) At(p Path) (any, bool) {
	var cur any = map[string]any(f)
	for _, key := range p {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Sub returns the nested object stored under key.
func (f Fields) Sub(key string) (Fields, bool) {
	v, ok := f[key]
	if !ok {
		return nil, false
	}
	m, ok := asMap(v)
	return Fields(m), ok
}

// String returns the first key holding a string.
func (f Fields) String(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := f[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

// Uint returns the first key holding a non-negative integer.
func (f Fields) Uint(keys ...string) (uint64, bool) {
	for _, k := range keys {
		if n, ok := toUint(f[k]); ok {
			return n, true
		}
	}
	return 0, false
}

// UintAt returns the first path holding a non-negative integer.
func (f Fields) UintAt(paths ...Path) (uint64, bool) {
	for _, p := range paths {
		v, ok := f.At(p)
		if !ok {
			continue
		}
		if n, ok := toUint(v); ok {
			return n, true
		}
	}
	return 0, false
}

// Bool returns the first key holding a boolean.
func (f Fields) Bool(keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := f[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

// ID returns the first key holding an object id, either as a plain string
// or wrapped as {"id": "0x..."}.
func (f Fields) ID(keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := f[k].(type) {
		case string:
			if v != "" {
				return v, true
			}
		default:
			if m, ok := asMap(v); ok {
				if id, ok := m["id"].(string); ok && id != "" {
					return id, true
				}
			}
		}
	}
	return "", false
}

// Strings returns the first key holding a list made only of strings.
func (f Fields) Strings(keys ...string) ([]string, bool) {
	for _, k := range keys {
		list, ok := f[k].([]any)
		if !ok {
			if ss, ok := f[k].([]string); ok {
				return ss, true
			}
			continue
		}
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				out = nil
				break
			}
			out = append(out, s)
		}
		if out != nil {
			return out, true
		}
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Fields:
		return m, true
	}
	return nil, false
}

func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case int:
		if n >= 0 {
			return uint64(n), true
		}
	case int64:
		if n >= 0 {
			return uint64(n), true
		}
	case float64:
		if n >= 0 && n == math.Trunc(n) && n < math.MaxUint64 {
			return uint64(n), true
		}
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(n), 10, 64)
		return u, err == nil
	}
	return 0, false
}
