package domain

import (
	"encoding/json"
	"strconv"
)

// Normalize converts a decoded JSON value into the shapes used by entities:
// objects become Entity, json.Number becomes int64 when integral and float64
// otherwise, and arrays are normalized element-wise. Key fields decoded from
// JSON therefore compare equal to keys produced by SQL-backed handles.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(Entity, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case Entity:
		out := make(Entity, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}

// NormalizeEntity applies Normalize to every field of e.
func NormalizeEntity(e map[string]any) Entity {
	if e == nil {
		return nil
	}
	return Normalize(map[string]any(e)).(Entity)
}
