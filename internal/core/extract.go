package core

import (
	"fmt"
)

// Extractor pulls the entity or entities a producer merges out of an
// arbitrary action payload.
type Extractor func(payload any) (any, error)

// Field extracts the named field of an entity payload.
func Field(name string) Extractor {
	return Path(name)
}

// Path extracts a nested field, e.g. Path("course", "papers").
func Path(names ...string) Extractor {
	return func(payload any) (any, error) {
		v := payload
		for i, name := range names {
			m, ok := asMap(v)
			if !ok {
				return nil, fmt.Errorf("path %v: element %d is %T, not a record", names, i, v)
			}
			v = m[name]
		}
		return v, nil
	}
}

// Extract adapts a typed extraction function. A payload of another type is
// reported as an error.
func Extract[P any](fn func(P) any) Extractor {
	return func(payload any) (any, error) {
		p, ok := payload.(P)
		if !ok {
			var zero P
			return nil, fmt.Errorf("payload is %T, want %T", payload, zero)
		}
		return fn(p), nil
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Entity:
		return t, t != nil
	case map[string]any:
		return t, t != nil
	default:
		return nil, false
	}
}

// toEntities normalizes an extracted value to a list of entities. nil values
// are kept so OnLoad can reject them.
func toEntities(v any) ([]Entity, error) {
	switch t := v.(type) {
	case nil:
		return []Entity{nil}, nil
	case Entity:
		return []Entity{t}, nil
	case map[string]any:
		return []Entity{t}, nil
	case []Entity:
		out := make([]Entity, len(t))
		copy(out, t)
		return out, nil
	case Collection:
		out := make([]Entity, len(t))
		copy(out, t)
		return out, nil
	case []map[string]any:
		out := make([]Entity, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case []any:
		out := make([]Entity, len(t))
		for i, item := range t {
			if item == nil {
				continue
			}
			m, ok := asMap(item)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a record", i, item)
			}
			out[i] = m
		}
		return out, nil
	default:
		return nil, fmt.Errorf("payload of type %T holds no records", v)
	}
}
