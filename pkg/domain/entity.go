// Package domain defines the plain records and actions shared by the examist
// resource store and the API handles that feed it.
package domain

// Entity is a structurally typed record representing one domain object such
// as a course, paper, question or comment. Entities held by a store are
// treated as immutable; use With, Pick and Omit to derive new values.
type Entity map[string]any

// Get returns the value stored under field, or nil when absent.
func (e Entity) Get(field string) any {
	if e == nil {
		return nil
	}
	return e[field]
}

// Has reports whether field is present.
func (e Entity) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// String returns the field as a string when it holds one.
func (e Entity) String(field string) string {
	s, _ := e[field].(string)
	return s
}

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// With returns a copy of the entity with field set to value.
func (e Entity) With(field string, value any) Entity {
	out := make(Entity, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	out[field] = value
	return out
}

// Pick returns a new entity holding only the listed fields that are present.
func (e Entity) Pick(fields ...string) Entity {
	out := make(Entity, len(fields))
	for _, f := range fields {
		if v, ok := e[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Omit returns a new entity without the listed fields.
func (e Entity) Omit(fields ...string) Entity {
	out := e.Clone()
	if out == nil {
		out = Entity{}
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}
