package core

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"examist/pkg/domain"
)

// Entity aliases domain.Entity for core consumers.
type Entity = domain.Entity

// Collection is the ordered, key-unique set of entities held by a Resource.
// Handlers always return a fresh slice, so Same is a valid change check.
type Collection []Entity

// Same reports whether c and other are the same collection value.
func (c Collection) Same(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	if len(c) == 0 {
		return (c == nil) == (other == nil)
	}
	return &c[0] == &other[0]
}

// Find returns the first entity matching pred, or nil.
func (c Collection) Find(pred func(Entity) bool) Entity {
	for _, e := range c {
		if pred(e) {
			return e
		}
	}
	return nil
}

// Filter returns the entities matching pred in collection order.
func (c Collection) Filter(pred func(Entity) bool) Collection {
	out := Collection{}
	for _, e := range c {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Key resolves the identity of an entity. Build one with KeyField or KeyFunc.
type Key struct {
	field  string
	derive func(Entity) any
}

// KeyField keys entities by the value of field.
func KeyField(field string) Key { return Key{field: field} }

// KeyFunc keys entities by the value fn derives from them.
func KeyFunc(fn func(Entity) any) Key { return Key{derive: fn} }

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool { return k.field == "" && k.derive == nil }

func (k Key) resolve(e Entity) any {
	if k.derive != nil {
		return k.derive(e)
	}
	return e[k.field]
}

// ParseKey resolves a dynamically typed key definition: a field name string
// or a func(Entity) any.
func ParseKey(v any) (Key, error) {
	switch t := v.(type) {
	case nil:
		return Key{}, &ConfigError{Field: "key", Reason: "key (field name or function) is required"}
	case Key:
		return t, nil
	case string:
		return KeyField(t), nil
	case func(Entity) any:
		return KeyFunc(t), nil
	case func(map[string]any) any:
		return KeyFunc(func(e Entity) any { return t(e) }), nil
	default:
		return Key{}, &ConfigError{Field: "key", Reason: fmt.Sprintf("must be a field name or a function returning the key, got %T", v)}
	}
}

// Cleaner transforms every incoming entity before it is stored.
type Cleaner struct {
	pick []string
	omit []string
	fn   func(Entity) Entity
}

// Pick projects entities onto the listed fields.
func Pick(fields ...string) Cleaner { return Cleaner{pick: fields} }

// Omit strips the listed fields from entities.
func Omit(fields ...string) Cleaner { return Cleaner{omit: fields} }

// CleanFunc cleans entities with fn. Returning nil aborts the merge.
func CleanFunc(fn func(Entity) Entity) Cleaner { return Cleaner{fn: fn} }

// IsZero reports whether the cleaner is unset.
func (c Cleaner) IsZero() bool { return c.pick == nil && c.omit == nil && c.fn == nil }

// Apply runs the cleaner; a zero cleaner is the identity.
func (c Cleaner) Apply(e Entity) Entity {
	switch {
	case e == nil:
		return nil
	case c.fn != nil:
		return c.fn(e)
	case c.pick != nil:
		return e.Pick(c.pick...)
	case c.omit != nil:
		return e.Omit(c.omit...)
	default:
		return e
	}
}

func (c Cleaner) validate() error {
	fields := c.pick
	if fields == nil {
		fields = c.omit
	}
	if c.fn == nil && fields != nil && len(fields) == 0 {
		return fmt.Errorf("field list is empty")
	}
	for _, f := range fields {
		if f == "" {
			return fmt.Errorf("field names must be non-empty")
		}
	}
	return nil
}

// ParseCleaner resolves a dynamically typed cleaner definition: a field name,
// a list of field names, or a func(Entity) Entity.
func ParseCleaner(v any) (Cleaner, error) {
	switch t := v.(type) {
	case nil:
		return Cleaner{}, nil
	case Cleaner:
		return t, nil
	case string:
		return Pick(t), nil
	case []string:
		return Pick(t...), nil
	case []any:
		fields := make([]string, 0, len(t))
		for _, f := range t {
			s, ok := f.(string)
			if !ok {
				return Cleaner{}, &ConfigError{Field: "cleaner", Reason: fmt.Sprintf("field list holds %T", f)}
			}
			fields = append(fields, s)
		}
		return Pick(fields...), nil
	case func(Entity) Entity:
		return CleanFunc(t), nil
	default:
		return Cleaner{}, &ConfigError{Field: "cleaner", Reason: fmt.Sprintf("must be a field name, a list of field names or a function, got %T", v)}
	}
}

// MergeFunc is a collection handler registered with Resource.HandleAction.
type MergeFunc = Handler[Collection]

// Resource is a named, keyed collection of entities in the global state tree.
type Resource struct {
	registry *Registry[Collection]
	name     string
	typ      string
	key      Key
	cleaner  Cleaner
	logger   Logger
}

var _ Slice = (*Resource)(nil)

// ResourceOption configures a Resource.
type ResourceOption func(*Resource)

// WithCleaner installs the cleaner applied to every incoming entity.
func WithCleaner(c Cleaner) ResourceOption {
	return func(r *Resource) { r.cleaner = c }
}

// WithResourceLogger logs merges at debug level.
func WithResourceLogger(l Logger) ResourceOption {
	return func(r *Resource) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResource defines a resource. The slice is named after the lower-cased
// name and the default load action type is the upper-cased name.
func NewResource(name string, key Key, opts ...ResourceOption) (*Resource, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ConfigError{Field: "name", Reason: "resource name is required"}
	}
	if key.IsZero() {
		return nil, &ConfigError{Resource: name, Field: "key", Reason: "key (field name or function) is required"}
	}
	r := &Resource{
		name:   strings.ToLower(name),
		typ:    strings.ToUpper(name),
		key:    key,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.cleaner.validate(); err != nil {
		return nil, &ConfigError{Resource: name, Field: "cleaner", Reason: err.Error()}
	}
	r.registry = NewRegistry[Collection](r.name, Collection{})
	r.AddProducer(r.typ, nil)
	return r, nil
}

// MustResource is NewResource that panics on configuration errors.
func MustResource(name string, key Key, opts ...ResourceOption) *Resource {
	r, err := NewResource(name, key, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the state slice name.
func (r *Resource) Name() string { return r.name }

// Type returns the default load action type.
func (r *Resource) Type() string { return r.typ }

// Initial returns the empty collection.
func (r *Resource) Initial() any { return r.registry.Initial() }

// Reduce implements Slice. Merge errors name the action being handled.
func (r *Resource) Reduce(state any, action Action) (any, error) {
	next, err := r.registry.Reduce(state, action)
	if me, ok := err.(*MergeError); ok && me.ActionType == "" {
		me.ActionType = action.Type
	}
	return next, err
}

// Key returns the key of entity.
func (r *Resource) Key(entity Entity) (any, error) {
	if entity == nil {
		return nil, &MergeError{Resource: r.name, Reason: "entity is nil"}
	}
	k := r.key.resolve(entity)
	if k == nil {
		return nil, &MergeError{Resource: r.name, Reason: "key could not be resolved"}
	}
	if !reflect.TypeOf(k).Comparable() {
		return nil, &MergeError{Resource: r.name, Reason: fmt.Sprintf("key of type %T is not comparable", k)}
	}
	return k, nil
}

// Clean applies the configured cleaner.
func (r *Resource) Clean(entity Entity) Entity { return r.cleaner.Apply(entity) }

// OnLoad merges incoming entities into existing by key. Each incoming entity
// is cleaned once. An incoming entity replaces the stored entity with the same
// key in place; new keys are appended in arrival order. existing is never
// modified.
func (r *Resource) OnLoad(existing Collection, incoming []Entity) (Collection, error) {
	cleaned := make([]Entity, len(incoming))
	keys := make([]any, len(incoming))
	for i, e := range incoming {
		if e == nil {
			return existing, &MergeError{Resource: r.name, Index: i, Reason: "unable to handle nil entity"}
		}
		c := r.Clean(e)
		if c == nil {
			return existing, &MergeError{Resource: r.name, Index: i, Reason: "cleaner returned nil"}
		}
		k, err := r.Key(c)
		if err != nil {
			me := err.(*MergeError)
			me.Index = i
			return existing, me
		}
		cleaned[i], keys[i] = c, k
	}

	out := make(Collection, len(existing), len(existing)+len(cleaned))
	copy(out, existing)
	slots := make(map[any]int, len(out)+len(cleaned))
	for i, e := range out {
		k, err := r.Key(e)
		if err != nil {
			me := err.(*MergeError)
			me.Index = i
			me.Reason = "stored " + me.Reason
			return existing, me
		}
		slots[k] = i
	}
	for i, e := range cleaned {
		if slot, ok := slots[keys[i]]; ok {
			out[slot] = e
			continue
		}
		slots[keys[i]] = len(out)
		out = append(out, e)
	}
	r.logger.Debug("resource merged", "resource", r.name, "incoming", len(incoming), "size", len(out))
	return out, nil
}

// AddProducer merges the entities extract finds in the payload of
// actionType. A nil extractor uses the payload itself. Producer cleaners run
// before the resource cleaner.
func (r *Resource) AddProducer(actionType string, extract Extractor, cleaners ...Cleaner) {
	for _, c := range cleaners {
		if err := c.validate(); err != nil {
			panic(&ConfigError{Resource: r.name, Field: "producer cleaner", Reason: err.Error()})
		}
	}
	r.registry.HandleAction(actionType, func(existing Collection, payload any) (Collection, error) {
		v := payload
		if extract != nil {
			var err error
			if v, err = extract(payload); err != nil {
				return existing, &MergeError{Resource: r.name, Reason: "extract payload", Err: err}
			}
		}
		entities, err := toEntities(v)
		if err != nil {
			return existing, &MergeError{Resource: r.name, Reason: err.Error()}
		}
		for i, e := range entities {
			if e == nil {
				continue
			}
			for _, c := range cleaners {
				if e = c.Apply(e); e == nil {
					return existing, &MergeError{Resource: r.name, Index: i, Reason: "producer cleaner returned nil"}
				}
			}
			entities[i] = e
		}
		return r.OnLoad(existing, entities)
	})
}

// HandleAction registers a custom merge for actionType, bypassing the
// union-by-key merge. The collection merge returns must still hold keyable,
// key-unique entities; otherwise the merge fails and state is kept.
func (r *Resource) HandleAction(actionType string, merge MergeFunc) {
	r.registry.HandleAction(actionType, func(existing Collection, payload any) (Collection, error) {
		out, err := merge(existing, payload)
		if err != nil {
			return existing, err
		}
		if err := r.verify(out); err != nil {
			return existing, err
		}
		return out, nil
	})
}

// verify reports the first entity of c that is nil, unkeyable or repeats an
// earlier key.
func (r *Resource) verify(c Collection) error {
	seen := make(map[any]int, len(c))
	for i, e := range c {
		k, err := r.Key(e)
		if err != nil {
			me := err.(*MergeError)
			me.Index = i
			return me
		}
		if j, dup := seen[k]; dup {
			return &MergeError{Resource: r.name, Index: i, Reason: fmt.Sprintf("key %v repeats entity %d", k, j)}
		}
		seen[k] = i
	}
	return nil
}

// All returns this resource's collection in state.
func (r *Resource) All(state State) Collection { return r.registry.Select(state) }

// SelectAll returns a selector for the whole collection.
func (r *Resource) SelectAll() Selector[Collection] { return r.All }

// SelectByKey selects the entity whose key equals key.
func (r *Resource) SelectByKey(key any) Selector[Entity] {
	return Select(r, func(c Collection) Entity {
		return c.Find(func(e Entity) bool {
			k, err := r.Key(e)
			return err == nil && equal(k, key)
		})
	})
}

// SelectByProp returns a selector creator matching the first entity whose
// prop equals the given value.
func (r *Resource) SelectByProp(prop string) func(value any) Selector[Entity] {
	return func(value any) Selector[Entity] {
		return Select(r, func(c Collection) Entity {
			return c.Find(func(e Entity) bool { return equal(e[prop], value) })
		})
	}
}

// SelectAllByProp is SelectByProp returning every match in collection order.
func (r *Resource) SelectAllByProp(prop string) func(value any) Selector[Collection] {
	return func(value any) Selector[Collection] {
		return Select(r, func(c Collection) Collection {
			return c.Filter(func(e Entity) bool { return equal(e[prop], value) })
		})
	}
}

// equal is == that reports false instead of panicking when both values hold
// the same uncomparable type, such as a question path slice.
func equal(a, b any) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return false
	}
	return a == b
}

// Load returns a plain action merged by the default producer.
func (r *Resource) Load(entities ...Entity) Action {
	return Action{Type: r.typ, Payload: entities}
}

// Select returns a selector applying fn to r's collection.
func Select[T any](r *Resource, fn func(Collection) T) Selector[T] {
	return func(state State) T { return fn(r.All(state)) }
}

// CreateResourceAction is CreateAction bound to r's load type.
func CreateResourceAction[A any](r *Resource, transform func(A) any, meta func(A) any) Creator[A] {
	return CreateAction(r.typ, transform, meta)
}

// CreateAsyncResourceAction is CreateAsyncAction bound to r's load type.
func CreateAsyncResourceAction[A any](r *Resource, transform func(context.Context, A) (any, error), meta func(A) any) TaskCreator[A] {
	return CreateAsyncAction(r.typ, transform, meta)
}

// CreateStatefulResourceAction is CreateStatefulAction bound to r's load type.
func CreateStatefulResourceAction[C, A any](r *Resource, selectContext Selector[C], transform func(context.Context, C, A) (any, error), meta func(A) any) TaskCreator[A] {
	return CreateStatefulAction(r.typ, selectContext, transform, meta)
}
