package core

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Selector reads a derived value from a state snapshot.
type Selector[T any] func(State) T

// Value lifts a plain value into a selector.
func Value[T any](v T) Selector[T] {
	return func(State) T { return v }
}

// Compose chains a selector creator with a transformer that returns another
// selector, which is evaluated against the same snapshot. This performs a
// dependent lookup, e.g. a course joined with the papers that reference it.
func Compose[A, B, C any](creator func(A) Selector[B], transformer func(B) Selector[C]) func(A) Selector[C] {
	return func(arg A) Selector[C] {
		base := creator(arg)
		return func(state State) C {
			return transformer(base(state))(state)
		}
	}
}

// Map chains a selector creator with a plain transformation of its result.
func Map[A, B, C any](creator func(A) Selector[B], fn func(B) C) func(A) Selector[C] {
	return Compose(creator, func(b B) Selector[C] { return Value(fn(b)) })
}

// JoinMany extends the entity selected by left with the entities of right
// whose rightProp equals the left entity's leftField, stored under as. The
// joined entity is a fresh value; nothing is written back to either
// collection. A missing left entity yields nil.
func JoinMany[A any](left func(A) Selector[Entity], right *Resource, leftField, rightProp, as string) func(A) Selector[Entity] {
	byProp := right.SelectAllByProp(rightProp)
	return Compose(left, func(e Entity) Selector[Entity] {
		if e == nil {
			return Value[Entity](nil)
		}
		return func(state State) Entity {
			return e.With(as, byProp(e[leftField])(state))
		}
	})
}

// UpdateWhere returns a merge handler that maps every entity matching
// predicate through transformer. Unmatched entities keep their identity and
// order; when nothing matches the original collection is returned.
func UpdateWhere(predicate func(Entity, any) bool, transformer func(Entity, any) Entity) MergeFunc {
	return func(c Collection, payload any) (Collection, error) {
		var out Collection
		for i, e := range c {
			if !predicate(e, payload) {
				if out != nil {
					out[i] = e
				}
				continue
			}
			if out == nil {
				out = make(Collection, len(c))
				copy(out, c[:i])
			}
			out[i] = transformer(e, payload)
		}
		if out == nil {
			return c, nil
		}
		return out, nil
	}
}

// Memo caches fn over r's collection and recomputes only when the collection
// value changes.
func Memo[T any](r *Resource, fn func(Collection) T) Selector[T] {
	var (
		mu     sync.Mutex
		last   Collection
		result T
		primed bool
	)
	return func(state State) T {
		c := r.All(state)
		mu.Lock()
		defer mu.Unlock()
		if primed && c.Same(last) {
			return result
		}
		last, result, primed = c, fn(c), true
		return result
	}
}

// MemoCreator caches the selectors built by creator per argument so that
// memoized selectors survive repeated lookups. At most size arguments are
// retained.
func MemoCreator[A comparable, T any](size int, creator func(A) Selector[T]) (func(A) Selector[T], error) {
	cache, err := lru.New[A, Selector[T]](size)
	if err != nil {
		return nil, &ConfigError{Field: "memo size", Reason: err.Error()}
	}
	return func(arg A) Selector[T] {
		if sel, ok := cache.Get(arg); ok {
			return sel
		}
		sel := creator(arg)
		cache.Add(arg, sel)
		return sel
	}, nil
}
