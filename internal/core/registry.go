package core

import (
	"fmt"
	"sync"

	"examist/pkg/domain"
)

// Handler reduces a slice state with the payload of a fulfilled action.
// Handlers must return a new value rather than mutating state.
type Handler[S any] func(state S, payload any) (S, error)

// Slice is one named branch of the global state tree.
type Slice interface {
	Name() string
	Initial() any
	Reduce(state any, action Action) (any, error)
}

// Registry binds action types to handlers for one named state slice.
type Registry[S any] struct {
	name     string
	initial  S
	mu       sync.RWMutex
	handlers map[string]Handler[S]
}

var _ Slice = (*Registry[int])(nil)

// NewRegistry constructs an empty registry for the slice called name.
func NewRegistry[S any](name string, initial S) *Registry[S] {
	return &Registry[S]{
		name:     name,
		initial:  initial,
		handlers: make(map[string]Handler[S]),
	}
}

// Name returns the slice name.
func (r *Registry[S]) Name() string { return r.name }

// Initial returns the slice state used when the store is built.
func (r *Registry[S]) Initial() any { return r.initial }

// HandleAction registers h for actionType, replacing any previous handler.
func (r *Registry[S]) HandleAction(actionType string, h Handler[S]) {
	if h == nil {
		panic(&ConfigError{Resource: r.name, Field: "handler", Reason: fmt.Sprintf("nil handler for %s", actionType)})
	}
	r.mu.Lock()
	r.handlers[actionType] = h
	r.mu.Unlock()
}

// Handles reports whether a handler is registered for actionType.
func (r *Registry[S]) Handles(actionType string) bool {
	r.mu.RLock()
	_, ok := r.handlers[actionType]
	r.mu.RUnlock()
	return ok
}

// Reduce applies the handler for action.Type. Pending markers, rejected
// actions and unregistered types leave state unchanged.
func (r *Registry[S]) Reduce(state any, action Action) (any, error) {
	if !action.Fulfilled() {
		return state, nil
	}
	r.mu.RLock()
	h, ok := r.handlers[action.Type]
	r.mu.RUnlock()
	if !ok {
		return state, nil
	}
	current, ok := state.(S)
	if !ok && state != nil {
		return state, fmt.Errorf("slice %s: unexpected state type %T", r.name, state)
	}
	next, err := h(current, action.Payload)
	if err != nil {
		return state, err
	}
	return next, nil
}

// Select reads this slice from a state snapshot, falling back to the initial value.
func (r *Registry[S]) Select(state State) S {
	if v, ok := state.Slice(r.name); ok {
		if s, ok := v.(S); ok {
			return s
		}
	}
	return r.initial
}

// Action aliases domain.Action for core consumers.
type Action = domain.Action
