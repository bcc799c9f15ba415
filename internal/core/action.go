package core

import (
	"context"
	"reflect"
)

// Creator builds a plain action from its argument.
type Creator[A any] func(arg A) Action

// TaskFunc computes the payload of an asynchronous action. It receives the
// state snapshot taken when the task was dispatched.
type TaskFunc func(ctx context.Context, state State) (any, error)

// Task is an asynchronous action invocation waiting to be run by Store.Run.
type Task struct {
	Type string
	Meta any
	Run  TaskFunc
}

// TaskCreator builds a Task from its argument.
type TaskCreator[A any] func(arg A) Task

// CreateAction returns a creator for plain actions of actionType. When
// transform is nil the argument becomes the payload; meta may be nil.
func CreateAction[A any](actionType string, transform func(A) any, meta func(A) any) Creator[A] {
	return func(arg A) Action {
		a := Action{Type: actionType}
		if transform != nil {
			a.Payload = transform(arg)
		} else {
			a.Payload = arg
		}
		if meta != nil {
			a.Meta = meta(arg)
		}
		return a
	}
}

// CreateAsyncAction returns a creator for asynchronous actions of actionType.
// The store emits a pending marker, runs transform and then emits exactly one
// fulfilled or rejected action.
func CreateAsyncAction[A any](actionType string, transform func(context.Context, A) (any, error), meta func(A) any) TaskCreator[A] {
	if transform == nil {
		panic(&ConfigError{Field: "transform", Reason: "async action " + actionType + " requires a transform"})
	}
	return func(arg A) Task {
		t := Task{
			Type: actionType,
			Run: func(ctx context.Context, _ State) (any, error) {
				return transform(ctx, arg)
			},
		}
		if meta != nil {
			t.Meta = meta(arg)
		}
		return t
	}
}

// CreateStatefulAction is CreateAsyncAction with a dependency resolved from
// state first. When selectContext yields nil the invocation is rejected with a
// *DependencyError and transform is not called.
func CreateStatefulAction[C, A any](actionType string, selectContext Selector[C], transform func(context.Context, C, A) (any, error), meta func(A) any) TaskCreator[A] {
	if selectContext == nil {
		panic(&ConfigError{Field: "selector", Reason: "stateful action " + actionType + " requires a context selector"})
	}
	if transform == nil {
		panic(&ConfigError{Field: "transform", Reason: "stateful action " + actionType + " requires a transform"})
	}
	return func(arg A) Task {
		t := Task{
			Type: actionType,
			Run: func(ctx context.Context, state State) (any, error) {
				dep := selectContext(state)
				if isNil(dep) {
					return nil, &DependencyError{ActionType: actionType}
				}
				return transform(ctx, dep, arg)
			},
		}
		if meta != nil {
			t.Meta = meta(arg)
		}
		return t
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
