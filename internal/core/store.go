// Package core implements the normalized resource store: action registries,
// keyed resources, selector combinators and the Store that serializes
// dispatch and tracks the lifecycle of asynchronous actions.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrReservedField rejects plain dispatches that set lifecycle fields owned by Store.Run.
var ErrReservedField = errors.New("core: pending and id are set by Store.Run")

// Store holds the global state tree. Dispatch is serialized; readers receive
// immutable State snapshots.
type Store struct {
	mu     sync.Mutex
	state  atomic.Pointer[State]
	slices []Slice

	subsMu  sync.RWMutex
	subs    []subscriber
	nextSub uint64

	inflight sync.WaitGroup

	logger  Logger
	clock   Clock
	metrics MetricsRecorder
	tracer  trace.Tracer
	newID   func() string
}

type subscriber struct {
	id uint64
	fn func(Action, State)
}

// NewStore assembles a store from an explicit list of slices. Slice names
// must be unique.
func NewStore(slices []Slice, opts ...Option) (*Store, error) {
	s := &Store{
		slices:  make([]Slice, 0, len(slices)),
		logger:  noopLogger{},
		clock:   systemClock{},
		metrics: noopMetrics{},
		tracer:  defaultTracer(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	initial := make(map[string]any, len(slices))
	for _, sl := range slices {
		if sl == nil {
			return nil, &ConfigError{Field: "slices", Reason: "nil slice"}
		}
		name := sl.Name()
		if name == "" {
			return nil, &ConfigError{Field: "slices", Reason: "slice name is required"}
		}
		if _, dup := initial[name]; dup {
			return nil, &ConfigError{Resource: name, Field: "name", Reason: "duplicate slice"}
		}
		initial[name] = sl.Initial()
		s.slices = append(s.slices, sl)
	}
	s.state.Store(&State{slices: initial})
	return s, nil
}

// State returns the current snapshot.
func (s *Store) State() State { return *s.state.Load() }

// Subscribe registers fn to observe every dispatched action and the state it
// produced, in dispatch order. Subscribers run in registration order. fn runs
// while dispatch is serialized and must not dispatch or subscribe itself.
func (s *Store) Subscribe(fn func(Action, State)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			kept := make([]subscriber, 0, len(s.subs))
			for _, sub := range s.subs {
				if sub.id != id {
					kept = append(kept, sub)
				}
			}
			s.subs = kept
			s.subsMu.Unlock()
		})
	}
}

// Dispatch applies a plain action to every slice. When any slice fails the
// state is left unchanged and the error is returned.
func (s *Store) Dispatch(action Action) error {
	if action.Type == "" {
		return &ConfigError{Field: "action", Reason: "type is required"}
	}
	if action.Pending || action.ID != "" {
		return fmt.Errorf("dispatch %s: %w", action.Type, ErrReservedField)
	}
	return s.dispatch(action)
}

func (s *Store) dispatch(action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Load()
	slices := make(map[string]any, len(prev.slices))
	for _, sl := range s.slices {
		name := sl.Name()
		next, err := sl.Reduce(prev.slices[name], action)
		if err != nil {
			s.metrics.ObserveDispatch(action.Type, OutcomeFailed)
			s.logger.Error("dispatch failed", "type", action.Type, "slice", name, "error", err)
			return err
		}
		slices[name] = next
	}
	next := prev.next(action, slices)
	s.state.Store(&next)

	s.metrics.ObserveDispatch(action.Type, outcomeOf(action))
	if action.ID != "" {
		s.metrics.SetPending(action.Type, next.pending[action.Type])
	}
	s.logger.Debug("dispatched", "type", action.Type, "outcome", outcomeOf(action), "id", action.ID, "version", next.version)

	s.subsMu.RLock()
	subs := s.subs
	s.subsMu.RUnlock()
	for _, sub := range subs {
		sub.fn(action, next)
	}
	return nil
}

func outcomeOf(a Action) string {
	switch {
	case a.Pending:
		return OutcomePending
	case a.Error:
		return OutcomeRejected
	case a.ID != "":
		return OutcomeFulfilled
	default:
		return OutcomePlain
	}
}

// Run starts an asynchronous action. The pending marker is dispatched before
// Run returns; the task then runs on its own goroutine and exactly one
// fulfilled or rejected action is dispatched when it settles. A fulfilled
// payload that fails to merge is turned into a rejection carrying the merge
// error so the pending flag always clears.
func (s *Store) Run(ctx context.Context, task Task) *Invocation {
	inv := &Invocation{id: s.newID(), typ: task.Type, done: make(chan struct{})}
	if err := s.dispatch(Action{Type: task.Type, Meta: task.Meta, Pending: true, ID: inv.id}); err != nil {
		s.logger.Error("pending marker rejected", "type", task.Type, "id", inv.id, "error", err)
	}
	snapshot := s.State()
	s.inflight.Add(1)
	go s.settle(ctx, inv, task, snapshot)
	return inv
}

func (s *Store) settle(ctx context.Context, inv *Invocation, task Task, snapshot State) {
	defer s.inflight.Done()
	ctx, span := s.tracer.Start(ctx, task.Type, trace.WithAttributes(
		attribute.String("examist.action.type", task.Type),
		attribute.String("examist.action.id", inv.id),
	))
	defer span.End()

	started := s.clock.Now()
	var (
		payload any
		err     error
	)
	if task.Run == nil {
		err = &ConfigError{Field: "task", Reason: task.Type + " has no run function"}
	} else {
		payload, err = task.Run(ctx, snapshot)
	}
	s.metrics.ObserveTask(task.Type, err == nil, s.clock.Now().Sub(started))

	terminal := Action{Type: task.Type, Meta: task.Meta, ID: inv.id, Payload: payload}
	if err != nil {
		terminal.Payload, terminal.Error = err, true
	}
	if derr := s.dispatch(terminal); derr != nil {
		err = derr
		terminal = Action{Type: task.Type, Meta: task.Meta, ID: inv.id, Payload: derr, Error: true}
		if rerr := s.dispatch(terminal); rerr != nil {
			s.logger.Error("rejection not applied", "type", task.Type, "id", inv.id, "error", rerr)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("action rejected", "type", task.Type, "id", inv.id, "error", err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	inv.finish(terminal, err)
}

// Wait blocks until every invocation started by Run has settled.
func (s *Store) Wait() { s.inflight.Wait() }

// Invocation tracks one asynchronous action from pending to settled.
type Invocation struct {
	id     string
	typ    string
	done   chan struct{}
	result Action
	err    error
}

// ID returns the invocation id carried by its pending and terminal actions.
func (i *Invocation) ID() string { return i.id }

// Type returns the action type.
func (i *Invocation) Type() string { return i.typ }

// Done is closed once the terminal action has been dispatched.
func (i *Invocation) Done() <-chan struct{} { return i.done }

// Wait returns the terminal action and its error once settled. It returns
// early with ctx.Err() if ctx ends first; the invocation keeps running.
func (i *Invocation) Wait(ctx context.Context) (Action, error) {
	select {
	case <-i.done:
		return i.result, i.err
	case <-ctx.Done():
		return Action{}, ctx.Err()
	}
}

func (i *Invocation) finish(result Action, err error) {
	i.result, i.err = result, err
	close(i.done)
}
