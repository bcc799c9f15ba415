package core

// ActionClearError clears State.LastError when dispatched.
const ActionClearError = "@@examist/CLEAR_ERROR"

// State is an immutable snapshot of the global state tree together with the
// pending and error bookkeeping derived from the stream of dispatched actions.
// Every dispatch produces a new State; snapshots are safe to share.
type State struct {
	slices  map[string]any
	pending map[string]int
	errs    map[string]error
	lastErr error
	version uint64
}

// Slice returns the state of the named slice.
func (s State) Slice(name string) (any, bool) {
	v, ok := s.slices[name]
	return v, ok
}

// Pending reports whether an invocation of actionType is in flight.
func (s State) Pending(actionType string) bool {
	return s.pending[actionType] > 0
}

// Err returns the error of the latest settled invocation of actionType. A
// fulfilled invocation clears it.
func (s State) Err(actionType string) error {
	return s.errs[actionType]
}

// LastError returns the most recent error of any action type.
func (s State) LastError() error { return s.lastErr }

// Version counts the dispatches applied to produce this snapshot.
func (s State) Version() uint64 { return s.version }

// next derives the successor snapshot for action. Slices are replaced by the
// caller; bookkeeping maps are copied only when they change.
func (s State) next(action Action, slices map[string]any) State {
	n := State{
		slices:  slices,
		pending: s.pending,
		errs:    s.errs,
		lastErr: s.lastErr,
		version: s.version + 1,
	}
	switch {
	case action.Type == ActionClearError:
		n.lastErr = nil
	case action.Pending:
		n.pending = copyCounts(s.pending)
		n.pending[action.Type]++
	case action.ID != "":
		n.pending = copyCounts(s.pending)
		if n.pending[action.Type] > 1 {
			n.pending[action.Type]--
		} else {
			delete(n.pending, action.Type)
		}
		n.errs = recordErr(s.errs, action)
		if action.Error {
			n.lastErr = action.Err()
		}
	case action.Error:
		n.errs = recordErr(s.errs, action)
		n.lastErr = action.Err()
	}
	return n
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func recordErr(in map[string]error, action Action) map[string]error {
	if !action.Error {
		if _, ok := in[action.Type]; !ok {
			return in
		}
	}
	out := make(map[string]error, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if action.Error {
		out[action.Type] = action.Err()
	} else {
		delete(out, action.Type)
	}
	return out
}
