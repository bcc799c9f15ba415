package domain

import (
	"errors"
	"fmt"
)

// Action describes a state-affecting event or one stage of an asynchronous
// action's lifecycle.
//
// A plain action carries domain data in Payload. An asynchronous invocation
// produces two actions sharing one ID: a Pending marker followed by exactly one
// terminal action, either fulfilled (Payload is the result) or rejected (Error
// is true and Payload is the error value).
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   bool   `json:"error,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Pending bool   `json:"pending,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Fulfilled reports whether the action carries domain data.
func (a Action) Fulfilled() bool { return !a.Pending && !a.Error }

// Err returns the error carried by a rejected action, or nil.
func (a Action) Err() error {
	if !a.Error {
		return nil
	}
	switch v := a.Payload.(type) {
	case error:
		return v
	case nil:
		return fmt.Errorf("%s: %w", a.Type, ErrActionFailed)
	default:
		return fmt.Errorf("%s: %w: %v", a.Type, ErrActionFailed, v)
	}
}

// ErrActionFailed marks a rejected action whose payload is not an error value.
var ErrActionFailed = errors.New("action failed")
