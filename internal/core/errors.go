package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a misconfigured resource, slice or store.
	ErrConfig = errors.New("core: invalid configuration")
	// ErrMerge marks an entity that could not be keyed or cleaned during a merge.
	ErrMerge = errors.New("core: merge failed")
	// ErrDependencyNotReady marks a stateful action whose context selector yielded nothing.
	ErrDependencyNotReady = errors.New("core: dependency not ready")
)

// ConfigError is raised at definition time when a resource or store is misconfigured.
type ConfigError struct {
	Resource string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %s: %s", ErrConfig, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: resource %q %s: %s", ErrConfig, e.Resource, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// MergeError aborts a merge when an incoming entity is nil, cleans to nil or
// has no resolvable key. The collection is left unchanged.
type MergeError struct {
	Resource   string
	ActionType string
	Index      int
	Reason     string
	Err        error
}

func (e *MergeError) Error() string {
	msg := fmt.Sprintf("%s: resource %q entity %d: %s", ErrMerge, e.Resource, e.Index, e.Reason)
	if e.ActionType != "" {
		msg = fmt.Sprintf("%s: resource %q handling %s entity %d: %s", ErrMerge, e.Resource, e.ActionType, e.Index, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MergeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMerge, e.Err}
	}
	return []error{ErrMerge}
}

// DependencyError rejects a stateful invocation whose context is unavailable.
type DependencyError struct {
	ActionType string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s requires context that is not present in state", ErrDependencyNotReady, e.ActionType)
}

func (e *DependencyError) Unwrap() error { return ErrDependencyNotReady }
