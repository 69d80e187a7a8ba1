package store

import (
	"errors"
	"fmt"
)

// Kinds of names a module registers with the store.
const (
	KindNamespace = "namespace"
	KindAction    = "action creator"
	KindSelector  = "selector"
)

var (
	// ErrStateMutated is returned in development mode when the state tree
	// was modified in place instead of through a reducer.
	ErrStateMutated = errors.New("state mutated outside of a reducer")

	// ErrUnknownName is returned by Select and Invoke for names no module
	// registered.
	ErrUnknownName = errors.New("no such name")
)

// DuplicateNameError reports two modules registering the same name. It is
// a configuration error raised while composing the store.
type DuplicateNameError struct {
	Kind     string
	Name     string
	Module   string
	Previous string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("cannot add duplicate %s %q from module %q (already registered by %q)",
		e.Kind, e.Name, e.Module, e.Previous)
}
