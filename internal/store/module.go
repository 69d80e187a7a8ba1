package store

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tiendc/go-deepcopy"
)

// ActionCreator builds an action from loosely-typed arguments. It is the
// name-keyed form of a module's typed action constructors.
type ActionCreator func(args ...any) (Action, error)

// RootSelector computes a value from the whole state tree.
type RootSelector func(root *RootState, args ...any) (any, error)

// SelectorFunc computes a value from one module's slice.
type SelectorFunc[S any] func(s *S, args ...any) (any, error)

// Module is one namespaced unit of state composed into a Store.
//
// Reduce returns changed=false when the action does not concern the module
// or leaves its slice as it was; the Store then keeps the previous slice
// pointer so that memoized selectors stay valid.
type Module interface {
	Namespace() string
	InitialState(args ...any) any
	Reduce(slice any, a Action) (next any, changed bool, err error)

	ActionCreators() map[string]ActionCreator
	Selectors() map[string]func(slice any, args ...any) (any, error)
	RootSelectors() map[string]RootSelector

	// CloneState and DiffState back the development-mode immutability
	// checks.
	CloneState(slice any) (any, error)
	DiffState(a, b any) string
}

// ModuleConfig describes a module whose slice has type S.
type ModuleConfig[S any] struct {
	// Namespace is the key of the module's slice in the root state.
	Namespace string

	// InitialState receives the arguments passed to New.
	InitialState func(args ...any) S

	// Reducer returns a new slice for actions the module handles, or nil
	// for actions it ignores. It must never modify s.
	Reducer func(s *S, a Action) (*S, error)

	ActionCreators map[string]ActionCreator
	Selectors      map[string]SelectorFunc[S]
	RootSelectors  map[string]RootSelector
}

type module[S any] struct {
	cfg ModuleConfig[S]
}

// NewModule turns a typed module description into a Module.
func NewModule[S any](cfg ModuleConfig[S]) Module {
	return &module[S]{cfg: cfg}
}

func (m *module[S]) Namespace() string { return m.cfg.Namespace }

func (m *module[S]) InitialState(args ...any) any {
	if m.cfg.InitialState == nil {
		return new(S)
	}
	s := m.cfg.InitialState(args...)
	return &s
}

func (m *module[S]) Reduce(slice any, a Action) (any, bool, error) {
	if m.cfg.Reducer == nil {
		return slice, false, nil
	}
	cur, ok := slice.(*S)
	if !ok {
		return nil, false, fmt.Errorf("module %q: unexpected slice type %T", m.cfg.Namespace, slice)
	}
	next, err := m.cfg.Reducer(cur, a)
	if err != nil {
		return nil, false, err
	}
	if next == nil || next == cur {
		return slice, false, nil
	}
	return next, true, nil
}

func (m *module[S]) ActionCreators() map[string]ActionCreator {
	return m.cfg.ActionCreators
}

func (m *module[S]) Selectors() map[string]func(slice any, args ...any) (any, error) {
	out := make(map[string]func(slice any, args ...any) (any, error), len(m.cfg.Selectors))
	for name, sel := range m.cfg.Selectors {
		sel := sel
		out[name] = func(slice any, args ...any) (any, error) {
			s, ok := slice.(*S)
			if !ok {
				return nil, fmt.Errorf("module %q: unexpected slice type %T", m.cfg.Namespace, slice)
			}
			return sel(s, args...)
		}
	}
	return out
}

func (m *module[S]) RootSelectors() map[string]RootSelector {
	return m.cfg.RootSelectors
}

func (m *module[S]) CloneState(slice any) (any, error) {
	src, ok := slice.(*S)
	if !ok {
		return nil, fmt.Errorf("module %q: unexpected slice type %T", m.cfg.Namespace, slice)
	}
	var dst S
	if err := deepcopy.Copy(&dst, src); err != nil {
		return nil, fmt.Errorf("clone %s state: %w", m.cfg.Namespace, err)
	}
	return &dst, nil
}

func (m *module[S]) DiffState(a, b any) string {
	return cmp.Diff(a, b, cmpopts.EquateEmpty())
}

// ---------------------------------------------------------------
// Adapters from typed functions to the name-keyed surface.
// ---------------------------------------------------------------

// ArgumentError reports a name-keyed call made with the wrong arguments.
type ArgumentError struct {
	Index int
	Want  string
	Got   any
}

func (e *ArgumentError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("argument %d: missing, want %s", e.Index, e.Want)
	}
	return fmt.Sprintf("argument %d: got %T, want %s", e.Index, e.Got, e.Want)
}

// Arg extracts args[i] as a T.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, &ArgumentError{Index: i, Want: fmt.Sprintf("%T", zero)}
	}
	if args[i] == nil {
		return zero, nil
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, &ArgumentError{Index: i, Want: fmt.Sprintf("%T", zero), Got: args[i]}
	}
	return v, nil
}

// FindArg returns the first of args with type T. Modules use it to pick
// their settings out of the arguments passed to New.
func FindArg[T any](args []any) (T, bool) {
	for _, a := range args {
		if v, ok := a.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Sel0 adapts a selector with no arguments.
func Sel0[S, R any](f func(*S) R) SelectorFunc[S] {
	return func(s *S, _ ...any) (any, error) {
		return f(s), nil
	}
}

// Sel1 adapts a selector with one argument.
func Sel1[S, A, R any](f func(*S, A) R) SelectorFunc[S] {
	return func(s *S, args ...any) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return f(s, a), nil
	}
}

// Root0 adapts a root selector with no arguments.
func Root0[R any](f func(*RootState) R) RootSelector {
	return func(root *RootState, _ ...any) (any, error) {
		return f(root), nil
	}
}

// Act0 adapts an action creator with no arguments.
func Act0[R Action](f func() R) ActionCreator {
	return func(_ ...any) (Action, error) {
		return f(), nil
	}
}

// Act1 adapts an action creator with one argument.
func Act1[A any, R Action](f func(A) R) ActionCreator {
	return func(args ...any) (Action, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return f(a), nil
	}
}

// Act2 adapts an action creator with two arguments.
func Act2[A, B any, R Action](f func(A, B) R) ActionCreator {
	return func(args ...any) (Action, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return f(a, b), nil
	}
}
