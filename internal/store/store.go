package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lalith-99/marginalia/internal/observ"
	"go.uber.org/zap"
)

// RootState is an immutable snapshot of every module's slice, keyed by
// namespace. A dispatch that changes anything produces a new RootState;
// slices that did not change keep their previous pointer.
type RootState struct {
	slices map[string]any
}

// Slice returns the slice stored under namespace, or nil.
func (r *RootState) Slice(namespace string) any {
	if r == nil {
		return nil
	}
	return r.slices[namespace]
}

// SliceOf returns the typed slice stored under namespace. It panics if the
// namespace is not registered with type S, which is a wiring bug.
func SliceOf[S any](r *RootState, namespace string) *S {
	s, ok := r.Slice(namespace).(*S)
	if !ok {
		panic(fmt.Sprintf("store: namespace %q does not hold %T", namespace, (*S)(nil)))
	}
	return s
}

// Env carries the collaborators thunks may need.
type Env struct {
	Scheduler Scheduler
	Logger    *zap.Logger

	// Production disables the immutability checks run after every
	// dispatch.
	Production bool
}

type boundSelector struct {
	module string
	fn     func(root *RootState, args ...any) (any, error)
}

// Store is a state container composed from modules.
//
// Dispatches of plain actions are serialized; thunks run on the caller's
// goroutine and dispatch through the same serialized path.
type Store struct {
	env     Env
	modules []Module

	mu    sync.Mutex
	state atomic.Pointer[RootState]
	frz   *freezer

	actions   map[string]ActionCreator
	selectors map[string]boundSelector

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func()
}

// New builds a Store from modules. Every module receives initArgs when
// computing its initial state.
//
// Duplicate namespaces, action creator names or selector names are
// rejected with a *DuplicateNameError before the store is usable.
func New(modules []Module, env Env, initArgs ...any) (*Store, error) {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.Scheduler == nil {
		env.Scheduler = RealScheduler{}
	}

	s := &Store{
		env:       env,
		modules:   modules,
		actions:   make(map[string]ActionCreator),
		selectors: make(map[string]boundSelector),
		subs:      make(map[int]func()),
	}

	namespaces := make(map[string]bool, len(modules))
	owners := make(map[string]string)
	claim := func(kind, name, ns string) error {
		if prev, ok := owners[name]; ok {
			return &DuplicateNameError{Kind: kind, Name: name, Module: ns, Previous: prev}
		}
		owners[name] = ns
		return nil
	}

	slices := make(map[string]any, len(modules))
	for _, m := range modules {
		ns := m.Namespace()
		if namespaces[ns] {
			return nil, &DuplicateNameError{Kind: KindNamespace, Name: ns, Module: ns, Previous: ns}
		}
		namespaces[ns] = true
		slices[ns] = m.InitialState(initArgs...)

		for _, name := range sortedKeys(m.ActionCreators()) {
			if err := claim(KindAction, name, ns); err != nil {
				return nil, err
			}
			s.actions[name] = m.ActionCreators()[name]
		}
		selectors := m.Selectors()
		for _, name := range sortedKeys(selectors) {
			if err := claim(KindSelector, name, ns); err != nil {
				return nil, err
			}
			sel := selectors[name]
			s.selectors[name] = boundSelector{module: ns, fn: func(root *RootState, args ...any) (any, error) {
				return sel(root.Slice(ns), args...)
			}}
		}
		for _, name := range sortedKeys(m.RootSelectors()) {
			if err := claim(KindSelector, name, ns); err != nil {
				return nil, err
			}
			sel := m.RootSelectors()[name]
			s.selectors[name] = boundSelector{module: ns, fn: func(root *RootState, args ...any) (any, error) {
				return sel(root, args...)
			}}
		}
	}

	initial := &RootState{slices: slices}
	s.state.Store(initial)

	if !env.Production {
		s.frz = newFreezer(modules)
		if err := s.frz.snapshot(nil, initial); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Env returns the environment thunks run with.
func (s *Store) Env() Env { return s.env }

// State returns the current state tree. It must be treated as read-only.
func (s *Store) State() *RootState { return s.state.Load() }

// Dispatch applies an action. Thunks are invoked; other actions are routed
// to every module in registration order. An error from any reducer aborts
// the dispatch and leaves the state unchanged.
func (s *Store) Dispatch(a Action) error {
	if a == nil {
		return errors.New("dispatch: nil action")
	}
	if t, ok := a.(Thunk); ok {
		return t(s)
	}

	changed, err := s.reduce(a)
	observ.DispatchTotal.WithLabelValues(a.ActionType()).Inc()
	if err != nil {
		observ.DispatchErrors.WithLabelValues(a.ActionType()).Inc()
		s.env.Logger.Error("dispatch failed",
			zap.String("action", a.ActionType()),
			zap.Error(err),
		)
		return err
	}
	s.env.Logger.Debug("dispatched",
		zap.String("action", a.ActionType()),
		zap.Bool("changed", changed),
	)
	if changed {
		s.notify()
	}
	return nil
}

func (s *Store) reduce(a Action) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Load()
	if s.frz != nil {
		if err := s.frz.verify(prev); err != nil {
			return false, fmt.Errorf("before %s: %w", a.ActionType(), err)
		}
	}

	var next map[string]any
	for _, m := range s.modules {
		ns := m.Namespace()
		slice, changed, err := m.Reduce(prev.slices[ns], a)
		if err != nil {
			return false, fmt.Errorf("%s: %s: %w", ns, a.ActionType(), err)
		}
		if !changed {
			continue
		}
		if next == nil {
			next = make(map[string]any, len(prev.slices))
			for k, v := range prev.slices {
				next[k] = v
			}
		}
		next[ns] = slice
	}

	if s.frz != nil {
		if err := s.frz.verify(prev); err != nil {
			return false, fmt.Errorf("reducing %s: %w", a.ActionType(), err)
		}
	}
	if next == nil {
		return false, nil
	}

	root := &RootState{slices: next}
	if s.frz != nil {
		if err := s.frz.snapshot(prev, root); err != nil {
			return false, err
		}
	}
	s.state.Store(root)
	return true, nil
}

// Subscribe registers fn to run after every dispatch that changes state.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Select calls the selector registered under name against the current
// state.
func (s *Store) Select(name string, args ...any) (any, error) {
	sel, ok := s.selectors[name]
	if !ok {
		return nil, fmt.Errorf("select %q: %w", name, ErrUnknownName)
	}
	return sel.fn(s.State(), args...)
}

// Invoke builds the action registered under name and dispatches it.
func (s *Store) Invoke(name string, args ...any) error {
	create, ok := s.actions[name]
	if !ok {
		return fmt.Errorf("invoke %q: %w", name, ErrUnknownName)
	}
	a, err := create(args...)
	if err != nil {
		return fmt.Errorf("invoke %q: %w", name, err)
	}
	return s.Dispatch(a)
}

// ActionNames lists every bound action creator.
func (s *Store) ActionNames() []string { return sortedKeys(s.actions) }

// SelectorNames lists every bound selector, including root selectors.
func (s *Store) SelectorNames() []string { return sortedKeys(s.selectors) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
