package store

import (
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type trackedCall struct {
	name   string
	args   []any
	result any
}

func (c trackedCall) matches(name string, args []any) bool {
	if c.name != name || len(c.args) != len(args) {
		return false
	}
	for i := range args {
		if !cmp.Equal(c.args[i], args[i]) {
			return false
		}
	}
	return true
}

// Tracker records the selector calls a consumer makes and tells it when
// any of those results change. Consumers re-read the store only when
// something they looked at is different, not on every state change.
type Tracker struct {
	store        *Store
	onInvalidate func()

	mu          sync.Mutex
	calls       []trackedCall
	unsubscribe func()
}

// NewTracker starts tracking selector reads against s. onInvalidate runs
// after a dispatch changes the result of at least one recorded call; the
// record is cleared at that point.
func NewTracker(s *Store, onInvalidate func()) *Tracker {
	t := &Tracker{store: s, onInvalidate: onInvalidate}
	t.unsubscribe = s.Subscribe(t.check)
	return t
}

// Select reads a named selector, answering from the record when the same
// call was made since the last invalidation.
func (t *Tracker) Select(name string, args ...any) (any, error) {
	t.mu.Lock()
	for _, c := range t.calls {
		if c.matches(name, args) {
			t.mu.Unlock()
			return c.result, nil
		}
	}
	t.mu.Unlock()

	result, err := t.store.Select(name, args...)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.calls = append(t.calls, trackedCall{name: name, args: args, result: result})
	t.mu.Unlock()
	return result, nil
}

// Close stops tracking.
func (t *Tracker) Close() {
	t.unsubscribe()
}

func (t *Tracker) check() {
	t.mu.Lock()
	calls := t.calls
	t.mu.Unlock()

	stale := false
	for _, c := range calls {
		result, err := t.store.Select(c.name, c.args...)
		if err != nil || !cmp.Equal(result, c.result, cmpopts.EquateEmpty()) {
			stale = true
			break
		}
	}
	if !stale {
		return
	}
	t.mu.Lock()
	t.calls = nil
	t.mu.Unlock()
	if t.onInvalidate != nil {
		t.onInvalidate()
	}
}
