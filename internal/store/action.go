package store

import "time"

// Action is a state transition. Every module's reducer sees every action
// and type-switches over the action structs it knows about.
type Action interface {
	ActionType() string
}

// Thunk is an action that runs instead of being reduced. It can read the
// current state and dispatch any number of further actions, which is how
// multi-step or conditional updates are expressed.
type Thunk func(api ThunkAPI) error

// ActionType implements Action.
func (Thunk) ActionType() string { return "THUNK" }

// ThunkAPI is what a Thunk gets to work with. *Store implements it.
type ThunkAPI interface {
	Dispatch(a Action) error
	State() *RootState
	Env() Env
}

// Scheduler runs delayed callbacks. The anchoring timeout is the only
// timer-driven event source in the sidebar.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// RealScheduler schedules callbacks on the wall clock.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
