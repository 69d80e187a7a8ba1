package store

import "sync"

// Memo caches the result of fn for the most recent input pointer. Because
// slices are never modified in place, a pointer that has been seen before
// always maps to the same result; a new pointer always recomputes.
//
// The cache holds a reference to the last input, so its address cannot be
// reused for a different slice while cached.
func Memo[S, R any](fn func(*S) R) func(*S) R {
	var (
		mu      sync.Mutex
		lastIn  *S
		lastOut R
	)
	return func(s *S) R {
		mu.Lock()
		defer mu.Unlock()
		if lastIn != nil && lastIn == s {
			return lastOut
		}
		lastOut = fn(s)
		lastIn = s
		return lastOut
	}
}

// Watch calls onChange whenever the value returned by get differs from
// the value it returned after the previous state change.
func Watch[T comparable](s *Store, get func() T, onChange func(current, previous T)) (unsubscribe func()) {
	var mu sync.Mutex
	prev := get()
	return s.Subscribe(func() {
		cur := get()
		mu.Lock()
		if cur == prev {
			mu.Unlock()
			return
		}
		old := prev
		prev = cur
		mu.Unlock()
		onChange(cur, old)
	})
}
