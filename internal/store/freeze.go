package store

import "fmt"

// freezer keeps a private deep copy of the last committed state. Comparing
// the live tree against it turns any in-place mutation into an error at the
// next dispatch.
type freezer struct {
	modules []Module
	copies  map[string]any
}

func newFreezer(modules []Module) *freezer {
	return &freezer{modules: modules, copies: make(map[string]any, len(modules))}
}

// snapshot records copies of every slice of next that differs from prev.
func (f *freezer) snapshot(prev, next *RootState) error {
	for _, m := range f.modules {
		ns := m.Namespace()
		slice := next.slices[ns]
		if prev != nil && prev.slices[ns] == slice {
			continue
		}
		c, err := m.CloneState(slice)
		if err != nil {
			return err
		}
		f.copies[ns] = c
	}
	return nil
}

func (f *freezer) verify(root *RootState) error {
	for _, m := range f.modules {
		ns := m.Namespace()
		if diff := m.DiffState(f.copies[ns], root.slices[ns]); diff != "" {
			return fmt.Errorf("%w: %s (-committed +live):\n%s", ErrStateMutated, ns, diff)
		}
	}
	return nil
}
