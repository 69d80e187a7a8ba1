// Package realtime stages annotation changes pushed by the server until
// the user chooses to apply them.
package realtime

import (
	"maps"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/annotations"
	"github.com/lalith-99/marginalia/internal/sidebar/groups"
	"github.com/lalith-99/marginalia/internal/sidebar/metadata"
	"github.com/lalith-99/marginalia/internal/sidebar/route"
	"github.com/lalith-99/marginalia/internal/sidebar/session"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "realTimeUpdates"

// State holds pushed changes that have not been applied yet.
type State struct {
	// PendingUpdates maps annotation ID to the latest version received
	// but not yet applied.
	PendingUpdates map[string]models.Annotation

	// PendingDeletions holds IDs of loaded annotations deleted on the
	// server.
	PendingDeletions map[string]bool
}

// ReceiveRealTimeUpdatesAction replaces both queues.
type ReceiveRealTimeUpdatesAction struct {
	PendingUpdates   map[string]models.Annotation
	PendingDeletions map[string]bool
}

func (ReceiveRealTimeUpdatesAction) ActionType() string { return "RECEIVE_REAL_TIME_UPDATES" }

// ClearPendingUpdatesAction drops all staged changes.
type ClearPendingUpdatesAction struct{}

func (ClearPendingUpdatesAction) ActionType() string { return "CLEAR_PENDING_UPDATES" }

func initialState(...any) State {
	return State{
		PendingUpdates:   map[string]models.Annotation{},
		PendingDeletions: map[string]bool{},
	}
}

func empty() *State {
	s := initialState()
	return &s
}

func reduce(s *State, action store.Action) (*State, error) {
	switch a := action.(type) {
	case ReceiveRealTimeUpdatesAction:
		next := empty()
		maps.Copy(next.PendingUpdates, a.PendingUpdates)
		maps.Copy(next.PendingDeletions, a.PendingDeletions)
		return next, nil

	case ClearPendingUpdatesAction:
		return empty(), nil

	case annotations.AddAnnotationsAction:
		// A local add or fetch supersedes any pending update. A pending
		// deletion is kept.
		var updates map[string]models.Annotation
		for _, ann := range a.Annotations {
			if _, ok := s.PendingUpdates[ann.ID]; ann.ID == "" || !ok {
				continue
			}
			if updates == nil {
				updates = maps.Clone(s.PendingUpdates)
			}
			delete(updates, ann.ID)
		}
		if updates == nil {
			return nil, nil
		}
		next := *s
		next.PendingUpdates = updates
		return &next, nil

	case annotations.RemoveAnnotationsAction:
		var (
			updates   map[string]models.Annotation
			deletions map[string]bool
		)
		for _, ann := range a.ToRemove {
			if ann.ID == "" {
				continue
			}
			if _, ok := s.PendingUpdates[ann.ID]; ok {
				if updates == nil {
					updates = maps.Clone(s.PendingUpdates)
				}
				delete(updates, ann.ID)
			}
			if s.PendingDeletions[ann.ID] {
				if deletions == nil {
					deletions = maps.Clone(s.PendingDeletions)
				}
				delete(deletions, ann.ID)
			}
		}
		if updates == nil && deletions == nil {
			return nil, nil
		}
		next := *s
		if updates != nil {
			next.PendingUpdates = updates
		}
		if deletions != nil {
			next.PendingDeletions = deletions
		}
		return &next, nil

	case groups.FocusGroupAction:
		// Switching groups reloads every annotation.
		if len(s.PendingUpdates) == 0 && len(s.PendingDeletions) == 0 {
			return nil, nil
		}
		return empty(), nil
	}
	return nil, nil
}

// ReceiveRealTimeUpdates stages server-side changes. Updates are kept only
// for the focused group, unless a view other than the sidebar is active.
// Deletions drop any pending update for the same annotation and are
// staged only for annotations currently loaded.
func ReceiveRealTimeUpdates(updated []models.Annotation, deleted []models.AnnotationID) store.Thunk {
	return func(api store.ThunkAPI) error {
		root := api.State()
		s := store.SliceOf[State](root, Namespace)
		focused := groups.FocusedGroupID(store.SliceOf[groups.State](root, groups.Namespace))
		inSidebar := route.Route(store.SliceOf[route.State](root, route.Namespace)) == route.Sidebar
		loaded := store.SliceOf[annotations.State](root, annotations.Namespace)

		updates := maps.Clone(s.PendingUpdates)
		deletions := maps.Clone(s.PendingDeletions)

		for _, ann := range updated {
			if ann.ID == "" {
				continue
			}
			if ann.Group == focused || !inSidebar {
				updates[ann.ID] = ann
			}
		}
		for _, ann := range deleted {
			if ann.ID == "" {
				continue
			}
			delete(updates, ann.ID)
			if annotations.AnnotationExists(loaded, ann.ID) {
				deletions[ann.ID] = true
			}
		}

		return api.Dispatch(ReceiveRealTimeUpdatesAction{
			PendingUpdates:   updates,
			PendingDeletions: deletions,
		})
	}
}

// ClearPendingUpdates empties both queues.
func ClearPendingUpdates() ClearPendingUpdatesAction { return ClearPendingUpdatesAction{} }

// PendingUpdates returns staged updates keyed by annotation ID.
func PendingUpdates(s *State) map[string]models.Annotation { return s.PendingUpdates }

// PendingDeletions returns the IDs of staged deletions.
func PendingDeletions(s *State) map[string]bool { return s.PendingDeletions }

// PendingUpdateCount counts pending updates and deletions together.
var PendingUpdateCount = store.Memo(func(s *State) int {
	return len(s.PendingUpdates) + len(s.PendingDeletions)
})

// HasPendingDeletion reports whether a deletion of id is staged.
func HasPendingDeletion(s *State, id string) bool { return s.PendingDeletions[id] }

// HasPendingUpdates reports whether any update is staged.
func HasPendingUpdates(s *State) bool { return len(s.PendingUpdates) > 0 }

// PendingMentionCount counts pending updates that mention the current user
// where the version currently displayed does not.
var PendingMentionCount = store.Memo(func(root *store.RootState) int {
	userID := session.UserID(store.SliceOf[session.State](root, session.Namespace))
	if userID == "" {
		return 0
	}
	s := store.SliceOf[State](root, Namespace)
	loaded := store.SliceOf[annotations.State](root, annotations.Namespace)

	n := 0
	for id, ann := range s.PendingUpdates {
		if s.PendingDeletions[id] || !metadata.Mentions(ann, userID) {
			continue
		}
		if shown := annotations.FindAnnotationByID(loaded, id); shown != nil && metadata.Mentions(*shown, userID) {
			continue
		}
		n++
	}
	return n
})

// HasPendingMentions reports whether PendingMentionCount is non-zero.
func HasPendingMentions(root *store.RootState) bool {
	return PendingMentionCount(root) > 0
}

// NewModule returns the real-time updates store module. It reads the
// annotations, groups, route and session modules.
func NewModule() store.Module {
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"clearPendingUpdates":    store.Act0(ClearPendingUpdates),
			"receiveRealTimeUpdates": store.Act2(ReceiveRealTimeUpdates),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"hasPendingDeletion": store.Sel1(HasPendingDeletion),
			"hasPendingUpdates":  store.Sel0(HasPendingUpdates),
			"pendingDeletions":   store.Sel0(PendingDeletions),
			"pendingUpdates":     store.Sel0(PendingUpdates),
			"pendingUpdateCount": store.Sel0(PendingUpdateCount),
		},
		RootSelectors: map[string]store.RootSelector{
			"hasPendingMentions":  store.Root0(HasPendingMentions),
			"pendingMentionCount": store.Root0(PendingMentionCount),
		},
	})
}
