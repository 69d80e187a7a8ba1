package annotations

import (
	"time"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/metadata"
	"github.com/lalith-99/marginalia/internal/sidebar/route"
	"github.com/lalith-99/marginalia/internal/sidebar/session"
	"github.com/lalith-99/marginalia/internal/store"
	"go.uber.org/zap"
)

// AnchorStatus is the outcome of an anchoring attempt.
type AnchorStatus string

const (
	StatusAnchored AnchorStatus = "anchored"
	StatusOrphan   AnchorStatus = "orphan"
	StatusTimeout  AnchorStatus = "timeout"
)

// AddAnnotationsAction inserts new annotations and merges updates into
// existing ones.
type AddAnnotationsAction struct {
	Annotations []models.Annotation

	// CurrentAnnotationCount is the collection size when the action was
	// created. Other modules use it to tell a first load from a later one.
	CurrentAnnotationCount int

	CurrentUserID string
}

func (AddAnnotationsAction) ActionType() string { return "ADD_ANNOTATIONS" }

// RemoveAnnotationsAction removes annotations. Remaining is the collection
// after removal, computed when the action was created.
type RemoveAnnotationsAction struct {
	ToRemove  []models.AnnotationID
	Remaining []models.Annotation

	base *State
}

func (RemoveAnnotationsAction) ActionType() string { return "REMOVE_ANNOTATIONS" }

// ClearAnnotationsAction empties the collection.
type ClearAnnotationsAction struct{}

func (ClearAnnotationsAction) ActionType() string { return "CLEAR_ANNOTATIONS" }

// HoverAnnotationsAction replaces the set of hovered tags.
type HoverAnnotationsAction struct {
	Tags []string
}

func (HoverAnnotationsAction) ActionType() string { return "HOVER_ANNOTATIONS" }

// HighlightAnnotationsAction replaces the set of highlighted IDs.
type HighlightAnnotationsAction struct {
	IDs []string
}

func (HighlightAnnotationsAction) ActionType() string { return "HIGHLIGHT_ANNOTATIONS" }

// HideAnnotationAction marks an annotation as hidden by a moderator.
type HideAnnotationAction struct {
	ID string
}

func (HideAnnotationAction) ActionType() string { return "HIDE_ANNOTATION" }

// UnhideAnnotationAction reverses HideAnnotationAction.
type UnhideAnnotationAction struct {
	ID string
}

func (UnhideAnnotationAction) ActionType() string { return "UNHIDE_ANNOTATION" }

// UpdateAnchorStatusAction records anchoring outcomes keyed by tag.
type UpdateAnchorStatusAction struct {
	StatusUpdates map[string]AnchorStatus
}

func (UpdateAnchorStatusAction) ActionType() string { return "UPDATE_ANCHOR_STATUS" }

// UpdateFlagStatusAction records whether the current user flagged an
// annotation.
type UpdateFlagStatusAction struct {
	ID        string
	IsFlagged bool
}

func (UpdateFlagStatusAction) ActionType() string { return "UPDATE_FLAG_STATUS" }

// AddAnnotations adds or updates annotations. When the sidebar view is
// active, any newly inserted annotation still waiting to anchor after
// timeout is marked with AnchorTimeout.
func AddAnnotations(anns []models.Annotation, timeout time.Duration) store.Thunk {
	return func(api store.ThunkAPI) error {
		root := api.State()
		cur := store.SliceOf[State](root, Namespace)
		before := make(map[string]bool, len(cur.Annotations))
		for _, ann := range cur.Annotations {
			before[ann.Tag] = true
		}

		err := api.Dispatch(AddAnnotationsAction{
			Annotations:            anns,
			CurrentAnnotationCount: len(cur.Annotations),
			CurrentUserID:          session.UserID(store.SliceOf[session.State](root, session.Namespace)),
		})
		if err != nil {
			return err
		}

		root = api.State()
		if route.Route(store.SliceOf[route.State](root, route.Namespace)) != route.Sidebar {
			return nil
		}

		// Updated records keep their tag, so any tag not present before
		// the dispatch belongs to an inserted record.
		after := store.SliceOf[State](root, Namespace)
		var waiting []string
		for _, ann := range after.Annotations {
			if !before[ann.Tag] && metadata.IsWaitingToAnchor(ann) {
				waiting = append(waiting, ann.Tag)
			}
		}
		if len(waiting) == 0 {
			return nil
		}

		env := api.Env()
		env.Scheduler.AfterFunc(timeout, func() {
			if err := api.Dispatch(markAnchorTimeouts(waiting)); err != nil {
				env.Logger.Warn("mark anchor timeouts", zap.Strings("tags", waiting), zap.Error(err))
			}
		})
		return nil
	}
}

// markAnchorTimeouts flags the annotations in tags that are still waiting
// to anchor. Annotations removed in the meantime are skipped.
func markAnchorTimeouts(tags []string) store.Thunk {
	return func(api store.ThunkAPI) error {
		s := store.SliceOf[State](api.State(), Namespace)
		updates := make(map[string]AnchorStatus)
		for _, tag := range tags {
			if ann, ok := findByTag(s.Annotations, tag); ok && metadata.IsWaitingToAnchor(ann) {
				updates[tag] = StatusTimeout
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return api.Dispatch(UpdateAnchorStatus(updates))
	}
}

// RemoveAnnotations removes the annotations matching stubs by ID or tag.
func RemoveAnnotations(stubs []models.AnnotationID) store.Thunk {
	return func(api store.ThunkAPI) error {
		s := store.SliceOf[State](api.State(), Namespace)
		return api.Dispatch(RemoveAnnotationsAction{
			ToRemove:  stubs,
			Remaining: exclude(s.Annotations, stubs),
			base:      s,
		})
	}
}

// ClearAnnotations empties the collection along with hover and highlight
// state. The tag counter is not reset.
func ClearAnnotations() ClearAnnotationsAction { return ClearAnnotationsAction{} }

// HoverAnnotations replaces the set of hovered tags.
func HoverAnnotations(tags []string) HoverAnnotationsAction {
	return HoverAnnotationsAction{Tags: tags}
}

// HighlightAnnotations replaces the set of highlighted annotations.
func HighlightAnnotations(ids []string) HighlightAnnotationsAction {
	return HighlightAnnotationsAction{IDs: ids}
}

// HideAnnotation hides annotation id.
func HideAnnotation(id string) HideAnnotationAction { return HideAnnotationAction{ID: id} }

// UnhideAnnotation shows annotation id again.
func UnhideAnnotation(id string) UnhideAnnotationAction { return UnhideAnnotationAction{ID: id} }

// UpdateAnchorStatus applies anchoring outcomes keyed by tag.
func UpdateAnchorStatus(updates map[string]AnchorStatus) UpdateAnchorStatusAction {
	return UpdateAnchorStatusAction{StatusUpdates: updates}
}

// UpdateFlagStatus sets whether the current user flagged an annotation.
// The moderation flag count, when present, moves only on a real change.
func UpdateFlagStatus(id string, isFlagged bool) UpdateFlagStatusAction {
	return UpdateFlagStatusAction{ID: id, IsFlagged: isFlagged}
}
