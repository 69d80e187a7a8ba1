// Package annotations owns the set of annotations loaded into the sidebar.
package annotations

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "annotations"

// DefaultAnchoringTimeout is how long an annotation may wait to anchor
// before it is flagged with AnchorTimeout.
const DefaultAnchoringTimeout = 500 * time.Millisecond

type State struct {
	// Annotations holds newly inserted records first, then updated ones,
	// then the rest. Thread building relies on that order.
	Annotations []models.Annotation

	// Highlighted holds the tags of annotations shown as highlighted.
	Highlighted map[string]bool

	// Hovered holds the tags of annotations whose cards or highlights
	// are hovered.
	Hovered map[string]bool

	// NextTag is the number of the next local tag to assign.
	NextTag int
}

func initialState(...any) State {
	return State{
		Annotations: []models.Annotation{},
		Highlighted: map[string]bool{},
		Hovered:     map[string]bool{},
		NextTag:     1,
	}
}

func tagFor(n int) string {
	return "t" + strconv.Itoa(n)
}

func parseTag(tag string) (int, bool) {
	rest, ok := strings.CutPrefix(tag, "t")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func findByID(anns []models.Annotation, id string) (models.Annotation, bool) {
	for _, a := range anns {
		if a.ID == id {
			return a, true
		}
	}
	return models.Annotation{}, false
}

func findByTag(anns []models.Annotation, tag string) (models.Annotation, bool) {
	for _, a := range anns {
		if a.Tag == tag {
			return a, true
		}
	}
	return models.Annotation{}, false
}

// exclude returns the annotations in current not matched by any stub,
// matching on either ID or tag.
func exclude(current []models.Annotation, stubs []models.AnnotationID) []models.Annotation {
	ids := make(map[string]bool)
	tags := make(map[string]bool)
	for _, s := range stubs {
		if s.ID != "" {
			ids[s.ID] = true
		}
		if s.Tag != "" {
			tags[s.Tag] = true
		}
	}
	remaining := make([]models.Annotation, 0, len(current))
	for _, a := range current {
		if (a.ID != "" && ids[a.ID]) || (a.Tag != "" && tags[a.Tag]) {
			continue
		}
		remaining = append(remaining, a)
	}
	return remaining
}

// initialize derives the client-only fields of an annotation entering the
// collection for the first time.
func initialize(a models.Annotation, tag, currentUserID string) models.Annotation {
	orphan := a.Orphan
	if a.ID == "" {
		// Unsaved annotations were just created against the document, so
		// they are anchored by definition.
		f := false
		orphan = &f
	}

	cluster := models.ClusterOtherContent
	if currentUserID != "" && a.User == currentUserID {
		if a.Text == "" || a.Highlight {
			cluster = models.ClusterUserHighlights
		} else {
			cluster = models.ClusterUserAnnotations
		}
	}

	a.Tag = tag
	a.Orphan = orphan
	a.AnchorTimeout = false
	a.Cluster = cluster
	return a
}

// merge overlays an incoming record on the one already in the collection.
// Incoming API fields win; client-only fields and optional fields the
// incoming record leaves out are kept from existing.
func merge(existing, incoming models.Annotation) models.Annotation {
	out := incoming
	out.Tag = existing.Tag
	if out.Orphan == nil {
		out.Orphan = existing.Orphan
	}
	out.AnchorTimeout = existing.AnchorTimeout || incoming.AnchorTimeout
	if out.Cluster == "" {
		out.Cluster = existing.Cluster
	}
	out.Highlight = existing.Highlight || incoming.Highlight
	if out.Moderation == nil {
		out.Moderation = existing.Moderation
	}
	if out.UserInfo == nil {
		out.UserInfo = existing.UserInfo
	}
	return out
}

func addAnnotations(s *State, a AddAnnotationsAction) *State {
	updatedIDs := make(map[string]bool)
	updatedTags := make(map[string]bool)

	var added, updated []models.Annotation
	nextTag := s.NextTag

	used := make(map[string]bool, len(s.Annotations))
	for _, ann := range s.Annotations {
		used[ann.Tag] = true
	}

	for _, ann := range a.Annotations {
		var (
			existing models.Annotation
			found    bool
		)
		if ann.ID != "" {
			existing, found = findByID(s.Annotations, ann.ID)
		}
		if !found && ann.Tag != "" {
			existing, found = findByTag(s.Annotations, ann.Tag)
		}

		if found {
			updated = append(updated, merge(existing, ann))
			if ann.ID != "" {
				updatedIDs[ann.ID] = true
			}
			if existing.Tag != "" {
				updatedTags[existing.Tag] = true
			}
			continue
		}
		var tag string
		tag, nextTag = assignTag(ann.Tag, nextTag, used)
		added = append(added, initialize(ann, tag, a.CurrentUserID))
	}

	out := make([]models.Annotation, 0, len(added)+len(updated)+len(s.Annotations))
	out = append(out, added...)
	out = append(out, updated...)
	for _, ann := range s.Annotations {
		if (ann.ID != "" && updatedIDs[ann.ID]) || updatedTags[ann.Tag] {
			continue
		}
		out = append(out, ann)
	}

	next := *s
	next.Annotations = out
	next.NextTag = nextTag
	return &next
}

// assignTag picks the tag for a record entering the collection. A tag the
// record already carries is kept unless another record holds it; a kept
// tag in the local "t<N>" form moves the counter past N so minted tags
// never collide with it.
func assignTag(want string, nextTag int, used map[string]bool) (string, int) {
	if want != "" && !used[want] {
		used[want] = true
		if n, ok := parseTag(want); ok && n >= nextTag {
			nextTag = n + 1
		}
		return want, nextTag
	}
	for used[tagFor(nextTag)] {
		nextTag++
	}
	tag := tagFor(nextTag)
	used[tag] = true
	return tag, nextTag + 1
}

// mapAnnotations applies fn to every annotation and returns a new state,
// or nil when fn changed nothing.
func mapAnnotations(s *State, fn func(models.Annotation) (models.Annotation, bool)) *State {
	var out []models.Annotation
	for i, ann := range s.Annotations {
		updated, changed := fn(ann)
		if !changed {
			if out != nil {
				out = append(out, ann)
			}
			continue
		}
		if out == nil {
			out = make([]models.Annotation, i, len(s.Annotations))
			copy(out, s.Annotations[:i])
		}
		out = append(out, updated)
	}
	if out == nil {
		return nil
	}
	next := *s
	next.Annotations = out
	return &next
}

func toTrueMap(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func trueKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func reduce(s *State, action store.Action) (*State, error) {
	switch a := action.(type) {
	case AddAnnotationsAction:
		return addAnnotations(s, a), nil

	case RemoveAnnotationsAction:
		remaining := a.Remaining
		if a.base != s {
			// Something else changed the collection between computing the
			// remainder and dispatching it.
			remaining = exclude(s.Annotations, a.ToRemove)
		}
		next := *s
		next.Annotations = append([]models.Annotation{}, remaining...)
		return &next, nil

	case ClearAnnotationsAction:
		next := *s
		next.Annotations = []models.Annotation{}
		next.Highlighted = map[string]bool{}
		next.Hovered = map[string]bool{}
		return &next, nil

	case HoverAnnotationsAction:
		next := *s
		next.Hovered = toTrueMap(a.Tags)
		return &next, nil

	case HighlightAnnotationsAction:
		next := *s
		next.Highlighted = toTrueMap(a.IDs)
		return &next, nil

	case HideAnnotationAction:
		return mapAnnotations(s, func(ann models.Annotation) (models.Annotation, bool) {
			if ann.ID != a.ID || ann.Hidden {
				return ann, false
			}
			ann.Hidden = true
			return ann, true
		}), nil

	case UnhideAnnotationAction:
		return mapAnnotations(s, func(ann models.Annotation) (models.Annotation, bool) {
			if ann.ID != a.ID || !ann.Hidden {
				return ann, false
			}
			ann.Hidden = false
			return ann, true
		}), nil

	case UpdateAnchorStatusAction:
		return mapAnnotations(s, func(ann models.Annotation) (models.Annotation, bool) {
			status, ok := a.StatusUpdates[ann.Tag]
			if !ok {
				return ann, false
			}
			if status == StatusTimeout {
				ann.AnchorTimeout = true
				return ann, true
			}
			orphan := status == StatusOrphan
			ann.Orphan = &orphan
			return ann, true
		}), nil

	case UpdateFlagStatusAction:
		return mapAnnotations(s, func(ann models.Annotation) (models.Annotation, bool) {
			if ann.ID == "" || ann.ID != a.ID || ann.Flagged == a.IsFlagged {
				return ann, false
			}
			ann.Flagged = a.IsFlagged
			if ann.Moderation != nil {
				delta := -1
				if a.IsFlagged {
					delta = 1
				}
				ann.Moderation = &models.Moderation{FlagCount: ann.Moderation.FlagCount + delta}
			}
			return ann, true
		}), nil
	}
	return nil, nil
}

// Options configure the annotations module.
type Options struct {
	AnchoringTimeout time.Duration
}

// NewModule returns the annotations store module. It reads the session
// and route modules, which must be composed into the same store.
func NewModule(opts Options) store.Module {
	if opts.AnchoringTimeout <= 0 {
		opts.AnchoringTimeout = DefaultAnchoringTimeout
	}
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"addAnnotations": store.Act1(func(anns []models.Annotation) store.Thunk {
				return AddAnnotations(anns, opts.AnchoringTimeout)
			}),
			"clearAnnotations":     store.Act0(ClearAnnotations),
			"hoverAnnotations":     store.Act1(HoverAnnotations),
			"hideAnnotation":       store.Act1(HideAnnotation),
			"highlightAnnotations": store.Act1(HighlightAnnotations),
			"removeAnnotations":    store.Act1(RemoveAnnotations),
			"unhideAnnotation":     store.Act1(UnhideAnnotation),
			"updateAnchorStatus":   store.Act1(UpdateAnchorStatus),
			"updateFlagStatus":     store.Act2(UpdateFlagStatus),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"allAnnotations":               store.Sel0(AllAnnotations),
			"annotationCount":              store.Sel0(AnnotationCount),
			"annotationExists":             store.Sel1(AnnotationExists),
			"findAnnotationByID":           store.Sel1(FindAnnotationByID),
			"findAnnotationByTag":          store.Sel1(FindAnnotationByTag),
			"findIDsForTags":               store.Sel1(FindIDsForTags),
			"hoveredAnnotations":           store.Sel0(HoveredAnnotations),
			"highlightedAnnotations":       store.Sel0(HighlightedAnnotations),
			"isAnnotationHovered":          store.Sel1(IsAnnotationHovered),
			"isWaitingToAnchorAnnotations": store.Sel0(IsWaitingToAnchorAnnotations),
			"newAnnotations":               store.Sel0(NewAnnotations),
			"newHighlights":                store.Sel0(NewHighlights),
			"noteCount":                    store.Sel0(NoteCount),
			"orphanCount":                  store.Sel0(OrphanCount),
			"savedAnnotations":             store.Sel0(SavedAnnotations),
		},
	})
}
