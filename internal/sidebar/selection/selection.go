// Package selection holds the UI state derived from user interaction:
// selected and expanded threads, the active tab, sort order and the
// filters applied to the annotation list.
//
// Selection and filters react to each other's actions, so both modules
// live in this package.
package selection

import (
	"maps"
	"sort"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/annotations"
	"github.com/lalith-99/marginalia/internal/sidebar/metadata"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "selection"

// Tab is one of the sidebar's annotation tabs.
type Tab string

const (
	TabAnnotation Tab = "annotation"
	TabNote       Tab = "note"
	TabOrphan     Tab = "orphan"
)

type SortKey string

const (
	SortLocation SortKey = "Location"
	SortNewest   SortKey = "Newest"
	SortOldest   SortKey = "Oldest"
)

var defaultSortKey = map[Tab]SortKey{
	TabAnnotation: SortLocation,
	TabNote:       SortOldest,
	TabOrphan:     SortLocation,
}

type State struct {
	// Selected annotations supersede other filters.
	Selected map[string]bool

	// Expanded records explicitly expanded (true) or collapsed (false)
	// threads.
	Expanded map[string]bool

	// ForcedVisible threads are shown even when filters exclude them.
	ForcedVisible map[string]bool

	SelectedTab Tab
	SortKey     SortKey

	// FocusRequest is the ID or tag of an annotation that should receive
	// keyboard focus, or "".
	FocusRequest string
}

type ClearSelectionAction struct{}

func (ClearSelectionAction) ActionType() string { return "CLEAR_SELECTION" }

type SelectAnnotationsAction struct {
	Selection map[string]bool
}

func (SelectAnnotationsAction) ActionType() string { return "SELECT_ANNOTATIONS" }

type ToggleSelectedAnnotationsAction struct {
	IDs []string
}

func (ToggleSelectedAnnotationsAction) ActionType() string { return "TOGGLE_SELECTED_ANNOTATIONS" }

type SelectTabAction struct {
	Tab Tab
}

func (SelectTabAction) ActionType() string { return "SELECT_TAB" }

type SetExpandedAction struct {
	ID       string
	Expanded bool
}

func (SetExpandedAction) ActionType() string { return "SET_EXPANDED" }

type SetForcedVisibleAction struct {
	ID      string
	Visible bool
}

func (SetForcedVisibleAction) ActionType() string { return "SET_FORCED_VISIBLE" }

type SetSortKeyAction struct {
	Key SortKey
}

func (SetSortKeyAction) ActionType() string { return "SET_SORT_KEY" }

type SetAnnotationFocusRequestAction struct {
	ID string
}

func (SetAnnotationFocusRequestAction) ActionType() string { return "SET_ANNOTATION_FOCUS_REQUEST" }

type ClearAnnotationFocusRequestAction struct{}

func (ClearAnnotationFocusRequestAction) ActionType() string {
	return "CLEAR_ANNOTATION_FOCUS_REQUEST"
}

func initialSelection(settings models.SidebarSettings) map[string]bool {
	sel := map[string]bool{}
	if settings.Annotations != "" && settings.Query == "" {
		sel[settings.Annotations] = true
	}
	return sel
}

func initialState(args ...any) State {
	settings, _ := store.FindArg[models.SidebarSettings](args)
	return State{
		Selected:      initialSelection(settings),
		Expanded:      initialSelection(settings),
		ForcedVisible: map[string]bool{},
		SelectedTab:   TabAnnotation,
		SortKey:       defaultSortKey[TabAnnotation],
	}
}

// withTab switches next to tab, resetting the sort key. Selecting the
// current tab again keeps the sort key.
func withTab(next *State, tab Tab) {
	if next.SelectedTab == tab {
		return
	}
	next.SelectedTab = tab
	next.SortKey = defaultSortKey[tab]
}

func resetSelection(s *State) *State {
	next := *s
	next.Selected = map[string]bool{}
	next.ForcedVisible = map[string]bool{}
	return &next
}

func reduce(s *State, action store.Action) (*State, error) {
	switch a := action.(type) {
	case ClearAnnotationFocusRequestAction:
		next := *s
		next.FocusRequest = ""
		return &next, nil

	case SetAnnotationFocusRequestAction:
		next := *s
		next.FocusRequest = a.ID
		return &next, nil

	case ClearSelectionAction, ChangeFocusModeUserAction, SetFocusModeAction:
		return resetSelection(s), nil

	case SetFilterAction, SetFilterQueryAction:
		next := resetSelection(s)
		next.Expanded = map[string]bool{}
		return next, nil

	case SelectAnnotationsAction:
		next := *s
		next.Selected = maps.Clone(a.Selection)
		return &next, nil

	case SelectTabAction:
		if s.SelectedTab == a.Tab {
			return nil, nil
		}
		next := *s
		withTab(&next, a.Tab)
		return &next, nil

	case SetExpandedAction:
		next := *s
		next.Expanded = maps.Clone(s.Expanded)
		next.Expanded[a.ID] = a.Expanded
		return &next, nil

	case SetForcedVisibleAction:
		next := *s
		next.ForcedVisible = maps.Clone(s.ForcedVisible)
		next.ForcedVisible[a.ID] = a.Visible
		return &next, nil

	case SetSortKeyAction:
		next := *s
		next.SortKey = a.Key
		return &next, nil

	case ToggleSelectedAnnotationsAction:
		next := *s
		next.Selected = maps.Clone(s.Selected)
		for _, id := range a.IDs {
			next.Selected[id] = !next.Selected[id]
		}
		return &next, nil

	case annotations.AddAnnotationsAction:
		// Open the notes tab when the first annotations loaded are all
		// page notes.
		if a.CurrentAnnotationCount != 0 {
			return nil, nil
		}
		topLevel := len(a.Annotations) - metadata.CountIf(a.Annotations, metadata.IsReply)
		if metadata.CountIf(a.Annotations, metadata.IsPageNote) != topLevel || s.SelectedTab == TabNote {
			return nil, nil
		}
		next := *s
		withTab(&next, TabNote)
		return &next, nil

	case annotations.RemoveAnnotationsAction:
		next := *s
		if s.SelectedTab == TabOrphan && metadata.CountIf(a.Remaining, metadata.IsOrphan) == 0 {
			withTab(&next, TabAnnotation)
		}
		drop := func(m map[string]bool) map[string]bool {
			out := maps.Clone(m)
			for _, ann := range a.ToRemove {
				if ann.ID != "" {
					delete(out, ann.ID)
				}
				if ann.Tag != "" {
					delete(out, ann.Tag)
				}
			}
			return out
		}
		next.Expanded = drop(s.Expanded)
		next.ForcedVisible = drop(s.ForcedVisible)
		next.Selected = drop(s.Selected)
		return &next, nil
	}
	return nil, nil
}

func ClearSelection() ClearSelectionAction { return ClearSelectionAction{} }

// SelectAnnotations replaces the selection with ids.
func SelectAnnotations(ids []string) store.Thunk {
	return func(api store.ThunkAPI) error {
		if err := api.Dispatch(ClearSelection()); err != nil {
			return err
		}
		sel := make(map[string]bool, len(ids))
		for _, id := range ids {
			sel[id] = true
		}
		return api.Dispatch(SelectAnnotationsAction{Selection: sel})
	}
}

// ToggleSelectedAnnotations flips the selected state of each of ids.
func ToggleSelectedAnnotations(ids []string) ToggleSelectedAnnotationsAction {
	return ToggleSelectedAnnotationsAction{IDs: ids}
}

func SelectTab(tab Tab) SelectTabAction { return SelectTabAction{Tab: tab} }

func SetExpanded(id string, expanded bool) SetExpandedAction {
	return SetExpandedAction{ID: id, Expanded: expanded}
}

// SetForcedVisible shows a thread even if the applied filters hide it.
func SetForcedVisible(id string, visible bool) SetForcedVisibleAction {
	return SetForcedVisibleAction{ID: id, Visible: visible}
}

func SetSortKey(key SortKey) SetSortKeyAction { return SetSortKeyAction{Key: key} }

// SetAnnotationFocusRequest asks the UI to focus an annotation. The UI
// clears the request once handled.
func SetAnnotationFocusRequest(id string) SetAnnotationFocusRequestAction {
	return SetAnnotationFocusRequestAction{ID: id}
}

func ClearAnnotationFocusRequest() ClearAnnotationFocusRequestAction {
	return ClearAnnotationFocusRequestAction{}
}

func trueKeys(m map[string]bool) []string {
	keys := []string{}
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func ExpandedMap(s *State) map[string]bool { return s.Expanded }

func AnnotationFocusRequest(s *State) string { return s.FocusRequest }

var ForcedVisibleThreads = store.Memo(func(s *State) []string {
	return trueKeys(s.ForcedVisible)
})

var SelectedAnnotations = store.Memo(func(s *State) []string {
	return trueKeys(s.Selected)
})

func HasSelectedAnnotations(s *State) bool {
	return len(SelectedAnnotations(s)) > 0
}

func SelectedTab(s *State) Tab { return s.SelectedTab }

func CurrentSortKey(s *State) SortKey { return s.SortKey }

// SortKeys lists the sort orders offered on the selected tab. Notes have
// no location.
var SortKeys = store.Memo(func(s *State) []SortKey {
	keys := []SortKey{SortNewest, SortOldest}
	if s.SelectedTab != TabNote {
		keys = append(keys, SortLocation)
	}
	return keys
})

// Summary is the selection state consumed by thread building.
type Summary struct {
	Expanded      map[string]bool
	ForcedVisible []string
	Selected      []string
	SortKey       SortKey
	SelectedTab   Tab
}

var SelectionState = store.Memo(func(s *State) Summary {
	return Summary{
		Expanded:      s.Expanded,
		ForcedVisible: ForcedVisibleThreads(s),
		Selected:      SelectedAnnotations(s),
		SortKey:       s.SortKey,
		SelectedTab:   s.SelectedTab,
	}
})

// NewModule returns the selection store module.
func NewModule() store.Module {
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"clearAnnotationFocusRequest": store.Act0(ClearAnnotationFocusRequest),
			"clearSelection":              store.Act0(ClearSelection),
			"selectAnnotations":           store.Act1(SelectAnnotations),
			"selectTab":                   store.Act1(SelectTab),
			"setAnnotationFocusRequest":   store.Act1(SetAnnotationFocusRequest),
			"setExpanded":                 store.Act2(SetExpanded),
			"setForcedVisible":            store.Act2(SetForcedVisible),
			"setSortKey":                  store.Act1(SetSortKey),
			"toggleSelectedAnnotations":   store.Act1(ToggleSelectedAnnotations),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"annotationFocusRequest": store.Sel0(AnnotationFocusRequest),
			"expandedMap":            store.Sel0(ExpandedMap),
			"forcedVisibleThreads":   store.Sel0(ForcedVisibleThreads),
			"hasSelectedAnnotations": store.Sel0(HasSelectedAnnotations),
			"selectedAnnotations":    store.Sel0(SelectedAnnotations),
			"selectedTab":            store.Sel0(SelectedTab),
			"selectionState":         store.Sel0(SelectionState),
			"sortKey":                store.Sel0(CurrentSortKey),
			"sortKeys":               store.Sel0(SortKeys),
		},
	})
}
