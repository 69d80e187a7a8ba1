// Package activity tracks in-flight API requests, annotation fetches and
// annotation saves.
package activity

import (
	"errors"
	"slices"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "activity"

var (
	ErrNoActiveRequests = errors.New("api request finished with no requests active")
	ErrNoActiveFetches  = errors.New("annotation fetch finished with no fetches active")
)

type State struct {
	// ActiveAnnotationSaveRequests holds the tags of annotations being
	// saved.
	ActiveAnnotationSaveRequests []string

	ActiveAPIRequests       int
	ActiveAnnotationFetches int
	HasFetchedAnnotations   bool

	// AnnotationResultCount is the total the service reported for the most
	// recent search, or nil before any search.
	AnnotationResultCount *int
}

type APIRequestStartedAction struct{}

func (APIRequestStartedAction) ActionType() string { return "API_REQUEST_STARTED" }

type APIRequestFinishedAction struct{}

func (APIRequestFinishedAction) ActionType() string { return "API_REQUEST_FINISHED" }

type AnnotationFetchStartedAction struct{}

func (AnnotationFetchStartedAction) ActionType() string { return "ANNOTATION_FETCH_STARTED" }

type AnnotationFetchFinishedAction struct{}

func (AnnotationFetchFinishedAction) ActionType() string { return "ANNOTATION_FETCH_FINISHED" }

type AnnotationSaveStartedAction struct {
	Tag string
}

func (AnnotationSaveStartedAction) ActionType() string { return "ANNOTATION_SAVE_STARTED" }

type AnnotationSaveFinishedAction struct {
	Tag string
}

func (AnnotationSaveFinishedAction) ActionType() string { return "ANNOTATION_SAVE_FINISHED" }

type SetAnnotationResultCountAction struct {
	Count int
}

func (SetAnnotationResultCountAction) ActionType() string { return "SET_ANNOTATION_RESULT_COUNT" }

func initialState(...any) State {
	return State{ActiveAnnotationSaveRequests: []string{}}
}

func reduce(s *State, action store.Action) (*State, error) {
	next := *s
	switch a := action.(type) {
	case APIRequestStartedAction:
		next.ActiveAPIRequests++
	case APIRequestFinishedAction:
		if s.ActiveAPIRequests == 0 {
			return nil, ErrNoActiveRequests
		}
		next.ActiveAPIRequests--
	case AnnotationFetchStartedAction:
		next.ActiveAnnotationFetches++
	case AnnotationFetchFinishedAction:
		if s.ActiveAnnotationFetches == 0 {
			return nil, ErrNoActiveFetches
		}
		next.ActiveAnnotationFetches--
		next.HasFetchedAnnotations = true
	case AnnotationSaveStartedAction:
		if a.Tag == "" || slices.Contains(s.ActiveAnnotationSaveRequests, a.Tag) {
			return nil, nil
		}
		next.ActiveAnnotationSaveRequests = append(slices.Clip(s.ActiveAnnotationSaveRequests), a.Tag)
	case AnnotationSaveFinishedAction:
		if !slices.Contains(s.ActiveAnnotationSaveRequests, a.Tag) {
			return nil, nil
		}
		next.ActiveAnnotationSaveRequests = slices.DeleteFunc(slices.Clone(s.ActiveAnnotationSaveRequests),
			func(tag string) bool { return tag == a.Tag })
	case SetAnnotationResultCountAction:
		n := a.Count
		next.AnnotationResultCount = &n
	default:
		return nil, nil
	}
	return &next, nil
}

func APIRequestStarted() APIRequestStartedAction   { return APIRequestStartedAction{} }
func APIRequestFinished() APIRequestFinishedAction { return APIRequestFinishedAction{} }

func AnnotationFetchStarted() AnnotationFetchStartedAction   { return AnnotationFetchStartedAction{} }
func AnnotationFetchFinished() AnnotationFetchFinishedAction { return AnnotationFetchFinishedAction{} }

// AnnotationSaveStarted marks ann as being saved. Annotations without a
// tag are not tracked.
func AnnotationSaveStarted(ann models.Annotation) AnnotationSaveStartedAction {
	return AnnotationSaveStartedAction{Tag: ann.Tag}
}

func AnnotationSaveFinished(ann models.Annotation) AnnotationSaveFinishedAction {
	return AnnotationSaveFinishedAction{Tag: ann.Tag}
}

func SetAnnotationResultCount(n int) SetAnnotationResultCountAction {
	return SetAnnotationResultCountAction{Count: n}
}

// AnnotationResultCount returns the last reported result count, or -1.
func AnnotationResultCount(s *State) int {
	if s.AnnotationResultCount == nil {
		return -1
	}
	return *s.AnnotationResultCount
}

func HasFetchedAnnotations(s *State) bool { return s.HasFetchedAnnotations }

func IsFetchingAnnotations(s *State) bool { return s.ActiveAnnotationFetches > 0 }

// IsLoading reports whether the sidebar is waiting on requests or has
// not fetched annotations yet.
func IsLoading(s *State) bool {
	return s.ActiveAPIRequests > 0 || !s.HasFetchedAnnotations
}

// IsSavingAnnotation reports whether ann has a save in flight.
func IsSavingAnnotation(s *State, ann models.Annotation) bool {
	return ann.Tag != "" && slices.Contains(s.ActiveAnnotationSaveRequests, ann.Tag)
}

// NewModule returns the activity store module.
func NewModule() store.Module {
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"annotationFetchFinished":  store.Act0(AnnotationFetchFinished),
			"annotationFetchStarted":   store.Act0(AnnotationFetchStarted),
			"annotationSaveFinished":   store.Act1(AnnotationSaveFinished),
			"annotationSaveStarted":    store.Act1(AnnotationSaveStarted),
			"apiRequestFinished":       store.Act0(APIRequestFinished),
			"apiRequestStarted":        store.Act0(APIRequestStarted),
			"setAnnotationResultCount": store.Act1(SetAnnotationResultCount),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"annotationResultCount": store.Sel0(AnnotationResultCount),
			"hasFetchedAnnotations": store.Sel0(HasFetchedAnnotations),
			"isFetchingAnnotations": store.Sel0(IsFetchingAnnotations),
			"isLoading":             store.Sel0(IsLoading),
			"isSavingAnnotation":    store.Sel1(IsSavingAnnotation),
		},
	})
}
