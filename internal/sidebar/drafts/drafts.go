// Package drafts stores unsaved edits to new or existing annotations.
package drafts

import (
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/annotations"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "drafts"

// Changes are the edits a user made to an annotation.
type Changes struct {
	IsPrivate   bool     `json:"isPrivate"`
	Tags        []string `json:"tags"`
	Text        string   `json:"text"`
	Description string   `json:"description,omitempty"`
}

// Draft is an unsaved set of changes to the annotation identified by
// Annotation.
type Draft struct {
	Annotation models.AnnotationID
	IsPrivate  bool
	Tags       []string
	Text       string

	// Description is the edited description of the annotation's
	// selection, when the user changed it.
	Description string
}

// NewDraft creates a draft for ann. Only the identity of ann is kept.
func NewDraft(ann models.AnnotationID, c Changes) Draft {
	return Draft{
		Annotation:  models.AnnotationID{ID: ann.ID, Tag: ann.Tag},
		IsPrivate:   c.IsPrivate,
		Tags:        c.Tags,
		Text:        c.Text,
		Description: c.Description,
	}
}

// Match reports whether d belongs to ann. Annotations match by ID or
// local tag.
func (d Draft) Match(ann models.AnnotationID) bool {
	return (d.Annotation.Tag != "" && ann.Tag == d.Annotation.Tag) ||
		(d.Annotation.ID != "" && ann.ID == d.Annotation.ID)
}

// IsEmpty reports whether d can be discarded without losing user input.
func (d Draft) IsEmpty() bool {
	return d.Text == "" && len(d.Tags) == 0 && d.Description == ""
}

// Changes returns the edits held by d.
func (d Draft) Changes() Changes {
	return Changes{IsPrivate: d.IsPrivate, Tags: d.Tags, Text: d.Text, Description: d.Description}
}

// Record is the serialized form of a draft.
type Record struct {
	Annotation models.AnnotationID `json:"annotation"`
	Changes    Changes             `json:"changes"`
}

type State struct {
	Drafts []Draft
}

type UpdateDraftAction struct {
	Draft Draft
}

func (UpdateDraftAction) ActionType() string { return "UPDATE_DRAFT" }

type RemoveDraftAction struct {
	Annotation models.AnnotationID
}

func (RemoveDraftAction) ActionType() string { return "REMOVE_DRAFT" }

type DiscardAllDraftsAction struct{}

func (DiscardAllDraftsAction) ActionType() string { return "DISCARD_ALL_DRAFTS" }

// RestoreDraftsAction replaces every draft with the given records.
type RestoreDraftsAction struct {
	Records []Record
}

func (RestoreDraftsAction) ActionType() string { return "RESTORE_DRAFTS" }

func initialState(...any) State {
	return State{Drafts: []Draft{}}
}

func without(drafts []Draft, ann models.AnnotationID) []Draft {
	out := make([]Draft, 0, len(drafts))
	for _, d := range drafts {
		if !d.Match(ann) {
			out = append(out, d)
		}
	}
	return out
}

func reduce(s *State, action store.Action) (*State, error) {
	switch a := action.(type) {
	case UpdateDraftAction:
		drafts := append(without(s.Drafts, a.Draft.Annotation), a.Draft)
		return &State{Drafts: drafts}, nil

	case RemoveDraftAction:
		drafts := without(s.Drafts, a.Annotation)
		if len(drafts) == len(s.Drafts) {
			return nil, nil
		}
		return &State{Drafts: drafts}, nil

	case DiscardAllDraftsAction:
		return &State{Drafts: []Draft{}}, nil

	case RestoreDraftsAction:
		drafts := make([]Draft, 0, len(a.Records))
		for _, r := range a.Records {
			drafts = append(without(drafts, r.Annotation), NewDraft(r.Annotation, r.Changes))
		}
		return &State{Drafts: drafts}, nil
	}
	return nil, nil
}

// CreateDraft creates or replaces the draft for ann. Any previous draft
// for the same annotation is dropped, not merged.
func CreateDraft(ann models.AnnotationID, c Changes) UpdateDraftAction {
	return UpdateDraftAction{Draft: NewDraft(ann, c)}
}

func RemoveDraft(ann models.AnnotationID) RemoveDraftAction {
	return RemoveDraftAction{Annotation: ann}
}

func DiscardAllDrafts() DiscardAllDraftsAction { return DiscardAllDraftsAction{} }

// RestoreDrafts re-creates drafts from persisted records.
func RestoreDrafts(records []Record) RestoreDraftsAction {
	return RestoreDraftsAction{Records: records}
}

// DeleteNewAndEmptyDrafts removes empty drafts of unsaved annotations,
// along with the annotations themselves.
func DeleteNewAndEmptyDrafts() store.Thunk {
	return func(api store.ThunkAPI) error {
		s := store.SliceOf[State](api.State(), Namespace)
		var removed []models.AnnotationID
		for _, d := range s.Drafts {
			if d.Annotation.ID != "" || !d.IsEmpty() {
				continue
			}
			if err := api.Dispatch(RemoveDraft(d.Annotation)); err != nil {
				return err
			}
			removed = append(removed, d.Annotation)
		}
		if len(removed) == 0 {
			return nil
		}
		return api.Dispatch(annotations.RemoveAnnotations(removed))
	}
}

// CountDrafts counts drafts of both new and saved annotations.
func CountDrafts(s *State) int { return len(s.Drafts) }

// GetDraft returns a copy of the draft for ann, or nil.
func GetDraft(s *State, ann models.AnnotationID) *Draft {
	for _, d := range s.Drafts {
		if d.Match(ann) {
			return &d
		}
	}
	return nil
}

// GetDraftIfNotEmpty is GetDraft, returning nil for empty drafts too.
func GetDraftIfNotEmpty(s *State, ann models.AnnotationID) *Draft {
	d := GetDraft(s, ann)
	if d == nil || d.IsEmpty() {
		return nil
	}
	return d
}

// UnsavedAnnotations returns the identities of drafts that have no ID.
var UnsavedAnnotations = store.Memo(func(s *State) []models.AnnotationID {
	out := []models.AnnotationID{}
	for _, d := range s.Drafts {
		if d.Annotation.ID == "" {
			out = append(out, d.Annotation)
		}
	}
	return out
})

// Snapshot returns the drafts in their serialized form.
var Snapshot = store.Memo(func(s *State) []Record {
	out := make([]Record, 0, len(s.Drafts))
	for _, d := range s.Drafts {
		out = append(out, Record{Annotation: d.Annotation, Changes: d.Changes()})
	}
	return out
})

// NewModule returns the drafts store module.
func NewModule() store.Module {
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"createDraft":             store.Act2(CreateDraft),
			"deleteNewAndEmptyDrafts": store.Act0(DeleteNewAndEmptyDrafts),
			"discardAllDrafts":        store.Act0(DiscardAllDrafts),
			"removeDraft":             store.Act1(RemoveDraft),
			"restoreDrafts":           store.Act1(RestoreDrafts),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"countDrafts":        store.Sel0(CountDrafts),
			"getDraft":           store.Sel1(GetDraft),
			"getDraftIfNotEmpty": store.Sel1(GetDraftIfNotEmpty),
			"unsavedAnnotations": store.Sel0(UnsavedAnnotations),
			"draftSnapshot":      store.Sel0(Snapshot),
		},
	})
}
