// Package groups holds the groups available to the user and the one
// currently in focus.
package groups

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/session"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "groups"

var (
	ErrGroupNotLoaded = errors.New("group not loaded")
	ErrNoFocusedGroup = errors.New("no focused group")
)

type State struct {
	Groups []models.Group

	// FocusedGroupID is "" when no group is focused.
	FocusedGroupID string

	// FilteredGroupIDs, when non-nil, restricts the groups shown.
	FilteredGroupIDs []string

	// FocusedGroupMembers is nil until members of the focused group are
	// loaded. It is reset whenever the focus changes.
	FocusedGroupMembers []models.GroupMember
}

type LoadGroupsAction struct {
	Groups []models.Group
}

func (LoadGroupsAction) ActionType() string { return "LOAD_GROUPS" }

type FocusGroupAction struct {
	ID string
}

func (FocusGroupAction) ActionType() string { return "FOCUS_GROUP" }

type FilterGroupsAction struct {
	IDs []string
}

func (FilterGroupsAction) ActionType() string { return "FILTER_GROUPS" }

type ClearGroupsAction struct{}

func (ClearGroupsAction) ActionType() string { return "CLEAR_GROUPS" }

type LoadMembersAction struct {
	Members []models.GroupMember
}

func (LoadMembersAction) ActionType() string { return "LOAD_FOCUSED_GROUP_MEMBERS" }

func initialState(...any) State {
	return State{Groups: []models.Group{}}
}

func find(groups []models.Group, id string) (models.Group, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return models.Group{}, false
}

func reduce(s *State, action store.Action) (*State, error) {
	switch a := action.(type) {
	case LoadGroupsAction:
		next := *s
		next.Groups = a.Groups
		if _, ok := find(a.Groups, s.FocusedGroupID); s.FocusedGroupID == "" || !ok {
			next.FocusedGroupID = ""
			if len(a.Groups) > 0 {
				next.FocusedGroupID = a.Groups[0].ID
			}
		}
		if next.FocusedGroupID != s.FocusedGroupID {
			next.FocusedGroupMembers = nil
		}
		return &next, nil

	case FocusGroupAction:
		if _, ok := find(s.Groups, a.ID); !ok {
			return nil, fmt.Errorf("focus group %s: %w", a.ID, ErrGroupNotLoaded)
		}
		if a.ID == s.FocusedGroupID {
			return nil, nil
		}
		next := *s
		next.FocusedGroupID = a.ID
		next.FocusedGroupMembers = nil
		return &next, nil

	case FilterGroupsAction:
		next := *s
		next.FilteredGroupIDs = nil
		if len(a.IDs) == 0 {
			return &next, nil
		}
		var matched []models.Group
		for _, g := range s.Groups {
			if slices.Contains(a.IDs, g.ID) {
				matched = append(matched, g)
			}
		}
		if len(matched) == 0 {
			return &next, nil
		}
		next.FilteredGroupIDs = a.IDs
		if s.FocusedGroupID == "" || !slices.Contains(a.IDs, s.FocusedGroupID) {
			next.FocusedGroupID = matched[0].ID
			next.FocusedGroupMembers = nil
		}
		return &next, nil

	case ClearGroupsAction:
		return &State{Groups: []models.Group{}}, nil

	case LoadMembersAction:
		if s.FocusedGroupID == "" {
			return nil, ErrNoFocusedGroup
		}
		next := *s
		next.FocusedGroupMembers = a.Members
		if next.FocusedGroupMembers == nil {
			next.FocusedGroupMembers = []models.GroupMember{}
		}
		return &next, nil
	}
	return nil, nil
}

// LoadGroups replaces the loaded groups. The focus moves to the first
// group when the focused one is no longer present.
func LoadGroups(groups []models.Group) LoadGroupsAction {
	return LoadGroupsAction{Groups: groups}
}

// FocusGroup focuses the loaded group with id.
func FocusGroup(id string) FocusGroupAction { return FocusGroupAction{ID: id} }

// FilterGroups restricts the displayed groups to ids. IDs that match no
// loaded group leave the filter unset.
func FilterGroups(ids []string) FilterGroupsAction { return FilterGroupsAction{IDs: ids} }

func ClearGroups() ClearGroupsAction { return ClearGroupsAction{} }

// LoadMembers stores the members of the focused group.
func LoadMembers(members []models.GroupMember) LoadMembersAction {
	return LoadMembersAction{Members: members}
}

func AllGroups(s *State) []models.Group { return s.Groups }

// FocusedGroupID returns the ID of the focused group, or "".
func FocusedGroupID(s *State) string { return s.FocusedGroupID }

// FocusedGroup returns a copy of the focused group, or nil.
func FocusedGroup(s *State) *models.Group {
	if s.FocusedGroupID == "" {
		return nil
	}
	return GetGroup(s, s.FocusedGroupID)
}

// GetGroup returns a copy of the group with id, or nil.
func GetGroup(s *State, id string) *models.Group {
	g, ok := find(s.Groups, id)
	if !ok {
		return nil
	}
	return &g
}

func FilteredGroupIDs(s *State) []string { return s.FilteredGroupIDs }

// FilteredGroups returns the groups allowed by the group filter.
func FilteredGroups(s *State) []models.Group {
	if s.FilteredGroupIDs == nil {
		return s.Groups
	}
	var out []models.Group
	for _, g := range s.Groups {
		if slices.Contains(s.FilteredGroupIDs, g.ID) {
			out = append(out, g)
		}
	}
	return out
}

// GetFeaturedGroups returns URI-scoped groups the user is not a member of.
var GetFeaturedGroups = store.Memo(func(s *State) []models.Group {
	var out []models.Group
	for _, g := range FilteredGroups(s) {
		if !g.IsMember && g.IsScopedToURI {
			out = append(out, g)
		}
	}
	return out
})

// GetInScopeGroups returns groups scoped to the current URI.
var GetInScopeGroups = store.Memo(func(s *State) []models.Group {
	var out []models.Group
	for _, g := range FilteredGroups(s) {
		if g.IsScopedToURI {
			out = append(out, g)
		}
	}
	return out
})

// FocusedGroupMembers returns the loaded members of the focused group, or
// nil when they have not been loaded.
func FocusedGroupMembers(s *State) []models.GroupMember { return s.FocusedGroupMembers }

// GetMyGroups returns the groups the logged-in user belongs to. Logged-out
// users have none, even though public groups report membership.
var GetMyGroups = store.Memo(func(root *store.RootState) []models.Group {
	if !session.IsLoggedIn(store.SliceOf[session.State](root, session.Namespace)) {
		return nil
	}
	var out []models.Group
	for _, g := range FilteredGroups(store.SliceOf[State](root, Namespace)) {
		if g.IsMember {
			out = append(out, g)
		}
	}
	return out
})

// GetCurrentlyViewingGroups returns groups that are neither featured nor
// the user's own.
var GetCurrentlyViewingGroups = store.Memo(func(root *store.RootState) []models.Group {
	s := store.SliceOf[State](root, Namespace)
	mine := GetMyGroups(root)
	featured := GetFeaturedGroups(s)
	contains := func(gs []models.Group, id string) bool {
		return slices.ContainsFunc(gs, func(g models.Group) bool { return g.ID == id })
	}
	var out []models.Group
	for _, g := range FilteredGroups(s) {
		if !contains(mine, g.ID) && !contains(featured, g.ID) {
			out = append(out, g)
		}
	}
	return out
})

// NewModule returns the groups store module. It reads the session module.
func NewModule() store.Module {
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"clearGroups":  store.Act0(ClearGroups),
			"filterGroups": store.Act1(FilterGroups),
			"focusGroup":   store.Act1(FocusGroup),
			"loadGroups":   store.Act1(LoadGroups),
			"loadMembers":  store.Act1(LoadMembers),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"allGroups":           store.Sel0(AllGroups),
			"filteredGroupIds":    store.Sel0(FilteredGroupIDs),
			"filteredGroups":      store.Sel0(FilteredGroups),
			"focusedGroup":        store.Sel0(FocusedGroup),
			"focusedGroupId":      store.Sel0(FocusedGroupID),
			"focusedGroupMembers": store.Sel0(FocusedGroupMembers),
			"getFeaturedGroups":   store.Sel0(GetFeaturedGroups),
			"getGroup":            store.Sel1(GetGroup),
			"getInScopeGroups":    store.Sel0(GetInScopeGroups),
		},
		RootSelectors: map[string]store.RootSelector{
			"getCurrentlyViewingGroups": store.Root0(GetCurrentlyViewingGroups),
			"getMyGroups":               store.Root0(GetMyGroups),
		},
	})
}
