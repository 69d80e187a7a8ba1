package selection

import (
	"maps"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/store"
)

// FiltersNamespace is the namespace of the filters module.
const FiltersNamespace = "filters"

// FilterKey names a recognized filter.
type FilterKey string

const FilterUser FilterKey = "user"

// FilterOption is an applied filter value.
type FilterOption struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

// FilterState holds three sources of filtering: filters set through the
// filter UI, focus filters from settings that can be toggled with
// FocusActive, and a free-text query.
type FilterState struct {
	Filters      map[FilterKey]FilterOption
	FocusActive  bool
	FocusFilters map[FilterKey]FilterOption
	Query        string
}

// FocusState summarizes focus mode.
type FocusState struct {
	Active      bool
	Configured  bool
	DisplayName string
}

type SetFilterAction struct {
	Name   FilterKey
	Option FilterOption
}

func (SetFilterAction) ActionType() string { return "SET_FILTER" }

type SetFilterQueryAction struct {
	Query string
}

func (SetFilterQueryAction) ActionType() string { return "SET_FILTER_QUERY" }

// SetFocusModeAction sets focus mode to Active, or toggles it when Active
// is nil.
type SetFocusModeAction struct {
	Active *bool
}

func (SetFocusModeAction) ActionType() string { return "SET_FOCUS_MODE" }

type ChangeFocusModeUserAction struct {
	User models.FocusUser
}

func (ChangeFocusModeUserAction) ActionType() string { return "CHANGE_FOCUS_MODE_USER" }

// validFocusUser reports whether u identifies a user to focus on.
func validFocusUser(u *models.FocusUser) bool {
	return u != nil && (u.Username != "" || u.UserID != "")
}

func focusFilters(u *models.FocusUser) map[FilterKey]FilterOption {
	if !validFocusUser(u) {
		return map[FilterKey]FilterOption{}
	}
	value := u.Username
	if value == "" {
		value = u.UserID
	}
	display := u.DisplayName
	if display == "" {
		display = value
	}
	return map[FilterKey]FilterOption{FilterUser: {Value: value, Display: display}}
}

func initialFilters(args ...any) FilterState {
	settings, _ := store.FindArg[models.SidebarSettings](args)
	return FilterState{
		Filters:      map[FilterKey]FilterOption{},
		FocusActive:  validFocusUser(settings.Focus.User),
		FocusFilters: focusFilters(settings.Focus.User),
		Query:        settings.Query,
	}
}

func reduceFilters(s *FilterState, action store.Action) (*FilterState, error) {
	switch a := action.(type) {
	case ChangeFocusModeUserAction:
		next := *s
		next.FocusActive = validFocusUser(&a.User)
		next.FocusFilters = focusFilters(&a.User)
		return &next, nil

	case SetFilterAction:
		next := *s
		next.Filters = maps.Clone(s.Filters)
		if a.Option.Value == "" {
			delete(next.Filters, a.Name)
		} else {
			next.Filters[a.Name] = a.Option
		}
		return &next, nil

	case SetFilterQueryAction:
		next := *s
		next.Query = a.Query
		return &next, nil

	case SetFocusModeAction:
		next := *s
		if a.Active != nil {
			next.FocusActive = *a.Active
		} else {
			next.FocusActive = !s.FocusActive
		}
		return &next, nil

	case ClearSelectionAction:
		next := *s
		next.Filters = map[FilterKey]FilterOption{}
		next.FocusActive = false
		next.Query = ""
		return &next, nil
	}
	return nil, nil
}

// ChangeFocusModeUser focuses on user and activates focus mode when user
// is valid.
func ChangeFocusModeUser(user models.FocusUser) ChangeFocusModeUserAction {
	return ChangeFocusModeUserAction{User: user}
}

// SetFilter applies a filter. An empty value removes it. Overriding a
// focus filter turns focus mode off first.
func SetFilter(name FilterKey, option FilterOption) store.Thunk {
	return func(api store.ThunkAPI) error {
		s := store.SliceOf[FilterState](api.State(), FiltersNamespace)
		if _, ok := s.FocusFilters[name]; ok {
			off := false
			if err := api.Dispatch(SetFocusModeAction{Active: &off}); err != nil {
				return err
			}
		}
		return api.Dispatch(SetFilterAction{Name: name, Option: option})
	}
}

func SetFilterQuery(query string) SetFilterQueryAction {
	return SetFilterQueryAction{Query: query}
}

// ToggleFocusMode sets focus mode to *active, or inverts it when active is
// nil.
func ToggleFocusMode(active *bool) SetFocusModeAction {
	return SetFocusModeAction{Active: active}
}

func FilterQuery(s *FilterState) string { return s.Query }

func GetFocusFilters(s *FilterState) map[FilterKey]FilterOption { return s.FocusFilters }

var GetFocusState = store.Memo(func(s *FilterState) FocusState {
	user, ok := s.FocusFilters[FilterUser]
	return FocusState{
		Active:      s.FocusActive,
		Configured:  ok,
		DisplayName: user.Display,
	}
})

// GetFilters returns every applied filter. Active focus filters are
// included; UI filters win on key collisions.
var GetFilters = store.Memo(func(s *FilterState) map[FilterKey]FilterOption {
	out := map[FilterKey]FilterOption{}
	if s.FocusActive {
		maps.Copy(out, s.FocusFilters)
	}
	maps.Copy(out, s.Filters)
	return out
})

// GetFilter returns the applied filter named name, or nil.
func GetFilter(s *FilterState, name FilterKey) *FilterOption {
	opt, ok := GetFilters(s)[name]
	if !ok {
		return nil
	}
	return &opt
}

// GetFilterValues maps each applied filter to its value.
var GetFilterValues = store.Memo(func(s *FilterState) map[FilterKey]string {
	out := map[FilterKey]string{}
	for k, opt := range GetFilters(s) {
		out[k] = opt.Value
	}
	return out
})

// HasAppliedFilter reports whether a query or any filter is applied.
func HasAppliedFilter(s *FilterState) bool {
	return s.Query != "" || len(GetFilters(s)) > 0
}

// NewFiltersModule returns the filters store module.
func NewFiltersModule() store.Module {
	return store.NewModule(store.ModuleConfig[FilterState]{
		Namespace:    FiltersNamespace,
		InitialState: initialFilters,
		Reducer:      reduceFilters,
		ActionCreators: map[string]store.ActionCreator{
			"changeFocusModeUser": store.Act1(ChangeFocusModeUser),
			"setFilter":           store.Act2(SetFilter),
			"setFilterQuery":      store.Act1(SetFilterQuery),
			"toggleFocusMode":     store.Act1(ToggleFocusMode),
		},
		Selectors: map[string]store.SelectorFunc[FilterState]{
			"filterQuery":      store.Sel0(FilterQuery),
			"focusState":       store.Sel0(GetFocusState),
			"getFilter":        store.Sel1(GetFilter),
			"getFilters":       store.Sel0(GetFilters),
			"getFilterValues":  store.Sel0(GetFilterValues),
			"getFocusFilters":  store.Sel0(GetFocusFilters),
			"hasAppliedFilter": store.Sel0(HasAppliedFilter),
		},
	})
}
