// Package route holds the sidebar's current view.
package route

import (
	"maps"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "route"

// Name identifies a view.
type Name string

const (
	Sidebar    Name = "sidebar"
	Annotation Name = "annotation"
	Stream     Name = "stream"
	Notebook   Name = "notebook"
)

// Valid reports whether n is a known view.
func (n Name) Valid() bool {
	switch n {
	case Sidebar, Annotation, Stream, Notebook:
		return true
	}
	return false
}

type State struct {
	Name   Name
	Params map[string]string
}

// ChangeRouteAction switches the active view.
type ChangeRouteAction struct {
	Name   Name
	Params map[string]string
}

func (ChangeRouteAction) ActionType() string { return "CHANGE_ROUTE" }

func initialState(args ...any) State {
	name := Sidebar
	if settings, ok := store.FindArg[models.SidebarSettings](args); ok && Name(settings.Route).Valid() {
		name = Name(settings.Route)
	}
	return State{Name: name, Params: map[string]string{}}
}

func reduce(s *State, a store.Action) (*State, error) {
	switch a := a.(type) {
	case ChangeRouteAction:
		next := *s
		next.Name = a.Name
		next.Params = maps.Clone(a.Params)
		if next.Params == nil {
			next.Params = map[string]string{}
		}
		return &next, nil
	}
	return nil, nil
}

// ChangeRoute switches to the view name with params.
func ChangeRoute(name Name, params map[string]string) ChangeRouteAction {
	return ChangeRouteAction{Name: name, Params: params}
}

// Route returns the current view.
func Route(s *State) Name { return s.Name }

// RouteParams returns the parameters of the current view.
func RouteParams(s *State) map[string]string { return s.Params }

// NewModule returns the route store module.
func NewModule() store.Module {
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"changeRoute": store.Act2(ChangeRoute),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"route":       store.Sel0(Route),
			"routeParams": store.Sel0(RouteParams),
		},
	})
}
