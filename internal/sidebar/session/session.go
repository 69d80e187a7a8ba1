// Package session holds the logged-in user's profile.
package session

import (
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/store"
)

const Namespace = "session"

type State struct {
	Profile models.Profile
}

// UpdateProfileAction replaces the profile.
type UpdateProfileAction struct {
	Profile models.Profile
}

func (UpdateProfileAction) ActionType() string { return "UPDATE_PROFILE" }

func initialState(args ...any) State {
	if p, ok := store.FindArg[models.Profile](args); ok {
		return State{Profile: p}
	}
	return State{}
}

func reduce(s *State, a store.Action) (*State, error) {
	switch a := a.(type) {
	case UpdateProfileAction:
		return &State{Profile: a.Profile}, nil
	}
	return nil, nil
}

// UpdateProfile sets the logged-in user's profile.
func UpdateProfile(p models.Profile) UpdateProfileAction {
	return UpdateProfileAction{Profile: p}
}

func Profile(s *State) models.Profile { return s.Profile }

// UserID returns the logged-in user's ID, or "" when logged out.
func UserID(s *State) string { return s.Profile.UserID }

func IsLoggedIn(s *State) bool { return s.Profile.UserID != "" }

// IsFeatureEnabled reports whether the named feature flag is on.
func IsFeatureEnabled(s *State, feature string) bool {
	return s.Profile.Features[feature]
}

// NewModule returns the session store module.
func NewModule() store.Module {
	return store.NewModule(store.ModuleConfig[State]{
		Namespace:    Namespace,
		InitialState: initialState,
		Reducer:      reduce,
		ActionCreators: map[string]store.ActionCreator{
			"updateProfile": store.Act1(UpdateProfile),
		},
		Selectors: map[string]store.SelectorFunc[State]{
			"profile":          store.Sel0(Profile),
			"userId":           store.Sel0(UserID),
			"isLoggedIn":       store.Sel0(IsLoggedIn),
			"isFeatureEnabled": store.Sel1(IsFeatureEnabled),
		},
	})
}
