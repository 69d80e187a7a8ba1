package groups_test

import (
	"testing"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/groups"
	"github.com/lalith-99/marginalia/internal/sidebar/session"
	"github.com/lalith-99/marginalia/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGroups = []models.Group{
	{ID: "public", Name: "Public", Type: "open", IsMember: true},
	{ID: "mine", Name: "Mine", Type: "private", IsMember: true, IsScopedToURI: true},
	{ID: "featured", Name: "Featured", Type: "restricted", IsScopedToURI: true},
	{ID: "viewing", Name: "Viewing", Type: "open"},
}

func newStore(t *testing.T, args ...any) *store.Store {
	t.Helper()
	s, err := store.New([]store.Module{groups.NewModule(), session.NewModule()}, store.Env{}, args...)
	require.NoError(t, err)
	return s
}

func state(s *store.Store) *groups.State {
	return store.SliceOf[groups.State](s.State(), groups.Namespace)
}

func ids(gs []models.Group) []string {
	out := make([]string, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.ID)
	}
	return out
}

func TestLoadGroups_FocusesFirst(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))

	assert.Equal(t, "public", groups.FocusedGroupID(state(s)))
	assert.Equal(t, "Public", groups.FocusedGroup(state(s)).Name)
}

func TestLoadGroups_KeepsFocusWhenStillPresent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))
	require.NoError(t, s.Dispatch(groups.FocusGroup("viewing")))

	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups[2:])))
	assert.Equal(t, "viewing", groups.FocusedGroupID(state(s)))

	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups[:2])))
	assert.Equal(t, "public", groups.FocusedGroupID(state(s)))
}

func TestFocusGroup(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))
	require.NoError(t, s.Dispatch(groups.LoadMembers([]models.GroupMember{{UserID: "acct:a@example.com"}})))

	require.NoError(t, s.Dispatch(groups.FocusGroup("mine")))

	assert.Equal(t, "mine", groups.FocusedGroupID(state(s)))
	assert.Nil(t, groups.FocusedGroupMembers(state(s)), "members are reset when focus moves")
}

func TestFocusGroup_NotLoaded(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))

	err := s.Dispatch(groups.FocusGroup("missing"))

	assert.ErrorIs(t, err, groups.ErrGroupNotLoaded)
	assert.Equal(t, "public", groups.FocusedGroupID(state(s)))
}

func TestLoadMembers_RequiresFocus(t *testing.T) {
	s := newStore(t)

	err := s.Dispatch(groups.LoadMembers([]models.GroupMember{{UserID: "acct:a@example.com"}}))

	assert.ErrorIs(t, err, groups.ErrNoFocusedGroup)
}

func TestFilterGroups(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))

	require.NoError(t, s.Dispatch(groups.FilterGroups([]string{"featured", "viewing"})))

	st := state(s)
	assert.Equal(t, []string{"featured", "viewing"}, ids(groups.FilteredGroups(st)))
	assert.Equal(t, "featured", groups.FocusedGroupID(st), "focus moves into the filter")

	require.NoError(t, s.Dispatch(groups.FilterGroups([]string{"unknown"})))
	assert.Nil(t, groups.FilteredGroupIDs(state(s)))
	assert.Len(t, groups.FilteredGroups(state(s)), len(testGroups))
}

func TestClearGroups(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))

	require.NoError(t, s.Dispatch(groups.ClearGroups()))

	st := state(s)
	assert.Empty(t, groups.AllGroups(st))
	assert.Nil(t, groups.FocusedGroup(st))
}

func TestGroupCategories(t *testing.T) {
	s := newStore(t, models.Profile{UserID: "acct:me@example.com"})
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))

	st := state(s)
	assert.Equal(t, []string{"featured"}, ids(groups.GetFeaturedGroups(st)))
	assert.Equal(t, []string{"mine", "featured"}, ids(groups.GetInScopeGroups(st)))
	assert.Equal(t, []string{"public", "mine"}, ids(groups.GetMyGroups(s.State())))
	assert.Equal(t, []string{"viewing"}, ids(groups.GetCurrentlyViewingGroups(s.State())))
}

func TestGetMyGroups_LoggedOut(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))

	assert.Empty(t, groups.GetMyGroups(s.State()))
	assert.Equal(t, []string{"public", "mine", "viewing"}, ids(groups.GetCurrentlyViewingGroups(s.State())))
}

func TestGetGroup(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Dispatch(groups.LoadGroups(testGroups)))

	assert.Equal(t, "Viewing", groups.GetGroup(state(s), "viewing").Name)
	assert.Nil(t, groups.GetGroup(state(s), "missing"))
}
