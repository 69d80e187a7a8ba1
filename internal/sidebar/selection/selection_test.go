package selection_test

import (
	"testing"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/annotations"
	"github.com/lalith-99/marginalia/internal/sidebar/route"
	"github.com/lalith-99/marginalia/internal/sidebar/selection"
	"github.com/lalith-99/marginalia/internal/sidebar/session"
	"github.com/lalith-99/marginalia/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, settings models.SidebarSettings) *store.Store {
	t.Helper()
	s, err := store.New([]store.Module{
		annotations.NewModule(annotations.Options{}),
		route.NewModule(),
		selection.NewModule(),
		selection.NewFiltersModule(),
		session.NewModule(),
	}, store.Env{Scheduler: store.NewManualScheduler()}, settings)
	require.NoError(t, err)
	return s
}

func sel(s *store.Store) *selection.State {
	return store.SliceOf[selection.State](s.State(), selection.Namespace)
}

func filters(s *store.Store) *selection.FilterState {
	return store.SliceOf[selection.FilterState](s.State(), selection.FiltersNamespace)
}

func withSelector(id string) models.Annotation {
	return models.Annotation{
		ID:     id,
		Target: []models.Target{{Source: "https://example.com", Selector: []models.Selector{{Type: "TextQuoteSelector", Exact: "x"}}}},
	}
}

func TestInitialState(t *testing.T) {
	s := newStore(t, models.SidebarSettings{Annotations: "a1"})

	st := sel(s)
	assert.Equal(t, []string{"a1"}, selection.SelectedAnnotations(st))
	assert.True(t, selection.ExpandedMap(st)["a1"])
	assert.Equal(t, selection.TabAnnotation, selection.SelectedTab(st))
	assert.Equal(t, selection.SortLocation, selection.CurrentSortKey(st))
}

func TestInitialState_QueryOverridesSelection(t *testing.T) {
	s := newStore(t, models.SidebarSettings{Annotations: "a1", Query: "tag:foo"})

	assert.Empty(t, selection.SelectedAnnotations(sel(s)))
	assert.Equal(t, "tag:foo", selection.FilterQuery(filters(s)))
}

func TestSelectAnnotations(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})
	require.NoError(t, s.Dispatch(selection.SetForcedVisible("old", true)))

	require.NoError(t, s.Dispatch(selection.SelectAnnotations([]string{"b", "a"})))

	st := sel(s)
	assert.Equal(t, []string{"a", "b"}, selection.SelectedAnnotations(st))
	assert.True(t, selection.HasSelectedAnnotations(st))
	assert.Empty(t, selection.ForcedVisibleThreads(st), "selecting clears forced-visible threads")
}

func TestToggleSelectedAnnotations(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})
	require.NoError(t, s.Dispatch(selection.SelectAnnotations([]string{"a", "b"})))

	require.NoError(t, s.Dispatch(selection.ToggleSelectedAnnotations([]string{"b", "c"})))

	assert.Equal(t, []string{"a", "c"}, selection.SelectedAnnotations(sel(s)))
}

func TestSelectTab_ResetsSortKey(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})
	require.NoError(t, s.Dispatch(selection.SetSortKey(selection.SortNewest)))

	require.NoError(t, s.Dispatch(selection.SelectTab(selection.TabAnnotation)))
	assert.Equal(t, selection.SortNewest, selection.CurrentSortKey(sel(s)), "same tab keeps the sort key")

	require.NoError(t, s.Dispatch(selection.SelectTab(selection.TabNote)))
	st := sel(s)
	assert.Equal(t, selection.SortOldest, selection.CurrentSortKey(st))
	assert.Equal(t, []selection.SortKey{selection.SortNewest, selection.SortOldest}, selection.SortKeys(st))
}

func TestExpandedAndFocusRequest(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})

	require.NoError(t, s.Dispatch(selection.SetExpanded("a", true)))
	require.NoError(t, s.Dispatch(selection.SetExpanded("b", false)))
	require.NoError(t, s.Dispatch(selection.SetAnnotationFocusRequest("a")))

	st := sel(s)
	assert.Equal(t, map[string]bool{"a": true, "b": false}, selection.ExpandedMap(st))
	assert.Equal(t, "a", selection.AnnotationFocusRequest(st))

	require.NoError(t, s.Dispatch(selection.ClearAnnotationFocusRequest()))
	assert.Empty(t, selection.AnnotationFocusRequest(sel(s)))
}

func TestFirstLoadOfPageNotesOpensNotesTab(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})

	require.NoError(t, s.Dispatch(annotations.AddAnnotations([]models.Annotation{
		{ID: "n1", Text: "note"},
		{ID: "r1", References: []string{"n1"}},
	}, annotations.DefaultAnchoringTimeout)))

	assert.Equal(t, selection.TabNote, selection.SelectedTab(sel(s)))
}

func TestLaterLoadDoesNotSwitchTab(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})
	require.NoError(t, s.Dispatch(annotations.AddAnnotations([]models.Annotation{withSelector("a")}, annotations.DefaultAnchoringTimeout)))
	require.Equal(t, selection.TabAnnotation, selection.SelectedTab(sel(s)))

	require.NoError(t, s.Dispatch(annotations.AddAnnotations([]models.Annotation{{ID: "n1"}}, annotations.DefaultAnchoringTimeout)))

	assert.Equal(t, selection.TabAnnotation, selection.SelectedTab(sel(s)))
}

func TestRemoveAnnotations(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})
	require.NoError(t, s.Dispatch(annotations.AddAnnotations([]models.Annotation{withSelector("a"), withSelector("b")}, annotations.DefaultAnchoringTimeout)))
	require.NoError(t, s.Dispatch(annotations.UpdateAnchorStatus(map[string]annotations.AnchorStatus{
		"t1": annotations.StatusOrphan,
		"t2": annotations.StatusAnchored,
	})))
	require.NoError(t, s.Dispatch(selection.SelectAnnotations([]string{"a", "b"})))
	require.NoError(t, s.Dispatch(selection.SetExpanded("t1", true)))
	require.NoError(t, s.Dispatch(selection.SelectTab(selection.TabOrphan)))

	require.NoError(t, s.Dispatch(annotations.RemoveAnnotations([]models.AnnotationID{{ID: "a", Tag: "t1"}})))

	st := sel(s)
	assert.Equal(t, []string{"b"}, selection.SelectedAnnotations(st))
	assert.NotContains(t, selection.ExpandedMap(st), "t1")
	assert.Equal(t, selection.TabAnnotation, selection.SelectedTab(st), "no orphans left to show")
}

func TestSetFilter(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})
	require.NoError(t, s.Dispatch(selection.SelectAnnotations([]string{"a"})))
	require.NoError(t, s.Dispatch(selection.SetExpanded("a", true)))

	require.NoError(t, s.Dispatch(selection.SetFilter(selection.FilterUser, selection.FilterOption{Value: "bob", Display: "Bob"})))

	f := filters(s)
	assert.Equal(t, &selection.FilterOption{Value: "bob", Display: "Bob"}, selection.GetFilter(f, selection.FilterUser))
	assert.Equal(t, map[selection.FilterKey]string{selection.FilterUser: "bob"}, selection.GetFilterValues(f))
	assert.True(t, selection.HasAppliedFilter(f))
	assert.Empty(t, selection.SelectedAnnotations(sel(s)))
	assert.Empty(t, selection.ExpandedMap(sel(s)))

	require.NoError(t, s.Dispatch(selection.SetFilter(selection.FilterUser, selection.FilterOption{})))
	assert.False(t, selection.HasAppliedFilter(filters(s)))
}

func TestFocusMode(t *testing.T) {
	s := newStore(t, models.SidebarSettings{
		Focus: models.FocusConfig{User: &models.FocusUser{Username: "alice", DisplayName: "Alice"}},
	})

	f := filters(s)
	assert.Equal(t, selection.FocusState{Active: true, Configured: true, DisplayName: "Alice"}, selection.GetFocusState(f))
	assert.Equal(t, "alice", selection.GetFilter(f, selection.FilterUser).Value)

	require.NoError(t, s.Dispatch(selection.ToggleFocusMode(nil)))
	f = filters(s)
	assert.False(t, selection.GetFocusState(f).Active)
	assert.Nil(t, selection.GetFilter(f, selection.FilterUser))

	on := true
	require.NoError(t, s.Dispatch(selection.ToggleFocusMode(&on)))
	assert.True(t, selection.GetFocusState(filters(s)).Active)
}

func TestSetFilter_OverridesFocus(t *testing.T) {
	s := newStore(t, models.SidebarSettings{
		Focus: models.FocusConfig{User: &models.FocusUser{Username: "alice"}},
	})

	require.NoError(t, s.Dispatch(selection.SetFilter(selection.FilterUser, selection.FilterOption{Value: "bob", Display: "bob"})))

	f := filters(s)
	assert.False(t, f.FocusActive)
	assert.Equal(t, "bob", selection.GetFilter(f, selection.FilterUser).Value)
}

func TestChangeFocusModeUser(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})
	assert.False(t, selection.GetFocusState(filters(s)).Configured)

	require.NoError(t, s.Dispatch(selection.ChangeFocusModeUser(models.FocusUser{UserID: "acct:carol@example.com"})))

	f := filters(s)
	assert.Equal(t, selection.FocusState{Active: true, Configured: true, DisplayName: "acct:carol@example.com"}, selection.GetFocusState(f))

	require.NoError(t, s.Dispatch(selection.ChangeFocusModeUser(models.FocusUser{})))
	assert.False(t, selection.GetFocusState(filters(s)).Active)
}

func TestClearSelectionClearsFilters(t *testing.T) {
	s := newStore(t, models.SidebarSettings{Query: "foo"})
	require.NoError(t, s.Dispatch(selection.SetFilter(selection.FilterUser, selection.FilterOption{Value: "bob"})))

	require.NoError(t, s.Dispatch(selection.ClearSelection()))

	assert.False(t, selection.HasAppliedFilter(filters(s)))
}

func TestNamedSurface(t *testing.T) {
	s := newStore(t, models.SidebarSettings{})

	require.NoError(t, s.Invoke("selectAnnotations", []string{"x"}))
	require.NoError(t, s.Invoke("setFilterQuery", "hello"))

	got, err := s.Select("filterQuery")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = s.Select("sortKey")
	require.NoError(t, err)
	assert.Equal(t, selection.SortLocation, got)
}
