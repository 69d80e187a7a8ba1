package sidebar_test

import (
	"errors"
	"testing"
	"time"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar"
	"github.com/lalith-99/marginalia/internal/sidebar/annotations"
	"github.com/lalith-99/marginalia/internal/sidebar/drafts"
	"github.com/lalith-99/marginalia/internal/sidebar/metadata"
	"github.com/lalith-99/marginalia/internal/sidebar/route"
	"github.com/lalith-99/marginalia/internal/sidebar/selection"
	"github.com/lalith-99/marginalia/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSidebar(t *testing.T, opts ...sidebar.Option) (*sidebar.Store, *store.ManualScheduler) {
	t.Helper()
	sched := store.NewManualScheduler()
	sb, err := sidebar.New(models.SidebarSettings{}, store.Env{Scheduler: sched}, opts...)
	require.NoError(t, err)
	return sb, sched
}

func anchored(id, group string) models.Annotation {
	return models.Annotation{
		ID:    id,
		Group: group,
		Text:  "text " + id,
		Target: []models.Target{{
			Source:   "https://example.com",
			Selector: []models.Selector{{Type: "TextQuoteSelector", Exact: "quote"}},
		}},
	}
}

func TestEndToEnd(t *testing.T) {
	sb, _ := newSidebar(t)

	require.NoError(t, sb.AddAnnotations([]models.Annotation{{ID: "a1", Group: "g1", Text: "hello"}}))

	all := sb.AllAnnotations()
	require.Len(t, all, 1)
	assert.Equal(t, "t1", all[0].Tag)
	assert.False(t, metadata.IsOrphan(all[0]))

	require.NoError(t, sb.ReceiveRealTimeUpdates(nil, []models.AnnotationID{{ID: "a1"}}))
	assert.True(t, sb.PendingDeletions()["a1"])

	require.NoError(t, sb.RemoveAnnotations([]models.AnnotationID{{ID: "a1"}}))
	assert.Empty(t, sb.AllAnnotations())
	assert.False(t, sb.HasPendingDeletion("a1"))
}

func TestNew_RegistersEveryModule(t *testing.T) {
	sb, _ := newSidebar(t)

	for _, name := range []string{
		"addAnnotations", "createDraft", "focusGroup", "receiveRealTimeUpdates",
		"changeRoute", "updateProfile", "selectTab", "setFilter", "apiRequestStarted",
	} {
		assert.Contains(t, sb.ActionNames(), name)
	}
	for _, name := range []string{
		"annotationCount", "countDrafts", "focusedGroup", "pendingMentionCount",
		"route", "profile", "sortKey", "focusState", "isLoading", "getMyGroups",
	} {
		assert.Contains(t, sb.SelectorNames(), name)
	}
}

func TestDuplicateRegistrationIsRejected(t *testing.T) {
	modules := []store.Module{
		annotations.NewModule(annotations.Options{}),
		annotations.NewModule(annotations.Options{}),
	}
	_, err := store.New(modules, store.Env{})

	var dup *store.DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, store.KindNamespace, dup.Kind)
}

func TestAnchorTimeout(t *testing.T) {
	sb, sched := newSidebar(t, sidebar.WithAnchoringTimeout(200*time.Millisecond))
	require.NoError(t, sb.AddAnnotations([]models.Annotation{anchored("a", ""), anchored("b", "")}))
	require.True(t, sb.IsWaitingToAnchorAnnotations())

	sched.Advance(100 * time.Millisecond)
	require.NoError(t, sb.UpdateAnchorStatus(map[string]annotations.AnchorStatus{"t1": annotations.StatusAnchored}))
	sched.Advance(100 * time.Millisecond)

	assert.False(t, sb.IsWaitingToAnchorAnnotations())
	assert.False(t, sb.FindAnnotationByID("a").AnchorTimeout)
	assert.True(t, sb.FindAnnotationByID("b").AnchorTimeout)
	assert.Nil(t, sb.FindAnnotationByID("b").Orphan, "a timeout does not make an annotation an orphan")
}

func TestTagsAreUniqueAcrossClears(t *testing.T) {
	sb, _ := newSidebar(t)
	seen := map[string]bool{}

	for round := 0; round < 3; round++ {
		require.NoError(t, sb.AddAnnotations([]models.Annotation{{Text: "a"}, {Text: "b"}}))
		for _, ann := range sb.AllAnnotations() {
			assert.False(t, seen[ann.Tag], "tag %s reused", ann.Tag)
			seen[ann.Tag] = true
		}
		require.NoError(t, sb.ClearAnnotations())
	}
	assert.Len(t, seen, 6)
}

func TestAddIsIdempotent(t *testing.T) {
	sb, _ := newSidebar(t)
	batch := []models.Annotation{anchored("a", "g1"), anchored("b", "g1")}

	require.NoError(t, sb.AddAnnotations(batch))
	first := sb.AllAnnotations()
	require.NoError(t, sb.AddAnnotations(batch))

	assert.ElementsMatch(t, first, sb.AllAnnotations())
}

func TestPendingDeletionPrecedence(t *testing.T) {
	sb, _ := newSidebar(t)
	require.NoError(t, sb.AddAnnotations([]models.Annotation{anchored("x", "")}))

	require.NoError(t, sb.ReceiveRealTimeUpdates([]models.Annotation{anchored("x", "")}, nil))
	require.NoError(t, sb.ReceiveRealTimeUpdates(nil, []models.AnnotationID{{ID: "x"}}))

	assert.True(t, sb.HasPendingDeletion("x"))
	assert.NotContains(t, sb.PendingUpdates(), "x")
}

func TestApplyPendingUpdates(t *testing.T) {
	sb, _ := newSidebar(t)
	require.NoError(t, sb.AddAnnotations([]models.Annotation{anchored("keep", ""), anchored("gone", "")}))

	edited := anchored("keep", "")
	edited.Text = "edited"
	require.NoError(t, sb.ReceiveRealTimeUpdates(
		[]models.Annotation{edited, anchored("new", "")},
		[]models.AnnotationID{{ID: "gone"}},
	))
	require.Equal(t, 3, sb.PendingUpdateCount())

	require.NoError(t, sb.ApplyPendingUpdates())

	assert.Equal(t, 0, sb.PendingUpdateCount())
	assert.Nil(t, sb.FindAnnotationByID("gone"))
	assert.Equal(t, "edited", sb.FindAnnotationByID("keep").Text)
	assert.Equal(t, "t1", sb.FindAnnotationByID("keep").Tag)
	assert.Equal(t, "t3", sb.FindAnnotationByID("new").Tag)
}

func TestDraftEmptiness(t *testing.T) {
	sb, _ := newSidebar(t)
	require.NoError(t, sb.AddAnnotations([]models.Annotation{{Text: ""}}))
	tag := sb.AllAnnotations()[0].Tag

	require.NoError(t, sb.CreateDraft(models.AnnotationID{Tag: tag}, drafts.Changes{IsPrivate: true}))
	assert.NotNil(t, sb.GetDraft(models.AnnotationID{Tag: tag}))
	assert.Nil(t, sb.GetDraftIfNotEmpty(models.AnnotationID{Tag: tag}))

	require.NoError(t, sb.DeleteNewAndEmptyDrafts())

	assert.Equal(t, 0, sb.CountDrafts())
	assert.Empty(t, sb.AllAnnotations())
}

func TestFocusGroupClearsPendingUpdates(t *testing.T) {
	sb, _ := newSidebar(t)
	require.NoError(t, sb.LoadGroups([]models.Group{{ID: "g1"}, {ID: "g2"}}))
	require.NoError(t, sb.ReceiveRealTimeUpdates([]models.Annotation{anchored("a", "g1")}, nil))
	require.Equal(t, 1, sb.PendingUpdateCount())

	require.NoError(t, sb.FocusGroup("g2"))

	assert.Equal(t, "g2", sb.FocusedGroupID())
	assert.Equal(t, 0, sb.PendingUpdateCount())
}

func TestPendingMentions(t *testing.T) {
	sb, _ := newSidebar(t, sidebar.WithProfile(models.Profile{UserID: "acct:me@example.com"}))
	ann := anchored("a", "")
	ann.Mentions = []models.Mention{{UserID: "acct:me@example.com", Username: "me"}}

	require.NoError(t, sb.ReceiveRealTimeUpdates([]models.Annotation{ann}, nil))

	assert.Equal(t, 1, sb.PendingMentionCount())
}

func TestRouteAndSelection(t *testing.T) {
	sb, _ := newSidebar(t)

	require.NoError(t, sb.ChangeRoute(route.Notebook, map[string]string{"group": "g1"}))
	require.NoError(t, sb.SelectTab(selection.TabOrphan))
	require.NoError(t, sb.SelectAnnotations([]string{"a"}))
	require.NoError(t, sb.SetFilter(selection.FilterUser, selection.FilterOption{Value: "bob"}))

	assert.Equal(t, route.Notebook, sb.Route())
	assert.Equal(t, selection.TabOrphan, sb.SelectedTab())
	assert.Empty(t, sb.SelectedAnnotations(), "setting a filter clears the selection")
	assert.Equal(t, "bob", sb.GetFilters()[selection.FilterUser].Value)
	assert.True(t, sb.IsLoading())
}

func TestUpdateProfile(t *testing.T) {
	sb, _ := newSidebar(t)

	require.NoError(t, sb.UpdateProfile(models.Profile{UserID: "acct:me@example.com"}))

	assert.Equal(t, "acct:me@example.com", sb.Profile().UserID)
}
