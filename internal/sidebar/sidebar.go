// Package sidebar composes the sidebar's store modules into a single
// store and exposes their actions and selectors as typed methods.
package sidebar

import (
	"fmt"
	"sort"
	"time"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/activity"
	"github.com/lalith-99/marginalia/internal/sidebar/annotations"
	"github.com/lalith-99/marginalia/internal/sidebar/drafts"
	"github.com/lalith-99/marginalia/internal/sidebar/groups"
	"github.com/lalith-99/marginalia/internal/sidebar/realtime"
	"github.com/lalith-99/marginalia/internal/sidebar/route"
	"github.com/lalith-99/marginalia/internal/sidebar/selection"
	"github.com/lalith-99/marginalia/internal/sidebar/session"
	"github.com/lalith-99/marginalia/internal/store"
)

type options struct {
	profile          models.Profile
	anchoringTimeout time.Duration
}

// Option configures New.
type Option func(*options)

// WithProfile sets the profile the session starts with.
func WithProfile(p models.Profile) Option {
	return func(o *options) { o.profile = p }
}

// WithAnchoringTimeout overrides how long annotations may wait to anchor.
func WithAnchoringTimeout(d time.Duration) Option {
	return func(o *options) { o.anchoringTimeout = d }
}

// Store is the composed sidebar store.
type Store struct {
	*store.Store

	anchoringTimeout time.Duration
}

// New composes the sidebar store.
func New(settings models.SidebarSettings, env store.Env, opts ...Option) (*Store, error) {
	o := options{anchoringTimeout: annotations.DefaultAnchoringTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	modules := []store.Module{
		annotations.NewModule(annotations.Options{AnchoringTimeout: o.anchoringTimeout}),
		activity.NewModule(),
		drafts.NewModule(),
		selection.NewFiltersModule(),
		groups.NewModule(),
		realtime.NewModule(),
		route.NewModule(),
		selection.NewModule(),
		session.NewModule(),
	}
	s, err := store.New(modules, env, settings, o.profile)
	if err != nil {
		return nil, fmt.Errorf("compose sidebar store: %w", err)
	}
	return &Store{Store: s, anchoringTimeout: o.anchoringTimeout}, nil
}

func sliceOf[S any](s *Store, namespace string) *S {
	return store.SliceOf[S](s.State(), namespace)
}

func (s *Store) annotations() *annotations.State {
	return sliceOf[annotations.State](s, annotations.Namespace)
}

func (s *Store) drafts() *drafts.State { return sliceOf[drafts.State](s, drafts.Namespace) }

func (s *Store) realtime() *realtime.State {
	return sliceOf[realtime.State](s, realtime.Namespace)
}

func (s *Store) groups() *groups.State { return sliceOf[groups.State](s, groups.Namespace) }

func (s *Store) session() *session.State { return sliceOf[session.State](s, session.Namespace) }

// Annotations

// AddAnnotations adds or updates anns, flagging inserted records that fail
// to anchor within the configured timeout.
func (s *Store) AddAnnotations(anns []models.Annotation) error {
	return s.Dispatch(annotations.AddAnnotations(anns, s.anchoringTimeout))
}

// RemoveAnnotations removes the records matching stubs by ID or tag.
func (s *Store) RemoveAnnotations(stubs []models.AnnotationID) error {
	return s.Dispatch(annotations.RemoveAnnotations(stubs))
}

// ClearAnnotations empties the collection. The tag counter is kept.
func (s *Store) ClearAnnotations() error {
	return s.Dispatch(annotations.ClearAnnotations())
}

// UpdateAnchorStatus records anchoring results keyed by tag.
func (s *Store) UpdateAnchorStatus(updates map[string]annotations.AnchorStatus) error {
	return s.Dispatch(annotations.UpdateAnchorStatus(updates))
}

// UpdateFlagStatus sets whether the current user flagged annotation id.
func (s *Store) UpdateFlagStatus(id string, flagged bool) error {
	return s.Dispatch(annotations.UpdateFlagStatus(id, flagged))
}

// HideAnnotation marks annotation id as hidden by a moderator.
func (s *Store) HideAnnotation(id string) error {
	return s.Dispatch(annotations.HideAnnotation(id))
}

// UnhideAnnotation reverses HideAnnotation.
func (s *Store) UnhideAnnotation(id string) error {
	return s.Dispatch(annotations.UnhideAnnotation(id))
}

// AllAnnotations returns the collection in its stored order.
func (s *Store) AllAnnotations() []models.Annotation {
	return annotations.AllAnnotations(s.annotations())
}

// FindAnnotationByID returns the annotation with id, or nil.
func (s *Store) FindAnnotationByID(id string) *models.Annotation {
	return annotations.FindAnnotationByID(s.annotations(), id)
}

// AnnotationCount counts anchored top-level annotations.
func (s *Store) AnnotationCount() int { return annotations.AnnotationCount(s.annotations()) }

// NoteCount counts page notes.
func (s *Store) NoteCount() int { return annotations.NoteCount(s.annotations()) }

// OrphanCount counts annotations that failed to anchor.
func (s *Store) OrphanCount() int { return annotations.OrphanCount(s.annotations()) }

// IsWaitingToAnchorAnnotations reports whether any record is still anchoring.
func (s *Store) IsWaitingToAnchorAnnotations() bool {
	return annotations.IsWaitingToAnchorAnnotations(s.annotations())
}

// Drafts

// CreateDraft stores unsaved edits for ann, replacing any earlier draft.
func (s *Store) CreateDraft(ann models.AnnotationID, c drafts.Changes) error {
	return s.Dispatch(drafts.CreateDraft(ann, c))
}

// RemoveDraft drops the draft for ann.
func (s *Store) RemoveDraft(ann models.AnnotationID) error {
	return s.Dispatch(drafts.RemoveDraft(ann))
}

// DeleteNewAndEmptyDrafts discards drafts of unsaved, empty annotations
// and removes those annotations from the collection.
func (s *Store) DeleteNewAndEmptyDrafts() error {
	return s.Dispatch(drafts.DeleteNewAndEmptyDrafts())
}

// RestoreDrafts loads previously persisted drafts.
func (s *Store) RestoreDrafts(records []drafts.Record) error {
	return s.Dispatch(drafts.RestoreDrafts(records))
}

// GetDraft returns the draft for ann, or nil.
func (s *Store) GetDraft(ann models.AnnotationID) *drafts.Draft {
	return drafts.GetDraft(s.drafts(), ann)
}

// GetDraftIfNotEmpty is GetDraft that also returns nil for empty drafts.
func (s *Store) GetDraftIfNotEmpty(ann models.AnnotationID) *drafts.Draft {
	return drafts.GetDraftIfNotEmpty(s.drafts(), ann)
}

// CountDrafts returns the number of drafts held.
func (s *Store) CountDrafts() int { return drafts.CountDrafts(s.drafts()) }

// DraftSnapshot returns the drafts in a form RestoreDrafts accepts.
func (s *Store) DraftSnapshot() []drafts.Record { return drafts.Snapshot(s.drafts()) }

// Real-time updates

// ReceiveRealTimeUpdates stages pushed changes until ApplyPendingUpdates.
func (s *Store) ReceiveRealTimeUpdates(updated []models.Annotation, deleted []models.AnnotationID) error {
	return s.Dispatch(realtime.ReceiveRealTimeUpdates(updated, deleted))
}

// ClearPendingUpdates drops all staged changes without applying them.
func (s *Store) ClearPendingUpdates() error {
	return s.Dispatch(realtime.ClearPendingUpdates())
}

// PendingUpdates returns staged updates keyed by annotation ID.
func (s *Store) PendingUpdates() map[string]models.Annotation {
	return realtime.PendingUpdates(s.realtime())
}

// PendingDeletions returns the IDs of staged deletions.
func (s *Store) PendingDeletions() map[string]bool {
	return realtime.PendingDeletions(s.realtime())
}

// HasPendingDeletion reports whether a deletion of id is staged.
func (s *Store) HasPendingDeletion(id string) bool {
	return realtime.HasPendingDeletion(s.realtime(), id)
}

// PendingUpdateCount counts staged updates and deletions.
func (s *Store) PendingUpdateCount() int { return realtime.PendingUpdateCount(s.realtime()) }

// PendingMentionCount counts staged updates that mention the current user.
func (s *Store) PendingMentionCount() int { return realtime.PendingMentionCount(s.State()) }

// ApplyPendingUpdates merges staged updates into the collection, removes
// staged deletions and empties both queues.
func (s *Store) ApplyPendingUpdates() error {
	return s.Dispatch(ApplyPendingUpdates(s.anchoringTimeout))
}

// ApplyPendingUpdates returns a thunk that applies staged real-time
// changes. Updates are applied in ID order.
func ApplyPendingUpdates(anchoringTimeout time.Duration) store.Thunk {
	return func(api store.ThunkAPI) error {
		rt := store.SliceOf[realtime.State](api.State(), realtime.Namespace)

		ids := make([]string, 0, len(rt.PendingUpdates))
		for id := range rt.PendingUpdates {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if len(ids) > 0 {
			updates := make([]models.Annotation, 0, len(ids))
			for _, id := range ids {
				updates = append(updates, rt.PendingUpdates[id])
			}
			if err := api.Dispatch(annotations.AddAnnotations(updates, anchoringTimeout)); err != nil {
				return fmt.Errorf("apply pending updates: %w", err)
			}
		}

		deletions := make([]models.AnnotationID, 0, len(rt.PendingDeletions))
		for id := range rt.PendingDeletions {
			deletions = append(deletions, models.AnnotationID{ID: id})
		}
		if len(deletions) > 0 {
			sort.Slice(deletions, func(i, j int) bool { return deletions[i].ID < deletions[j].ID })
			if err := api.Dispatch(annotations.RemoveAnnotations(deletions)); err != nil {
				return fmt.Errorf("apply pending deletions: %w", err)
			}
		}
		return api.Dispatch(realtime.ClearPendingUpdates())
	}
}

// Groups

// LoadGroups replaces the known groups.
func (s *Store) LoadGroups(gs []models.Group) error { return s.Dispatch(groups.LoadGroups(gs)) }

// FocusGroup focuses group id. It must already be loaded.
func (s *Store) FocusGroup(id string) error { return s.Dispatch(groups.FocusGroup(id)) }

// LoadMembers sets the members of the focused group.
func (s *Store) LoadMembers(members []models.GroupMember) error {
	return s.Dispatch(groups.LoadMembers(members))
}

// FocusedGroupID returns the focused group ID, or "" if none.
func (s *Store) FocusedGroupID() string { return groups.FocusedGroupID(s.groups()) }

// FocusedGroup returns the focused group, or nil.
func (s *Store) FocusedGroup() *models.Group { return groups.FocusedGroup(s.groups()) }

// Route and session

// ChangeRoute switches the active view.
func (s *Store) ChangeRoute(name route.Name, params map[string]string) error {
	return s.Dispatch(route.ChangeRoute(name, params))
}

// Route returns the active view.
func (s *Store) Route() route.Name {
	return route.Route(sliceOf[route.State](s, route.Namespace))
}

// UpdateProfile replaces the current user's profile.
func (s *Store) UpdateProfile(p models.Profile) error {
	return s.Dispatch(session.UpdateProfile(p))
}

// Profile returns the current user's profile.
func (s *Store) Profile() models.Profile { return session.Profile(s.session()) }

// Activity

// IsLoading reports whether requests are in flight or annotations have
// not been fetched yet.
func (s *Store) IsLoading() bool {
	return activity.IsLoading(sliceOf[activity.State](s, activity.Namespace))
}

// Selection and filters

// SelectTab switches the annotations, notes or orphans tab.
func (s *Store) SelectTab(tab selection.Tab) error {
	return s.Dispatch(selection.SelectTab(tab))
}

// SelectedTab returns the active tab.
func (s *Store) SelectedTab() selection.Tab {
	return selection.SelectedTab(sliceOf[selection.State](s, selection.Namespace))
}

// SelectAnnotations narrows the sidebar to ids.
func (s *Store) SelectAnnotations(ids []string) error {
	return s.Dispatch(selection.SelectAnnotations(ids))
}

// SelectedAnnotations returns the selected IDs.
func (s *Store) SelectedAnnotations() []string {
	return selection.SelectedAnnotations(sliceOf[selection.State](s, selection.Namespace))
}

// SetFilter applies a filter. An empty value removes it.
func (s *Store) SetFilter(name selection.FilterKey, opt selection.FilterOption) error {
	return s.Dispatch(selection.SetFilter(name, opt))
}

// GetFilters returns the active filters.
func (s *Store) GetFilters() map[selection.FilterKey]selection.FilterOption {
	return selection.GetFilters(sliceOf[selection.FilterState](s, selection.FiltersNamespace))
}
