package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar"
	"github.com/lalith-99/marginalia/internal/sidebar/drafts"
	"github.com/lalith-99/marginalia/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memDraftStore struct {
	mu      sync.Mutex
	records map[string][]drafts.Record
	saves   int
	loadErr error
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{records: map[string][]drafts.Record{}}
}

func (m *memDraftStore) Save(_ context.Context, userID string, records []drafts.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if len(records) == 0 {
		delete(m.records, userID)
		return nil
	}
	m.records[userID] = records
	return nil
}

func (m *memDraftStore) Load(_ context.Context, userID string) ([]drafts.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.records[userID], nil
}

func (m *memDraftStore) saved(userID string) ([]drafts.Record, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[userID], m.saves
}

func newSidebar(t *testing.T) *sidebar.Store {
	t.Helper()
	sb, err := sidebar.New(models.SidebarSettings{}, store.Env{Scheduler: store.NewManualScheduler()})
	require.NoError(t, err)
	return sb
}

func TestRestore(t *testing.T) {
	ds := newMemDraftStore()
	ds.records["acct:me@example.com"] = []drafts.Record{
		{Annotation: models.AnnotationID{ID: "a1"}, Changes: drafts.Changes{Text: "draft one"}},
		{Annotation: models.AnnotationID{Tag: "t9"}, Changes: drafts.Changes{Text: "draft two", Tags: []string{"x"}}},
	}
	sb := newSidebar(t)

	n, err := NewDraftSyncer(sb, ds, "acct:me@example.com", zap.NewNop()).Restore(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, sb.CountDrafts())
	d := sb.GetDraft(models.AnnotationID{Tag: "t9"})
	require.NotNil(t, d)
	assert.Equal(t, "draft two", d.Text)
}

func TestRestore_NothingSaved(t *testing.T) {
	sb := newSidebar(t)

	n, err := NewDraftSyncer(sb, newMemDraftStore(), "acct:me@example.com", zap.NewNop()).Restore(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, sb.CountDrafts())
}

func TestRestore_LoadError(t *testing.T) {
	ds := newMemDraftStore()
	ds.loadErr = errors.New("redis down")

	_, err := NewDraftSyncer(newSidebar(t), ds, "acct:me@example.com", zap.NewNop()).Restore(context.Background())

	assert.ErrorIs(t, err, ds.loadErr)
}

func TestRun_SavesOnChange(t *testing.T) {
	ds := newMemDraftStore()
	sb := newSidebar(t)
	syncer := NewDraftSyncer(sb, ds, "acct:me@example.com", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()

	// Run subscribes asynchronously, so keep editing until a save lands.
	ann := models.AnnotationID{ID: "a1"}
	i := 0
	require.Eventually(t, func() bool {
		i++
		if err := sb.CreateDraft(ann, drafts.Changes{Text: fmt.Sprintf("edit %d", i)}); err != nil {
			return false
		}
		_, saves := ds.saved("acct:me@example.com")
		return saves > 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		records, _ := ds.saved("acct:me@example.com")
		return len(records) == 1 && records[0].Changes.Text == fmt.Sprintf("edit %d", i)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, sb.Dispatch(drafts.DiscardAllDrafts()))
	assert.Eventually(t, func() bool {
		records, _ := ds.saved("acct:me@example.com")
		return records == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
