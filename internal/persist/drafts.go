// Package persist keeps sidebar drafts across restarts.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lalith-99/marginalia/internal/sidebar"
	"github.com/lalith-99/marginalia/internal/sidebar/drafts"
	"github.com/lalith-99/marginalia/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DraftStore saves and loads a user's drafts.
type DraftStore interface {
	Save(ctx context.Context, userID string, records []drafts.Record) error
	// Load returns nil when nothing was saved for userID.
	Load(ctx context.Context, userID string) ([]drafts.Record, error)
}

// RedisDraftStore keeps each user's drafts as one JSON value.
type RedisDraftStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisDraftStore(rdb *redis.Client, prefix string) *RedisDraftStore {
	return &RedisDraftStore{rdb: rdb, prefix: prefix}
}

func (r *RedisDraftStore) key(userID string) string {
	return r.prefix + ":" + userID
}

func (r *RedisDraftStore) Save(ctx context.Context, userID string, records []drafts.Record) error {
	if len(records) == 0 {
		if err := r.rdb.Del(ctx, r.key(userID)).Err(); err != nil {
			return fmt.Errorf("delete drafts: %w", err)
		}
		return nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(userID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save drafts: %w", err)
	}
	return nil
}

func (r *RedisDraftStore) Load(ctx context.Context, userID string) ([]drafts.Record, error) {
	payload, err := r.rdb.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	var records []drafts.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	return records, nil
}

// DraftSyncer writes the sidebar's drafts to a DraftStore whenever they
// change. Saves happen on the goroutine running Run, never inside a
// dispatch.
type DraftSyncer struct {
	sb     *sidebar.Store
	ds     DraftStore
	userID string
	logger *zap.Logger

	changed chan struct{}
}

func NewDraftSyncer(sb *sidebar.Store, ds DraftStore, userID string, logger *zap.Logger) *DraftSyncer {
	return &DraftSyncer{
		sb:      sb,
		ds:      ds,
		userID:  userID,
		logger:  logger,
		changed: make(chan struct{}, 1),
	}
}

// Restore loads saved drafts into the sidebar.
func (d *DraftSyncer) Restore(ctx context.Context) (int, error) {
	records, err := d.ds.Load(ctx, d.userID)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := d.sb.RestoreDrafts(records); err != nil {
		return 0, fmt.Errorf("restore drafts: %w", err)
	}
	return len(records), nil
}

// Run saves drafts after every change until ctx is done. The last change
// seen before ctx ends is flushed with a fresh context.
func (d *DraftSyncer) Run(ctx context.Context) error {
	unsubscribe := store.Watch(d.sb.Store, func() *drafts.State {
		return store.SliceOf[drafts.State](d.sb.State(), drafts.Namespace)
	}, func(_, _ *drafts.State) {
		select {
		case d.changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			select {
			case <-d.changed:
				if err := d.save(context.Background()); err != nil {
					return err
				}
			default:
			}
			return nil
		case <-d.changed:
			if err := d.save(ctx); err != nil {
				d.logger.Warn("failed to save drafts", zap.Error(err))
			}
		}
	}
}

func (d *DraftSyncer) save(ctx context.Context) error {
	records := d.sb.DraftSnapshot()
	if err := d.ds.Save(ctx, d.userID, records); err != nil {
		return err
	}
	d.logger.Debug("drafts saved", zap.Int("count", len(records)))
	return nil
}
