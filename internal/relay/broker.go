package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope is a notification as published on Redis. The source client ID
// is not part of the client-facing message, so it travels alongside.
type envelope struct {
	Source       string              `json:"source,omitempty"`
	Notification models.Notification `json:"notification"`
}

// RedisBroker fans notifications out through a Redis channel so that every
// relay instance delivers them to its own clients.
type RedisBroker struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

func NewRedisBroker(rdb *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, channel: channel, hub: hub, logger: logger}
}

// Notify publishes n. Delivery to local clients happens when Run receives
// it back.
func (b *RedisBroker) Notify(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(envelope{Source: n.SourceClientID, Notification: n})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Run forwards published notifications to the hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("listening for notifications", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("dropping malformed notification", zap.Error(err))
				continue
			}
			env.Notification.SourceClientID = env.Source
			b.hub.Broadcast(env.Notification)
		}
	}
}
