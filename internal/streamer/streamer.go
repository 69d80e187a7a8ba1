// Package streamer connects a sidebar store to the annotation service's
// real-time websocket and feeds it the notifications it receives.
package streamer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/observ"
	"github.com/lalith-99/marginalia/internal/sidebar"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxAttempts    = 10
	writeWait             = 10 * time.Second
)

type Options struct {
	URL         string
	AccessToken string

	// ApplyImmediately applies staged updates as soon as they arrive
	// instead of waiting for the user to ask.
	ApplyImmediately bool

	InitialBackoff time.Duration
	// MaxAttempts bounds consecutive failed connection attempts.
	MaxAttempts uint64
}

// Streamer is the sidebar's real-time client.
type Streamer struct {
	sb       *sidebar.Store
	opts     Options
	logger   *zap.Logger
	clientID string

	// warned remembers message types already reported as unsupported.
	warned *cache.Cache

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(sb *sidebar.Store, opts Options, logger *zap.Logger) *Streamer {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &Streamer{
		sb:       sb,
		opts:     opts,
		logger:   logger,
		clientID: uuid.NewString(),
		warned:   cache.New(time.Hour, 10*time.Minute),
	}
}

// ClientID identifies this client to the server so that it is not sent
// its own changes.
func (s *Streamer) ClientID() string { return s.clientID }

// Run keeps a connection open until ctx is done, reconnecting with
// exponential backoff. It returns an error once MaxAttempts consecutive
// attempts have failed.
func (s *Streamer) Run(ctx context.Context) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.InitialBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = 32 * s.opts.InitialBackoff
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, s.opts.MaxAttempts), ctx)

	op := func() error {
		conn, err := s.connect(ctx)
		if err != nil {
			return err
		}
		// A successful connection starts a fresh run of attempts.
		bo.Reset()
		return s.listen(ctx, conn)
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("websocket disconnected, retrying",
			zap.Error(err),
			zap.Duration("wait", wait),
		)
	}

	err := backoff.RetryNotify(op, bo, notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Streamer) dialURL() (string, error) {
	u, err := url.Parse(s.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	if s.opts.AccessToken != "" {
		q := u.Query()
		q.Set("access_token", s.opts.AccessToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *Streamer) connect(ctx context.Context) (*websocket.Conn, error) {
	target, err := s.dialURL()
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.send(models.ClientMessage{MessageType: models.MessageClientID, Value: s.clientID}); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.send(models.ClientMessage{Type: models.MessageWhoAmI, ID: 1}); err != nil {
		conn.Close()
		return nil, err
	}
	s.logger.Info("websocket connected", zap.String("client_id", s.clientID))
	return conn, nil
}

func (s *Streamer) send(msg models.ClientMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type+msg.MessageType, err)
	}
	return nil
}

func (s *Streamer) listen(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-done:
		}
	}()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("read websocket: %w", err)
		}
		if err := s.HandleMessage(data); err != nil {
			s.logger.Warn("failed to handle message", zap.Error(err))
		}
	}
}

// HandleMessage applies one server message to the sidebar store.
func (s *Streamer) HandleMessage(data []byte) error {
	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	observ.RealtimeMessages.WithLabelValues(n.Type).Inc()

	switch n.Type {
	case models.MessageAnnotationNotification:
		return s.handleAnnotations(n)

	case models.MessageSessionChange:
		if n.Model == nil {
			return errors.New("session change without a profile")
		}
		if err := s.sb.UpdateProfile(*n.Model); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		return nil

	case models.MessageWhoYouAre:
		if expected := s.sb.Profile().UserID; n.UserID != expected {
			s.logger.Warn("websocket user does not match session user",
				zap.String("websocket_user", n.UserID),
				zap.String("session_user", expected),
			)
		}
		return nil

	default:
		if s.warned.Add(n.Type, struct{}{}, cache.DefaultExpiration) == nil {
			s.logger.Warn("received unsupported notification", zap.String("type", n.Type))
		}
		return nil
	}
}

func (s *Streamer) handleAnnotations(n models.Notification) error {
	var err error
	switch n.Options.Action {
	case models.ActionCreate, models.ActionUpdate, models.ActionPast:
		err = s.sb.ReceiveRealTimeUpdates(n.Payload, nil)
	case models.ActionDelete:
		ids := make([]models.AnnotationID, 0, len(n.Payload))
		for _, a := range n.Payload {
			ids = append(ids, models.AnnotationID{ID: a.ID})
		}
		err = s.sb.ReceiveRealTimeUpdates(nil, ids)
	default:
		s.logger.Warn("unknown annotation action", zap.String("action", n.Options.Action))
		return nil
	}
	if err != nil {
		return fmt.Errorf("receive updates: %w", err)
	}

	if s.opts.ApplyImmediately {
		if err := s.sb.ApplyPendingUpdates(); err != nil {
			return fmt.Errorf("apply updates: %w", err)
		}
	}
	return nil
}
