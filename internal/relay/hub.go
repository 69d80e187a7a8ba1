// Package relay is a development stand-in for the annotation service's
// real-time API. It pushes annotation notifications to connected sidebar
// clients over websockets.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/marginalia/internal/middleware"
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/observ"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string

	mu       sync.Mutex
	clientID string
}

func (c *client) id() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Hub tracks connected websocket clients and broadcasts notifications to
// them.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*client]struct{})}
}

// Notify implements api.Notifier by broadcasting n to local clients.
func (h *Hub) Notify(_ context.Context, n models.Notification) error {
	h.Broadcast(n)
	return nil
}

// Broadcast sends n to every client except the one that caused it and
// returns how many clients it was queued for. Clients whose buffers are
// full miss the notification.
func (h *Hub) Broadcast(n models.Notification) int {
	msg, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("failed to encode notification", zap.Error(err))
		return 0
	}
	observ.RelayNotifications.WithLabelValues(n.Options.Action).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		if n.SourceClientID != "" && c.id() == n.SourceClientID {
			continue
		}
		select {
		case c.send <- msg:
			sent++
		default:
			h.logger.Warn("client send buffer full, dropping notification",
				zap.String("user_id", c.userID),
				zap.String("client_id", c.id()),
			)
		}
	}
	return sent
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observ.RelayClients.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		observ.RelayClients.Dec()
	}
	h.mu.Unlock()
}

// ServeWS handles GET /ws. It must run behind middleware.AuthMiddleware.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	cl := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: middleware.GetUserID(c),
	}
	h.register(cl)
	h.logger.Info("websocket client connected", zap.String("user_id", cl.userID))

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.logger.Info("websocket client disconnected",
			zap.String("user_id", c.userID),
			zap.String("client_id", c.id()),
		)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		switch {
		case msg.MessageType == models.MessageClientID:
			c.mu.Lock()
			c.clientID = msg.Value
			c.mu.Unlock()
		case msg.Type == models.MessageWhoAmI:
			reply, err := json.Marshal(models.Notification{
				Type:   models.MessageWhoYouAre,
				UserID: c.userID,
			})
			if err != nil {
				continue
			}
			h.mu.RLock()
			select {
			case c.send <- reply:
			default:
			}
			h.mu.RUnlock()
		default:
			h.logger.Debug("ignoring client message",
				zap.String("type", msg.Type),
				zap.String("message_type", msg.MessageType),
			)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
