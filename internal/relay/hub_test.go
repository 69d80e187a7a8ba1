package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/marginalia/internal/api"
	"github.com/lalith-99/marginalia/internal/auth"
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRepo struct {
	mu   sync.Mutex
	anns map[string]models.Annotation
}

func (r *stubRepo) Create(_ context.Context, ann models.Annotation) (*models.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ann.ID = "a" + string(rune('0'+len(r.anns)+1))
	r.anns[ann.ID] = ann
	return &ann, nil
}

func (r *stubRepo) Get(_ context.Context, id string) (*models.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ann, ok := r.anns[id]
	if !ok {
		return nil, nil
	}
	return &ann, nil
}

func (r *stubRepo) Update(_ context.Context, ann models.Annotation) (*models.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anns[ann.ID] = ann
	return &ann, nil
}

func (r *stubRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.anns[id]
	delete(r.anns, id)
	return ok, nil
}

func (r *stubRepo) ListByGroup(context.Context, string, int) ([]models.Annotation, error) {
	return []models.Annotation{}, nil
}

func (r *stubRepo) CountByGroup(context.Context, string) (int, error) {
	return 0, nil
}

type relayFixture struct {
	srv *httptest.Server
	hub *Hub
}

func newRelay(t *testing.T, health func(context.Context) error) *relayFixture {
	t.Helper()
	hub := NewHub(zap.NewNop())
	router := NewRouter(Deps{
		Repo:      &stubRepo{anns: map[string]models.Annotation{}},
		Notifier:  hub,
		Hub:       hub,
		JWTSecret: testSecret,
		Health:    health,
		Logger:    zap.NewNop(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &relayFixture{srv: srv, hub: hub}
}

func (f *relayFixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

// dial connects as userID, announces clientID, and waits until the relay
// has processed the announcement.
func (f *relayFixture) dial(t *testing.T, userID, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?access_token=" + f.token(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(models.ClientMessage{MessageType: models.MessageClientID, Value: clientID}))
	assert.Equal(t, userID, whoami(t, conn))
	return conn
}

// whoami round-trips a whoami request. Messages are handled in order, so
// the reply also acts as a barrier for anything sent before it.
func whoami(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.WriteJSON(models.ClientMessage{Type: models.MessageWhoAmI, ID: 1}))
	n := read(t, conn)
	require.Equal(t, models.MessageWhoYouAre, n.Type)
	return n.UserID
}

func read(t *testing.T, conn *websocket.Conn) models.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var n models.Notification
	require.NoError(t, conn.ReadJSON(&n))
	return n
}

func TestServeWS_RequiresToken(t *testing.T) {
	f := newRelay(t, nil)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_WhoAmI(t *testing.T) {
	f := newRelay(t, nil)
	f.dial(t, "acct:me@example.com", "c1")

	assert.Equal(t, 1, f.hub.Clients())
}

func TestBroadcast_SkipsSource(t *testing.T) {
	f := newRelay(t, nil)
	author := f.dial(t, "acct:author@example.com", "author")
	reader := f.dial(t, "acct:reader@example.com", "reader")

	sent := f.hub.Broadcast(models.Notification{
		Type:           models.MessageAnnotationNotification,
		Payload:        []models.Annotation{{ID: "a1"}},
		Options:        models.NotificationOptions{Action: models.ActionCreate},
		SourceClientID: "author",
	})
	assert.Equal(t, 1, sent)

	n := read(t, reader)
	assert.Equal(t, models.MessageAnnotationNotification, n.Type)
	assert.Equal(t, models.ActionCreate, n.Options.Action)
	require.Len(t, n.Payload, 1)
	assert.Equal(t, "a1", n.Payload[0].ID)

	// The next message the author sees is its own whoami reply.
	assert.Equal(t, "acct:author@example.com", whoami(t, author))
}

func TestAPIChangesReachClients(t *testing.T) {
	f := newRelay(t, nil)
	author := f.dial(t, "acct:author@example.com", "author")
	reader := f.dial(t, "acct:reader@example.com", "reader")

	body, err := json.Marshal(gin.H{"group": "g1", "uri": "https://example.com", "text": "hi"})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/annotations", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token(t, "acct:author@example.com"))
	req.Header.Set(api.ClientIDHeader, "author")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	n := read(t, reader)
	assert.Equal(t, models.ActionCreate, n.Options.Action)
	require.Len(t, n.Payload, 1)
	assert.Equal(t, "hi", n.Payload[0].Text)
	assert.Equal(t, "acct:author@example.com", n.Payload[0].User)

	assert.Equal(t, "acct:author@example.com", whoami(t, author))
}

func TestHub_UnregistersOnClose(t *testing.T) {
	f := newRelay(t, nil)
	conn := f.dial(t, "acct:me@example.com", "c1")
	require.Equal(t, 1, f.hub.Clients())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return f.hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.hub.Broadcast(models.Notification{Type: models.MessageAnnotationNotification}))
}

func TestHealth(t *testing.T) {
	healthy := newRelay(t, nil)
	resp, err := http.Get(healthy.srv.URL + "/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	broken := newRelay(t, func(context.Context) error { return errors.New("redis down") })
	resp, err = http.Get(broken.srv.URL + "/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
