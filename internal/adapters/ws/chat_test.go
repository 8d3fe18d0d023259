package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/jegalhhh/morning-call/internal/adapters/ws"
	"github.com/jegalhhh/morning-call/internal/app"
	"github.com/jegalhhh/morning-call/internal/domain"
)

type fakeIdentity struct {
	profiles map[domain.UserID]domain.Profile
}

func (f *fakeIdentity) Create(u domain.User, passwordHash string) error { return nil }

func (f *fakeIdentity) GetByUsername(username domain.UserID) (domain.User, string, error) {
	return domain.User{}, "", domain.ErrUserNotFound
}

func (f *fakeIdentity) Profile(username domain.UserID) (domain.Profile, error) {
	p, ok := f.profiles[username]
	if !ok {
		return domain.Profile{}, domain.ErrUserNotFound
	}
	return p, nil
}

func newChatServer(t *testing.T) (*httptest.Server, *app.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := app.NewRegistry()
	ctl := &ws.Controller{
		Registry:  registry,
		Broadcast: app.NewBroadcaster(registry, time.UTC),
		Identity: &fakeIdentity{profiles: map[domain.UserID]domain.Profile{
			"alice": {Username: "alice", Name: "Alice", ProfileImage: "https://img.example/alice.png"},
			"bob":   {Username: "bob", Name: "Bob"},
		}},
		Loc: time.UTC,
	}

	r := gin.New()
	r.GET("/chat/:room", func(c *gin.Context) {
		ctl.HandleChat(context.Background(), c, domain.RoomCode(c.Param("room")), domain.UserID(c.Query("user")))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server, room, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/" + room + "?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestChat_JoinAnnouncement(t *testing.T) {
	req := require.New(t)
	srv, _ := newChatServer(t)

	alice := dial(t, srv, "alpha", "alice")
	ev := readEvent(t, alice)

	req.Equal("system", ev["type"])
	req.Equal("Alice joined the room", ev["message"])
	req.NotEmpty(ev["timestamp"])
}

func TestChat_RelayStampsAndPreservesFields(t *testing.T) {
	req := require.New(t)
	srv, _ := newChatServer(t)

	alice := dial(t, srv, "alpha", "alice")
	readEvent(t, alice) // alice join

	bob := dial(t, srv, "alpha", "bob")
	readEvent(t, alice) // bob join
	readEvent(t, bob)   // bob join

	carol := dial(t, srv, "beta", "carol")
	readEvent(t, carol) // carol join (different room, fallback name)

	payload := map[string]any{"type": "chat", "message": "hi", "mood": "sleepy"}
	data, err := json.Marshal(payload)
	req.NoError(err)
	req.NoError(alice.WriteMessage(websocket.TextMessage, data))

	got := readEvent(t, bob)
	req.Equal("chat", got["type"])
	req.Equal("hi", got["message"])
	// Unrecognized fields pass through untouched.
	req.Equal("sleepy", got["mood"])
	// Server-appended fields.
	req.NotEmpty(got["timestamp"])
	req.Equal("https://img.example/alice.png", got["profile_image"])

	// The sender receives its own message back too.
	echo := readEvent(t, alice)
	req.Equal("hi", echo["message"])

	// A connection in a different room never sees it.
	req.NoError(carol.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, _, err = carol.ReadMessage()
	req.Error(err)
}

func TestChat_UnknownUserGetsFallbackName(t *testing.T) {
	req := require.New(t)
	srv, _ := newChatServer(t)

	ghost := dial(t, srv, "alpha", "ghost")
	ev := readEvent(t, ghost)
	req.Equal("unknown joined the room", ev["message"])
}

func TestChat_ProtocolViolationClosesConnection(t *testing.T) {
	req := require.New(t)
	srv, registry := newChatServer(t)

	alice := dial(t, srv, "alpha", "alice")
	readEvent(t, alice)

	bob := dial(t, srv, "alpha", "bob")
	readEvent(t, alice)
	readEvent(t, bob)

	// Malformed payload: bob's connection is terminated, alice's is not.
	req.NoError(bob.WriteMessage(websocket.TextMessage, []byte("not json")))

	// Alice observes bob's leave announcement.
	ev := readEvent(t, alice)
	req.Equal("system", ev["type"])
	req.Equal("Bob left the room", ev["message"])

	req.Eventually(func() bool {
		return registry.Count("alpha") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestChat_MissingTypeIsProtocolViolation(t *testing.T) {
	req := require.New(t)
	srv, registry := newChatServer(t)

	alice := dial(t, srv, "alpha", "alice")
	readEvent(t, alice)

	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"message":"no type"}`)))

	req.Eventually(func() bool {
		return registry.Count("alpha") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestChat_DisconnectBroadcastsLeave(t *testing.T) {
	req := require.New(t)
	srv, registry := newChatServer(t)

	alice := dial(t, srv, "alpha", "alice")
	readEvent(t, alice)

	bob := dial(t, srv, "alpha", "bob")
	readEvent(t, alice)
	readEvent(t, bob)

	req.NoError(bob.Close())

	ev := readEvent(t, alice)
	req.Equal("Bob left the room", ev["message"])
	req.Eventually(func() bool {
		return registry.Count("alpha") == 1
	}, time.Second, 10*time.Millisecond)
}
