package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/memstore"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("ws-secret")

type env struct {
	srv    *httptest.Server
	server *Server
	hub    *hub.Hub
	store  *memstore.Store
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()

	store := memstore.New()
	h := hub.New(store)
	svc := service.New(service.Deps{
		Messages:   store,
		Receipts:   store,
		Reactions:  store,
		Pins:       store,
		History:    store,
		Members:    store,
		Moderation: store,
		Notifier:   h,
	})
	verifier, err := auth.NewHMACVerifier(testSecret, auth.Options{})
	require.NoError(t, err)

	s := NewServer(Deps{
		Auth:       verifier,
		Registry:   h,
		Messages:   svc.Messages,
		Reads:      svc.Reads,
		Presence:   service.NewPresenceService(store, h),
		Registerer: prometheus.NewRegistry(),
	}, opts)

	srv := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	t.Cleanup(srv.Close)
	return &env{srv: srv, server: s, hub: h, store: store}
}

func token(t *testing.T, uid int64) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.FormatInt(uid, 10),
		"username": "user" + strconv.FormatInt(uid, 10),
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func (e *env) dial(t *testing.T, uid int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token(t, uid)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return e.hub.Online(uid) }, time.Second, 5*time.Millisecond)
	return conn
}

func writeJSON(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(v))
}

// readUntil читает кадры, пока не встретит нужный тип.
func readUntil(t *testing.T, c *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := c.ReadMessage()
		require.NoError(t, err, "waiting for %q", typ)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == typ {
			return m
		}
	}
}

func TestHandshakeRequiresToken(t *testing.T) {
	e := newEnv(t, Options{})
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendFanoutAndAck(t *testing.T) {
	e := newEnv(t, Options{})
	e.store.AddMember(42, 1, domain.RoleMember)
	e.store.AddMember(42, 2, domain.RoleMember)

	alice := e.dial(t, 1)
	bob := e.dial(t, 2)

	writeJSON(t, alice, map[string]any{"type": "send", "chat_id": 42, "content": "hello", "client_id": "c-1"})

	msg := readUntil(t, alice, "message")
	assert.Equal(t, "42", msg["chat_id"])
	ack := readUntil(t, alice, "ack")
	assert.Equal(t, "c-1", ack["client_id"])
	assert.Equal(t, msg["message"].(map[string]any)["id"], ack["message_id"])

	got := readUntil(t, bob, "message")
	inner := got["message"].(map[string]any)
	assert.Equal(t, "hello", inner["content"])
	assert.Equal(t, "1", inner["user_id"])
	assert.Equal(t, "user1", inner["sender_name"])
}

func TestErrorFrames(t *testing.T) {
	e := newEnv(t, Options{})
	e.store.AddMember(42, 1, domain.RoleMember)
	c := e.dial(t, 1)

	writeJSON(t, c, map[string]any{"type": "dance"})
	ev := readUntil(t, c, "error")
	assert.Equal(t, "invalid_argument", ev["code"])
	assert.Equal(t, "dance", ev["ref"])

	writeJSON(t, c, map[string]any{"type": "send", "chat_id": 7, "content": "x"})
	ev = readUntil(t, c, "error")
	assert.Equal(t, "forbidden", ev["code"])
	assert.Equal(t, "send", ev["ref"])

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{not json")))
	ev = readUntil(t, c, "error")
	assert.Equal(t, "invalid_argument", ev["code"])

	assert.Equal(t, 2.0, testutil.ToFloat64(e.server.metrics.errors.WithLabelValues("invalid_argument")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.server.metrics.errors.WithLabelValues("forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.server.metrics.frames.WithLabelValues("unknown")))
}

func TestOversizedFrameCloses(t *testing.T) {
	e := newEnv(t, Options{MaxFrameBytes: 512})
	c := e.dial(t, 1)

	big := `{"type":"send","chat_id":1,"content":"` + strings.Repeat("a", 2048) + `"}`
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(big)))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := c.ReadMessage()
		if err == nil {
			continue
		}
		assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
		break
	}
	require.Eventually(t, func() bool { return !e.hub.Online(1) }, time.Second, 5*time.Millisecond)
}

func TestPresenceAndTyping(t *testing.T) {
	e := newEnv(t, Options{})
	e.store.AddMember(42, 1, domain.RoleMember)
	e.store.AddMember(42, 2, domain.RoleMember)

	alice := e.dial(t, 1)
	writeJSON(t, alice, map[string]any{"type": "subscribe", "chat_id": "42"})
	state := readUntil(t, alice, "presence_state")
	assert.Equal(t, []any{"1"}, state["online"])

	bob := e.dial(t, 2)
	writeJSON(t, bob, map[string]any{"type": "subscribe", "chat_id": 42})
	readUntil(t, bob, "presence_state")

	online := readUntil(t, alice, "presence")
	assert.Equal(t, "2", online["user_id"])
	assert.Equal(t, "online", online["status"])

	writeJSON(t, bob, map[string]any{"type": "typing", "chat_id": 42, "is_typing": true})
	typing := readUntil(t, alice, "typing")
	assert.Equal(t, "user2", typing["display_name"])
	assert.Equal(t, true, typing["is_typing"])

	require.NoError(t, bob.Close())
	offline := readUntil(t, alice, "presence")
	assert.Equal(t, "2", offline["user_id"])
	assert.Equal(t, "offline", offline["status"])
}

func TestLastConnectionWins(t *testing.T) {
	e := newEnv(t, Options{})
	e.store.AddMember(42, 1, domain.RoleMember)

	first := e.dial(t, 1)
	second := e.dial(t, 1)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, e.hub.Online(1))

	writeJSON(t, second, map[string]any{"type": "send", "chat_id": 42, "content": "still here", "client_id": "x"})
	readUntil(t, second, "ack")
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, "abc", tokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws?access_token=legacy", nil)
	assert.Equal(t, "legacy", tokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer hdr")
	assert.Equal(t, "hdr", tokenFromRequest(r))
}
