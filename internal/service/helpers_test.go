package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/memstore"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id  string
	uid int64

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newConn(uid int64) *fakeConn {
	return &fakeConn{id: fmt.Sprintf("conn-%d", uid), uid: uid}
}

func (c *fakeConn) ID() string    { return c.id }
func (c *fakeConn) UserID() int64 { return c.uid }

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T, typ string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

type countingStorage struct {
	mu      sync.Mutex
	deleted map[string]int
}

func (s *countingStorage) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted == nil {
		s.deleted = map[string]int{}
	}
	s.deleted[url]++
	return nil
}

func (s *countingStorage) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[url]
}

type env struct {
	store   *memstore.Store
	hub     *hub.Hub
	storage *countingStorage
	svc     *service.Services
}

func newEnv(t *testing.T, opts ...func(*service.Deps)) *env {
	t.Helper()

	st := memstore.New()
	h := hub.New(st)
	storage := &countingStorage{}
	d := service.Deps{
		Messages:   st,
		Receipts:   st,
		Reactions:  st,
		Pins:       st,
		History:    st,
		Members:    st,
		Moderation: st,
		Storage:    storage,
		Notifier:   h,
		Limits:     service.DefaultLimits(),
	}
	for _, o := range opts {
		o(&d)
	}
	return &env{store: st, hub: h, storage: storage, svc: service.New(d)}
}

func (e *env) connect(uid int64) *fakeConn {
	c := newConn(uid)
	e.hub.Register(c)
	return c
}

func (e *env) send(t *testing.T, from, chatID int64, text string) *domain.MessageView {
	t.Helper()
	v, err := e.svc.Messages.Send(context.Background(), who(from), service.SendInput{ChatID: chatID, Content: text})
	require.NoError(t, err)
	return v
}

func who(uid int64) domain.Identity {
	return domain.Identity{UserID: uid, DisplayName: fmt.Sprintf("user%d", uid)}
}
