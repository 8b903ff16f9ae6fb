package service_test

import (
	"context"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_SubscribeTypingDisconnect(t *testing.T) {
	e := newEnv(t)
	e.store.AddMember(5, userX, domain.RoleMember)
	e.store.AddMember(5, userY, domain.RoleMember)
	p := service.NewPresenceService(e.store, e.hub)
	ctx := context.Background()

	x := e.connect(userX)
	y := e.connect(userY)

	require.NoError(t, p.Subscribe(ctx, x, 5))
	state := x.events(t, "presence_state")
	require.Len(t, state, 1)
	assert.Equal(t, []any{"1"}, state[0]["online"])

	require.NoError(t, p.Subscribe(ctx, y, 5))
	online := x.events(t, "presence")
	require.Len(t, online, 1)
	assert.Equal(t, "2", online[0]["user_id"])
	assert.Equal(t, "online", online[0]["status"])
	assert.Equal(t, []any{"1", "2"}, y.events(t, "presence_state")[0]["online"])

	require.NoError(t, p.Typing(ctx, who(userY), 5, true))
	typing := x.events(t, "typing")
	require.Len(t, typing, 1)
	assert.Equal(t, true, typing[0]["is_typing"])
	assert.Equal(t, "user2", typing[0]["display_name"])
	assert.Empty(t, y.events(t, "typing"))

	watched, ok := e.hub.Unregister(userY, y)
	require.True(t, ok)
	p.Disconnect(userY, watched)

	presence := x.events(t, "presence")
	require.Len(t, presence, 2)
	assert.Equal(t, "offline", presence[1]["status"])
}

func TestPresence_NonMemberCannotSubscribeOrType(t *testing.T) {
	e := newEnv(t)
	e.store.AddMember(5, userX, domain.RoleMember)
	p := service.NewPresenceService(e.store, e.hub)
	z := e.connect(userZ)

	assert.ErrorIs(t, p.Subscribe(context.Background(), z, 5), domain.ErrForbidden)
	assert.ErrorIs(t, p.Typing(context.Background(), who(userZ), 5, true), domain.ErrForbidden)
	assert.Empty(t, e.hub.Watchers(5))
}

func TestPresence_UnsubscribeIsSilent(t *testing.T) {
	e := newEnv(t)
	e.store.AddMember(5, userX, domain.RoleMember)
	e.store.AddMember(5, userY, domain.RoleMember)
	p := service.NewPresenceService(e.store, e.hub)
	ctx := context.Background()
	x := e.connect(userX)
	y := e.connect(userY)

	require.NoError(t, p.Subscribe(ctx, x, 5))
	require.NoError(t, p.Subscribe(ctx, y, 5))
	assert.True(t, p.Unsubscribe(y, 5))
	assert.False(t, p.Unsubscribe(y, 5))

	assert.Len(t, x.events(t, "presence"), 1)
	assert.Equal(t, []int64{userX}, e.hub.Watchers(5))

	require.NoError(t, p.Typing(ctx, who(userX), 5, true))
	assert.Empty(t, y.events(t, "typing"))
}
