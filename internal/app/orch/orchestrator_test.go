package orch

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/calls"
	"github.com/dkeye/Relay/internal/app/messaging"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/core/coretest"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
)

func newOrch(t *testing.T) (*Orchestrator, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	for _, u := range []domain.IdentityCode{"alice", "bob"} {
		require.NoError(t, store.PutUser(ctx, u, string(u)))
	}
	require.NoError(t, store.PutFriendship(ctx, "alice", "bob"))

	reg := app.NewRegistry(app.SimplePolicy{}, nil)
	rooms := app.NewRoomManager(reg)
	coord := calls.NewCoordinator(store, rooms, reg, calls.Options{})
	return New(reg, rooms, coord, messaging.NewPipeline(store, rooms, nil)), store
}

func TestConnectJoinsIdentityRoomAndSendsReady(t *testing.T) {
	o, _ := newOrch(t)
	c := coretest.NewConn("a1")
	require.NoError(t, o.Connect("alice", c))

	require.True(t, o.Rooms.IsMember("a1", domain.UserRoom("alice")))
	require.Len(t, c.OfType(core.EventReady), 1)
	require.Error(t, o.Connect("alice", c))
}

func TestDisconnectCleansEverything(t *testing.T) {
	o, _ := newOrch(t)
	require.NoError(t, o.Connect("alice", coretest.NewConn("a1")))
	require.NoError(t, o.JoinGroup("a1", "g1"))

	o.Disconnect("a1")
	o.Disconnect("a1")

	require.Empty(t, o.Rooms.List())
	require.Zero(t, o.Registry.Len())
}

func TestLogoutClosesAllDevices(t *testing.T) {
	o, _ := newOrch(t)
	a1, a2, b := coretest.NewConn("a1"), coretest.NewConn("a2"), coretest.NewConn("b1")
	require.NoError(t, o.Connect("alice", a1))
	require.NoError(t, o.Connect("alice", a2))
	require.NoError(t, o.Connect("bob", b))

	require.Equal(t, 2, o.Logout("alice"))
	require.True(t, a1.Closed())
	require.True(t, a2.Closed())
	require.False(t, b.Closed())
	require.Zero(t, o.Registry.ConnectionCount("alice"))
}

func TestLogoutEndsLiveCall(t *testing.T) {
	o, store := newOrch(t)
	require.NoError(t, o.Connect("alice", coretest.NewConn("a1")))
	b := coretest.NewConn("b1")
	require.NoError(t, o.Connect("bob", b))
	s, err := o.Calls.StartCall(context.Background(), "alice", "bob", "VIDEO")
	require.NoError(t, err)

	o.Logout("alice")

	got, err := store.GetCallSession(context.Background(), s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallEnded, got.Status)
	require.Len(t, b.OfType(core.EventCallEnded), 1)
}

func TestTypingRelay(t *testing.T) {
	o, _ := newOrch(t)
	a, b := coretest.NewConn("a1"), coretest.NewConn("b1")
	require.NoError(t, o.Connect("alice", a))
	require.NoError(t, o.Connect("bob", b))

	require.NoError(t, o.Typing("a1", "bob", ""))
	events := b.OfType(core.EventTyping)
	require.Len(t, events, 1)
	var ev core.Typing
	require.NoError(t, json.Unmarshal(events[0], &ev))
	require.Equal(t, domain.IdentityCode("alice"), ev.From)
	require.NotZero(t, ev.TimestampMs)

	require.ErrorIs(t, o.Typing("a1", "alice", ""), domain.ErrConflict)
	require.ErrorIs(t, o.Typing("a1", "", "g1"), domain.ErrForbidden)
	require.ErrorIs(t, o.Typing("ghost", "bob", ""), domain.ErrUnauthenticated)

	require.NoError(t, o.JoinGroup("a1", "g1"))
	require.NoError(t, o.JoinGroup("b1", "g1"))
	require.NoError(t, o.Typing("a1", "", "g1"))
	require.Len(t, b.OfType(core.EventTyping), 2)
	require.Empty(t, a.OfType(core.EventTyping))
}

func TestIntegrationNotifications(t *testing.T) {
	o, _ := newOrch(t)
	a, b := coretest.NewConn("a1"), coretest.NewConn("b1")
	require.NoError(t, o.Connect("alice", a))
	require.NoError(t, o.Connect("bob", b))
	require.NoError(t, o.JoinGroup("a1", "g1"))

	require.Equal(t, 2, o.NotifyFriendsUpdated("alice", "bob"))
	require.Len(t, a.OfType(core.EventFriendsUpdated), 1)
	require.Len(t, b.OfType(core.EventFriendsUpdated), 1)

	require.Equal(t, 1, o.NotifyGroupMemberJoined("g1", core.GroupMember{UserCode: "bob", Name: "Bob"}))
	joined := a.OfType(core.EventGroupMemberJoined)
	require.Len(t, joined, 1)
	require.JSONEq(t, `{"groupCode":"g1","member":{"userCode":"bob","name":"Bob"}}`, string(joined[0]))
}

func TestShutdownClosesConnections(t *testing.T) {
	o, _ := newOrch(t)
	a := coretest.NewConn("a1")
	require.NoError(t, o.Connect("alice", a))
	o.Shutdown()
	require.True(t, a.Closed())
	require.Empty(t, o.Rooms.List())
}
