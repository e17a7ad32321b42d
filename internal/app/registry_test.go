package app

import (
	"testing"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/core/coretest"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRegistrySendToIdentityReachesEveryConnection(t *testing.T) {
	reg := NewRegistry(SimplePolicy{}, nil)
	a1, a2 := coretest.NewConn("a1"), coretest.NewConn("a2")
	require.NoError(t, reg.Register("alice", a1))
	require.NoError(t, reg.Register("alice", a2))

	res := reg.SendToIdentity("alice", core.FriendsUpdated{})
	require.Equal(t, 2, res.SendTo)
	require.Len(t, a1.OfType(core.EventFriendsUpdated), 1)
	require.Len(t, a2.OfType(core.EventFriendsUpdated), 1)
}

func TestRegistryNoConnectionsNoBacklog(t *testing.T) {
	reg := NewRegistry(SimplePolicy{}, nil)
	res := reg.SendToIdentity("bob", core.FriendsUpdated{})
	require.Zero(t, res.SendTo)

	b := coretest.NewConn("b1")
	require.NoError(t, reg.Register("bob", b))
	require.Zero(t, b.Count())
}

func TestRegistryDuplicateAndIdempotentUnregister(t *testing.T) {
	reg := NewRegistry(nil, nil)
	c := coretest.NewConn("c1")
	require.NoError(t, reg.Register("alice", c))
	require.ErrorIs(t, reg.Register("alice", c), ErrAlreadyRegistered)

	calls := 0
	reg.OnTeardown(func(id domain.IdentityCode, conn core.Conn) {
		calls++
		require.Equal(t, domain.IdentityCode("alice"), id)
		require.Zero(t, reg.ConnectionCount("alice"))
	})
	require.True(t, reg.Unregister("c1"))
	require.False(t, reg.Unregister("c1"))
	require.Equal(t, 1, calls)
}

func TestRegistryRejectsEmptyIdentity(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.ErrorIs(t, reg.Register("", coretest.NewConn("x")), domain.ErrUnauthenticated)
}

func TestRegistryKicksSlowConnection(t *testing.T) {
	reg := NewRegistry(SimplePolicy{}, nil)
	fast, slow := coretest.NewConn("fast"), coretest.NewConn("slow")
	slow.Capacity = 1
	require.NoError(t, reg.Register("alice", fast))
	require.NoError(t, reg.Register("alice", slow))

	reg.SendToIdentity("alice", core.Pong{})
	res := reg.SendToIdentity("alice", core.Pong{})

	require.Equal(t, 1, res.SendTo)
	require.Len(t, res.Dropped, 1)
	require.True(t, slow.Closed())
	require.False(t, fast.Closed())
	require.Equal(t, 1, reg.ConnectionCount("alice"))
	require.Equal(t, 2, fast.Count())
}

func TestDropPolicyKeepsSlowConnection(t *testing.T) {
	reg := NewRegistry(DropPolicy{}, nil)
	slow := coretest.NewConn("slow")
	slow.Capacity = 1
	require.NoError(t, reg.Register("alice", slow))

	reg.SendToIdentity("alice", core.Pong{})
	reg.SendToIdentity("alice", core.Pong{})

	require.False(t, slow.Closed())
	require.Equal(t, 1, reg.ConnectionCount("alice"))
}

func TestRegistryCloseAll(t *testing.T) {
	reg := NewRegistry(nil, nil)
	a, b := coretest.NewConn("a"), coretest.NewConn("b")
	require.NoError(t, reg.Register("alice", a))
	require.NoError(t, reg.Register("bob", b))

	reg.CloseAll()
	require.Zero(t, reg.Len())
	require.True(t, a.Closed())
	require.True(t, b.Closed())
}
