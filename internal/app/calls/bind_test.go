package calls

import (
	"testing"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestBindSkipsForgottenSession(t *testing.T) {
	c := NewCoordinator(nil, nil, nil, Options{})
	s := domain.CallSession{Code: "s1", Initiator: "alice", Recipient: "bob", Status: domain.CallActive}

	c.track(s)
	c.bind(s, "a1", "alice")
	require.Equal(t, 1, c.Live())
	require.Len(t, c.live["s1"].conns, 1)

	// A relay that read the session before a concurrent end must not revive it.
	c.forget(s.Code)
	c.bind(s, "a2", "alice")
	require.Zero(t, c.Live())
	require.Empty(t, c.byIdentity["alice"])
}
