package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventRateLimiterBurstPerIdentity(t *testing.T) {
	rl := NewEventRateLimiter(0.001, 2)
	require.True(t, rl.Allow("alice"))
	require.True(t, rl.Allow("alice"))
	require.False(t, rl.Allow("alice"))
	require.True(t, rl.Allow("bob"))

	rl.Forget("alice")
	require.Equal(t, 1, rl.len())
	require.True(t, rl.Allow("alice"))
}
