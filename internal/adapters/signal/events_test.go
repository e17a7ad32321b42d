package signal

import (
	"testing"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDecodeVariants(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"joinGroup","data":{"groupCode":"g1"}}`))
	require.NoError(t, err)
	require.Equal(t, JoinGroupEvent{GroupCode: "g1"}, ev)

	ev, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	require.Equal(t, PingEvent{}, ev)

	ev, err = Decode([]byte(`{"type":"call:signal","data":{"sessionCode":"s1","targetCode":"bob","fromCode":"mallory","data":{"type":"offer"}}}`))
	require.NoError(t, err)
	sig := ev.(CallSignalEvent)
	require.Equal(t, "s1", sig.SessionCode)
	require.JSONEq(t, `{"type":"offer"}`, string(sig.Data))

	ev, err = Decode([]byte(`{"type":"message:typing","data":{"targetCode":"bob"}}`))
	require.NoError(t, err)
	require.Equal(t, TypingEvent{TargetCode: "bob"}, ev)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"type":`,
		"no type":        `{"data":{}}`,
		"unknown":        `{"type":"rename","data":{"name":"x"}}`,
		"missing data":   `{"type":"joinGroup"}`,
		"empty group":    `{"type":"joinGroup","data":{"groupCode":""}}`,
		"wrong shape":    `{"type":"leaveGroup","data":"g1"}`,
		"null signal":    `{"type":"call:signal","data":{"sessionCode":"s1","data":null}}`,
		"no session":     `{"type":"call:signal","data":{"data":{"a":1}}}`,
		"bad call type":  `{"type":"call:signal","data":{"sessionCode":"s1","data":{"a":1},"callType":"SCREEN"}}`,
		"typing nowhere": `{"type":"message:typing","data":{}}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, "forbidden", ErrorCode(domain.ErrNotFriends))
	require.Equal(t, "conflict", ErrorCode(domain.ErrCallEnded))
	require.Equal(t, "invalid_input", ErrorCode(domain.ErrInvalidSignal))
	require.Equal(t, "rate_limited", ErrorCode(errRateLimited))
	require.Equal(t, "internal", ErrorCode(nil))
}
