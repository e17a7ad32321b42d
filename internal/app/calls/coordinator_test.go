package calls_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/calls"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/core/coretest"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/mocks"
	"github.com/dkeye/Relay/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	offerSDP  = `{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\na=rtpmap:111 opus/48000/2\r\n"}`
	answerSDP = `{"type":"answer","sdp":"v=0\r\no=- 3 4 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\na=rtpmap:111 opus/48000/2\r\n"}`
	candidate = `{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 50000 typ host","sdpMid":"0","sdpMLineIndex":0}}`
)

type fixture struct {
	ctx   context.Context
	store *sqlite.Store
	reg   *app.Registry
	rooms *app.RoomManager
	coord *calls.Coordinator
	clock time.Time
}

func newFixture(t *testing.T, ring time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, u := range []domain.IdentityCode{"alice", "bob", "carol"} {
		require.NoError(t, store.PutUser(ctx, u, string(u)))
	}
	require.NoError(t, store.PutFriendship(ctx, "alice", "bob"))

	f := &fixture{ctx: ctx, store: store, clock: time.UnixMilli(1700000000000)}
	f.reg = app.NewRegistry(app.SimplePolicy{}, nil)
	f.rooms = app.NewRoomManager(f.reg)
	f.coord = calls.NewCoordinator(store, f.rooms, f.reg, calls.Options{
		RingTimeout: ring,
		Now:         func() time.Time { return f.clock },
	})
	f.reg.OnTeardown(f.coord.OnConnectionClosed)
	return f
}

func (f *fixture) connect(t *testing.T, identity domain.IdentityCode, id string) *coretest.Conn {
	t.Helper()
	c := coretest.NewConn(id)
	require.NoError(t, f.reg.Register(identity, c))
	require.NoError(t, f.rooms.Join(c.ID(), domain.UserRoom(identity)))
	return c
}

func (f *fixture) start(t *testing.T) domain.CallSession {
	t.Helper()
	s, err := f.coord.StartCall(f.ctx, "alice", "bob", "VOICE")
	require.NoError(t, err)
	return s
}

func TestStartCallCreatesInitiatedSession(t *testing.T) {
	f := newFixture(t, 0)
	s := f.start(t)

	require.Len(t, string(s.Code), 32)
	require.Equal(t, domain.CallInitiated, s.Status)
	require.Equal(t, domain.MediaVoice, s.Kind)

	stored, err := f.store.GetCallSession(f.ctx, s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallInitiated, stored.Status)

	notes, err := f.store.ListNotifications(f.ctx, "bob")
	require.NoError(t, err)
	require.Len(t, notes, 1)
}

func TestStartCallPreconditions(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.coord.StartCall(f.ctx, "alice", "carol", "VOICE")
	require.ErrorIs(t, err, domain.ErrNotFriends)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.StartCall(f.ctx, "alice", "alice", "VOICE")
	require.ErrorIs(t, err, domain.ErrSelfTarget)

	_, err = f.coord.StartCall(f.ctx, "alice", "zed", "VIDEO")
	require.ErrorIs(t, err, domain.ErrTargetNotFound)

	_, err = f.coord.StartCall(f.ctx, "alice", "bob", "SCREEN")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.coord.StartCall(f.ctx, "", "bob", "VOICE")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	require.Zero(t, f.coord.Live())
}

func TestOfferDroppedWhileRecipientOffline(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t, "alice", "a1")
	s := f.start(t)

	require.NoError(t, f.coord.RelaySignal(f.ctx, calls.Signal{
		SessionCode: s.Code, From: "alice", To: "bob", Payload: json.RawMessage(offerSDP), Conn: "a1",
	}))

	b := f.connect(t, "bob", "b1")
	got, err := f.coord.GetSession(f.ctx, s.Code, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.CallInitiated, got.Status)
	require.Zero(t, b.Count())
}

func TestAnswerActivatesAndRepeatKeepsActive(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t, "alice", "a1")
	b := f.connect(t, "bob", "b1")
	s := f.start(t)

	require.NoError(t, f.coord.RelaySignal(f.ctx, calls.Signal{
		SessionCode: s.Code, From: "alice", Payload: json.RawMessage(offerSDP), Conn: "a1",
	}))
	signals := b.OfType(core.EventCallSignal)
	require.Len(t, signals, 1)
	var sig core.CallSignal
	require.NoError(t, json.Unmarshal(signals[0], &sig))
	require.Equal(t, s.Code, sig.SessionCode)
	require.Equal(t, domain.IdentityCode("alice"), sig.FromCode)
	require.Equal(t, domain.MediaVoice, sig.CallType)

	got, err := f.coord.RecordAnswer(f.ctx, s.Code, "bob", "answer-1")
	require.NoError(t, err)
	require.Equal(t, domain.CallActive, got.Status)

	got, err = f.coord.RecordAnswer(f.ctx, s.Code, "bob", "answer-2")
	require.NoError(t, err)
	require.Equal(t, domain.CallActive, got.Status)
	require.Equal(t, "answer-2", got.Answer)
}

func TestRelayedAnswerActivates(t *testing.T) {
	f := newFixture(t, 0)
	a := f.connect(t, "alice", "a1")
	f.connect(t, "bob", "b1")
	s := f.start(t)

	require.NoError(t, f.coord.RelaySignal(f.ctx, calls.Signal{
		SessionCode: s.Code, From: "bob", Payload: json.RawMessage(answerSDP), Conn: "b1",
	}))
	require.NoError(t, f.coord.RelaySignal(f.ctx, calls.Signal{
		SessionCode: s.Code, From: "bob", Payload: json.RawMessage(candidate), Conn: "b1",
	}))

	got, err := f.store.GetCallSession(f.ctx, s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallActive, got.Status)
	require.Len(t, a.OfType(core.EventCallSignal), 2)
}

func TestAnswerAuthorization(t *testing.T) {
	f := newFixture(t, 0)
	s := f.start(t)

	_, err := f.coord.RecordAnswer(f.ctx, s.Code, "alice", "x")
	require.ErrorIs(t, err, domain.ErrNotRecipient)

	_, err = f.coord.RecordAnswer(f.ctx, s.Code, "carol", "x")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.RecordAnswer(f.ctx, "missing", "bob", "x")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordOffer(t *testing.T) {
	f := newFixture(t, 0)
	s := f.start(t)

	_, err := f.coord.RecordOffer(f.ctx, s.Code, "bob", "o")
	require.ErrorIs(t, err, domain.ErrNotInitiator)

	got, err := f.coord.RecordOffer(f.ctx, s.Code, "alice", "o")
	require.NoError(t, err)
	require.Equal(t, "o", got.Offer)

	_, err = f.coord.RecordAnswer(f.ctx, s.Code, "bob", "a")
	require.NoError(t, err)
	_, err = f.coord.RecordOffer(f.ctx, s.Code, "alice", "o2")
	require.ErrorIs(t, err, domain.ErrCallNotRinging)
}

func TestEndedSessionRejectsEverything(t *testing.T) {
	f := newFixture(t, 0)
	a := f.connect(t, "alice", "a1")
	b := f.connect(t, "bob", "b1")
	s := f.start(t)

	got, err := f.coord.EndCall(f.ctx, s.Code, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.CallEnded, got.Status)
	require.Len(t, a.OfType(core.EventCallEnded), 1)
	require.Len(t, b.OfType(core.EventCallEnded), 1)

	_, err = f.coord.RecordAnswer(f.ctx, s.Code, "bob", "late")
	require.ErrorIs(t, err, domain.ErrCallEnded)

	err = f.coord.RelaySignal(f.ctx, calls.Signal{SessionCode: s.Code, From: "alice", Payload: json.RawMessage(offerSDP)})
	require.ErrorIs(t, err, domain.ErrCallEnded)
	require.Empty(t, b.OfType(core.EventCallSignal))

	got, err = f.coord.EndCall(f.ctx, s.Code, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.CallEnded, got.Status)
	require.Len(t, a.OfType(core.EventCallEnded), 1)

	stored, err := f.store.GetCallSession(f.ctx, s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallEnded, stored.Status)
	require.Empty(t, stored.Answer)
}

func TestNonParticipantCannotEnd(t *testing.T) {
	f := newFixture(t, 0)
	s := f.start(t)

	_, err := f.coord.EndCall(f.ctx, s.Code, "carol")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.GetSession(f.ctx, s.Code, "carol")
	require.ErrorIs(t, err, domain.ErrForbidden)

	stored, err := f.store.GetCallSession(f.ctx, s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallInitiated, stored.Status)
}

func TestRelaySignalValidation(t *testing.T) {
	f := newFixture(t, 0)
	s := f.start(t)

	err := f.coord.RelaySignal(f.ctx, calls.Signal{SessionCode: s.Code, From: "alice", Payload: json.RawMessage(`null`)})
	require.ErrorIs(t, err, domain.ErrInvalidSignal)

	// Unparsable descriptions are relayed untouched and do not move the session.
	err = f.coord.RelaySignal(f.ctx, calls.Signal{SessionCode: s.Code, From: "alice", Payload: json.RawMessage(`{"type":"offer","sdp":"garbage"}`)})
	require.NoError(t, err)
	stored, err := f.store.GetCallSession(f.ctx, s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallInitiated, stored.Status)
	require.Empty(t, stored.Offer)

	err = f.coord.RelaySignal(f.ctx, calls.Signal{SessionCode: s.Code, From: "alice", To: "carol", Payload: json.RawMessage(`{"renegotiate":true}`)})
	require.ErrorIs(t, err, domain.ErrForbidden)

	err = f.coord.RelaySignal(f.ctx, calls.Signal{SessionCode: s.Code, From: "carol", Payload: json.RawMessage(`{"renegotiate":true}`)})
	require.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestDisconnectEndsBoundSession(t *testing.T) {
	f := newFixture(t, 0)
	a := f.connect(t, "alice", "a1")
	f.connect(t, "alice", "a2")
	f.connect(t, "bob", "b1")
	s := f.start(t)
	require.NoError(t, f.coord.RelaySignal(f.ctx, calls.Signal{
		SessionCode: s.Code, From: "bob", Payload: json.RawMessage(answerSDP), Conn: "b1",
	}))

	f.reg.Unregister("a2")
	stored, err := f.store.GetCallSession(f.ctx, s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallActive, stored.Status)

	f.reg.Unregister("b1")
	stored, err = f.store.GetCallSession(f.ctx, s.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallEnded, stored.Status)

	var ended core.CallEnded
	events := a.OfType(core.EventCallEnded)
	require.Len(t, events, 1)
	require.NoError(t, json.Unmarshal(events[0], &ended))
	require.Equal(t, domain.EndPeerDisconnected, ended.Reason)
	require.Zero(t, f.coord.Live())
}

func TestRingTimeoutExpiresInitiated(t *testing.T) {
	f := newFixture(t, 30*time.Second)
	ringing := f.start(t)
	answered := f.start(t)
	_, err := f.coord.RecordAnswer(f.ctx, answered.Code, "bob", "a")
	require.NoError(t, err)

	f.clock = f.clock.Add(10 * time.Second)
	require.Zero(t, f.coord.ExpireStale(f.ctx))

	f.clock = f.clock.Add(30 * time.Second)
	require.Equal(t, 1, f.coord.ExpireStale(f.ctx))

	got, err := f.store.GetCallSession(f.ctx, ringing.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallEnded, got.Status)
	got, err = f.store.GetCallSession(f.ctx, answered.Code)
	require.NoError(t, err)
	require.Equal(t, domain.CallActive, got.Status)
}

func TestNoExpiryWhenDisabled(t *testing.T) {
	f := newFixture(t, 0)
	f.start(t)
	f.clock = f.clock.Add(24 * time.Hour)
	require.Zero(t, f.coord.ExpireStale(f.ctx))
}

func TestStoreFailureCreatesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	reg := app.NewRegistry(nil, nil)
	coord := calls.NewCoordinator(store, app.NewRoomManager(reg), reg, calls.Options{})

	store.EXPECT().IdentityExists(gomock.Any(), domain.IdentityCode("bob")).Return(true, nil)
	store.EXPECT().AreFriends(gomock.Any(), domain.IdentityCode("alice"), domain.IdentityCode("bob")).Return(true, nil)
	store.EXPECT().CreateCallSession(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := coord.StartCall(context.Background(), "alice", "bob", "VIDEO")
	require.Error(t, err)
	require.Nil(t, domain.KindOf(err))
	require.Zero(t, coord.Live())
}

func TestNotificationFailureDoesNotFailStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	reg := app.NewRegistry(nil, nil)
	coord := calls.NewCoordinator(store, app.NewRoomManager(reg), reg, calls.Options{})

	store.EXPECT().IdentityExists(gomock.Any(), gomock.Any()).Return(true, nil)
	store.EXPECT().AreFriends(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	store.EXPECT().CreateCallSession(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().CreateNotification(gomock.Any(), gomock.Any()).Return(errors.New("boom"))

	s, err := coord.StartCall(context.Background(), "alice", "bob", "")
	require.NoError(t, err)
	require.Equal(t, domain.MediaVoice, s.Kind)
}
