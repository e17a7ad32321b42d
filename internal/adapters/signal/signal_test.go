package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/calls"
	"github.com/dkeye/Relay/internal/app/messaging"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type wsEnv struct {
	srv   *httptest.Server
	orch  *orch.Orchestrator
	store *sqlite.Store
}

func newWsEnv(t *testing.T) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	for _, u := range []domain.IdentityCode{"alice", "bob"} {
		require.NoError(t, store.PutUser(ctx, u, string(u)))
	}
	require.NoError(t, store.PutFriendship(ctx, "alice", "bob"))

	reg := app.NewRegistry(app.SimplePolicy{}, nil)
	rooms := app.NewRoomManager(reg)
	o := orch.New(reg, rooms, calls.NewCoordinator(store, rooms, reg, calls.Options{}), messaging.NewPipeline(store, rooms, nil))
	ctl := NewSignalWSController(o, Options{ReadLimit: 1 << 15, PingPeriod: time.Second, SendBuffer: 16, EventRate: 100, EventBurst: 100})

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(IdentityKey, c.Query("userCode"))
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsEnv{srv: srv, orch: o, store: store}
}

func (e *wsEnv) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?userCode=" + user
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	require.Equal(t, core.EventReady, readType(t, ws, core.EventReady).Type)
	return ws
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readType reads frames until one of type typ arrives.
func readType(t *testing.T, ws *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, ws.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func send(t *testing.T, ws *websocket.Conn, typ string, data any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func TestPingPong(t *testing.T) {
	e := newWsEnv(t)
	ws := e.dial(t, "alice")
	send(t, ws, "ping", map[string]any{})
	readType(t, ws, core.EventPong)
}

func TestUnknownEventAnsweredWithError(t *testing.T) {
	e := newWsEnv(t)
	ws := e.dial(t, "alice")
	send(t, ws, "rename", map[string]any{"name": "x"})
	f := readType(t, ws, core.EventError)
	var ev core.Error
	require.NoError(t, json.Unmarshal(f.Data, &ev))
	require.Equal(t, "invalid_input", ev.Code)
}

func TestCallSignalRelayedWithServerFromCode(t *testing.T) {
	e := newWsEnv(t)
	alice := e.dial(t, "alice")
	bob := e.dial(t, "bob")

	s, err := e.orch.Calls.StartCall(context.Background(), "alice", "bob", "VIDEO")
	require.NoError(t, err)

	send(t, alice, core.EventCallSignal, map[string]any{
		"sessionCode": s.Code,
		"targetCode":  "bob",
		"fromCode":    "mallory",
		"data":        map[string]any{"renegotiate": true},
	})
	f := readType(t, bob, core.EventCallSignal)
	var sig core.CallSignal
	require.NoError(t, json.Unmarshal(f.Data, &sig))
	require.Equal(t, domain.IdentityCode("alice"), sig.FromCode)
	require.Equal(t, domain.MediaVideo, sig.CallType)
	require.JSONEq(t, `{"renegotiate":true}`, string(sig.Data))
}

func TestGroupJoinAndTyping(t *testing.T) {
	e := newWsEnv(t)
	alice := e.dial(t, "alice")
	bob := e.dial(t, "bob")

	send(t, alice, EventJoinGroup, map[string]any{"groupCode": "g1"})
	send(t, bob, EventJoinGroup, map[string]any{"groupCode": "g1"})
	send(t, bob, "ping", map[string]any{})
	readType(t, bob, core.EventPong)
	send(t, alice, "ping", map[string]any{})
	readType(t, alice, core.EventPong)

	send(t, alice, core.EventTyping, map[string]any{"groupCode": "g1"})
	f := readType(t, bob, core.EventTyping)
	var ev core.Typing
	require.NoError(t, json.Unmarshal(f.Data, &ev))
	require.Equal(t, domain.IdentityCode("alice"), ev.From)
	require.Equal(t, domain.GroupCode("g1"), ev.GroupCode)
}

func TestDisconnectRunsCleanup(t *testing.T) {
	e := newWsEnv(t)
	ws := e.dial(t, "alice")
	require.Equal(t, 1, e.orch.Registry.ConnectionCount("alice"))

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool {
		return e.orch.Registry.ConnectionCount("alice") == 0 && len(e.orch.Rooms.List()) == 0
	}, 3*time.Second, 10*time.Millisecond)
}
