package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// IdentityKey is the gin context key the auth middleware stores the caller under.
const IdentityKey = "user_code"

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	EventRate  float64
	EventBurst int
	Metrics    *observability.Metrics
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	opts    Options
	limiter *EventRateLimiter
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &SignalWSController{
		Orch:    o,
		opts:    opts,
		limiter: NewEventRateLimiter(opts.EventRate, opts.EventBurst),
	}
}

type WsSignalConn struct {
	id   core.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		id:   core.ConnID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) ID() core.ConnID { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an authenticated request and runs the connection until
// either side goes away.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	identity := domain.IdentityCode(c.GetString(IdentityKey))
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	if err := ctl.Orch.Connect(identity, conn); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(identity)).Msg("connect rejected")
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.ID())).Str("user", string(identity)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, identity, conn)
}
