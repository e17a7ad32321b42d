package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.opts.PingPeriod * 10 / 9
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ping := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ping.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump write error")
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("ping failed")
				return
			}
		}
	}
}

// readPump owns the cleanup path: whatever ends the loop, the connection is
// unregistered exactly once.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, identity domain.IdentityCode, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.ID())).Str("user", string(identity)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.Disconnect(c.ID())
		if ctl.Orch.Registry.ConnectionCount(identity) == 0 {
			ctl.limiter.Forget(identity)
		}
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, identity, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, identity domain.IdentityCode, c *WsSignalConn, data []byte) {
	if !ctl.limiter.Allow(identity) {
		ctl.opts.Metrics.RateLimited()
		ctl.sendError(c, errRateLimited)
		return
	}
	ev, err := Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("bad event")
		ctl.sendError(c, err)
		return
	}

	switch e := ev.(type) {
	case JoinGroupEvent:
		err = ctl.Orch.JoinGroup(c.ID(), domain.GroupCode(e.GroupCode))
	case LeaveGroupEvent:
		ctl.Orch.LeaveGroup(c.ID(), domain.GroupCode(e.GroupCode))
	case CallSignalEvent:
		err = ctl.handleCallSignal(ctx, identity, c, e)
	case TypingEvent:
		err = ctl.Orch.Typing(c.ID(), domain.IdentityCode(e.TargetCode), domain.GroupCode(e.GroupCode))
	case PingEvent:
		ctl.handlePing(c)
	default:
		err = errors.New("unhandled event")
	}
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("event rejected")
		ctl.sendError(c, err)
	}
}
