package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Relay/internal/app/calls"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

const storeTimeout = 5 * time.Second

var errRateLimited = errors.New("too many events")

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.send(conn, core.Pong{})
}

func (ctl *SignalWSController) handleCallSignal(ctx context.Context, identity domain.IdentityCode, conn *WsSignalConn, e CallSignalEvent) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return ctl.Orch.Calls.RelaySignal(ctx, calls.Signal{
		SessionCode: domain.SessionCode(e.SessionCode),
		From:        identity,
		To:          domain.IdentityCode(e.TargetCode),
		Payload:     e.Data,
		Conn:        conn.ID(),
	})
}

func (ctl *SignalWSController) send(conn *WsSignalConn, ev core.Event) {
	ctl.Orch.Registry.Deliver([]core.Conn{conn}, ev)
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, err error) {
	ctl.send(conn, core.Error{Code: ErrorCode(err), Message: err.Error()})
}

// ErrorCode names the error kind for realtime clients.
func ErrorCode(err error) string {
	if errors.Is(err, errRateLimited) {
		return "rate_limited"
	}
	switch domain.KindOf(err) {
	case domain.ErrInvalidInput:
		return "invalid_input"
	case domain.ErrUnauthenticated:
		return "unauthenticated"
	case domain.ErrForbidden:
		return "forbidden"
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrConflict:
		return "conflict"
	}
	return "internal"
}
