package app

import "github.com/dkeye/Relay/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection that refused a frame.
type Policy interface {
	OnBackPressure(conn core.Conn, err error) BackpressureAction
}

// SimplePolicy kicks any connection that cannot keep up. A slow consumer is
// never allowed to stall fanout to others.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.Conn, error) BackpressureAction {
	return KickMember
}

// DropPolicy keeps slow connections and drops the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(_ core.Conn, err error) BackpressureAction {
	if err == core.ErrConnClosed {
		return KickMember
	}
	return DropFrame
}

func PolicyByName(name string) Policy {
	if name == "drop" {
		return DropPolicy{}
	}
	return SimplePolicy{}
}
