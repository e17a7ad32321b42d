package core

import "errors"

// Frame is one encoded event as written to the wire.
type Frame []byte

type ConnID string

var (
	ErrBackpressure = errors.New("send buffer full")
	ErrConnClosed   = errors.New("connection closed")
)

// Conn abstracts a live client transport.
// Owned by the adapter; the relay only closes it on teardown or kick.
type Conn interface {
	ID() ConnID
	// TrySend must not block. It returns ErrBackpressure when the
	// outbound buffer is full and ErrConnClosed after Close.
	TrySend(Frame) error
	Close()
}
