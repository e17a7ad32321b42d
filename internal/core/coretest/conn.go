// Package coretest provides an in-memory core.Conn for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/Relay/internal/core"
)

// Conn records every frame it accepts. A non-zero Capacity makes TrySend
// report backpressure once that many frames are held.
type Conn struct {
	id       core.ConnID
	Capacity int

	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func NewConn(id string) *Conn { return &Conn{id: core.ConnID(id)} }

func (c *Conn) ID() core.ConnID { return c.id }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.Capacity > 0 && len(c.frames) >= c.Capacity {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Received is a decoded envelope.
type Received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *Conn) Events() []Received {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Received, 0, len(c.frames))
	for _, f := range c.frames {
		var r Received
		if err := json.Unmarshal(f, &r); err == nil {
			out = append(out, r)
		}
	}
	return out
}

// OfType returns the data of every received event named typ.
func (c *Conn) OfType(typ string) []json.RawMessage {
	var out []json.RawMessage
	for _, r := range c.Events() {
		if r.Type == typ {
			out = append(out, r.Data)
		}
	}
	return out
}

func (c *Conn) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
