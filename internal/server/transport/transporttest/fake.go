// Package transporttest provides in-memory transport.Conn and
// transport.Transport implementations for relay tests.
package transporttest

import (
	"sync"

	"github.com/dmitrijs2005/jimrelay/internal/protocol"
	"github.com/dmitrijs2005/jimrelay/internal/server/transport"
)

var _ transport.Conn = (*Conn)(nil)

// Conn records every frame sent to it.
type Conn struct {
	id     string
	remote string

	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	sendErr error
	sent    chan struct{}
}

func NewConn(id, remote string) *Conn {
	return &Conn{id: id, remote: remote, sent: make(chan struct{}, 1024)}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() string { return c.remote }

func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return transport.ErrConnClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	select {
	case c.sent <- struct{}{}:
	default:
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// FailSends makes every following Send return err. nil restores delivery.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Sent signals after each successful Send.
func (c *Conn) Sent() <-chan struct{} { return c.sent }

// Messages decodes every frame sent so far. Undecodable frames are skipped.
func (c *Conn) Messages() []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*protocol.Message, 0, len(c.frames))
	for _, f := range c.frames {
		if m, err := protocol.Decode(f); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent decoded message or nil.
func (c *Conn) Last() *protocol.Message {
	msgs := c.Messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

var _ transport.Transport = (*Transport)(nil)

// Transport is fed by the test through its helper methods.
type Transport struct {
	events chan transport.Event

	mu     sync.Mutex
	closed bool
}

func NewTransport() *Transport {
	return &Transport{events: make(chan transport.Event, 64)}
}

func (t *Transport) Events() <-chan transport.Event { return t.events }

func (t *Transport) Addr() string { return "fake:0" }

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Accept(c *Conn) {
	t.events <- transport.Event{Kind: transport.EventAccepted, Conn: c}
}

// Frame encodes m and delivers it as received on c.
func (t *Transport) Frame(c *Conn, m *protocol.Message) {
	b, err := protocol.Encode(m)
	if err != nil {
		panic(err)
	}
	t.Raw(c, b)
}

func (t *Transport) Raw(c *Conn, frame []byte) {
	t.events <- transport.Event{Kind: transport.EventFrame, Conn: c, Frame: frame}
}

func (t *Transport) FrameError(c *Conn, err error) {
	t.events <- transport.Event{Kind: transport.EventFrame, Conn: c, Err: err}
}

func (t *Transport) Drop(c *Conn, err error) {
	t.events <- transport.Event{Kind: transport.EventClosed, Conn: c, Err: err}
}
