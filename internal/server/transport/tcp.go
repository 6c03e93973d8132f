package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/protocol"
)

const (
	// SendQueueSize is the number of frames a connection buffers before Send
	// reports ErrQueueFull.
	SendQueueSize = 64
	// WriteTimeout bounds a single socket write.
	WriteTimeout  = 10 * time.Second
	eventsBufSize = 256
)

var _ Transport = (*TCPTransport)(nil)

// TCPTransport accepts TCP connections and turns them into Events. Each
// connection gets a reader and a writer goroutine.
type TCPTransport struct {
	ln     net.Listener
	events chan Event
	done   chan struct{}
	logger logging.Logger

	mu     sync.Mutex
	conns  map[string]*tcpConn
	closed bool

	wg sync.WaitGroup
}

// Listen binds addr and starts accepting.
func Listen(ctx context.Context, addr string, logger logging.Logger) (*TCPTransport, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	t := &TCPTransport{
		ln:     ln,
		events: make(chan Event, eventsBufSize),
		done:   make(chan struct{}),
		logger: logger.With("module", "transport"),
		conns:  make(map[string]*tcpConn),
	}

	t.wg.Add(1)
	go t.acceptLoop(ctx)

	return t, nil
}

func (t *TCPTransport) Events() <-chan Event { return t.events }

func (t *TCPTransport) Addr() string { return t.ln.Addr().String() }

// Close stops the listener, closes every connection and waits for all
// goroutines to finish. Events is not closed.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	conns := make([]*tcpConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	err := t.ln.Close()
	for _, c := range conns {
		_ = c.Close()
	}
	t.wg.Wait()
	return err
}

func (t *TCPTransport) acceptLoop(ctx context.Context) {
	defer t.wg.Done()

	for {
		nc, err := t.ln.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn(ctx, "accept failed", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		c := newTCPConn(nc, t.logger)

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			_ = nc.Close()
			return
		}
		t.conns[c.id] = c
		t.wg.Add(2)
		t.mu.Unlock()

		t.logger.Debug(ctx, "connection accepted", "conn", c.id, "remote", c.remote)
		t.emit(Event{Kind: EventAccepted, Conn: c})

		go func() {
			defer t.wg.Done()
			c.writeLoop()
		}()
		go func() {
			defer t.wg.Done()
			t.readLoop(c)
		}()
	}
}

func (t *TCPTransport) readLoop(c *tcpConn) {
	// The writer only exits through Close, so a reader that is done must
	// close the conn or TCPTransport.Close would wait on it forever.
	defer func() {
		t.mu.Lock()
		delete(t.conns, c.id)
		t.mu.Unlock()
		_ = c.Close()
	}()

	fr := protocol.NewFrameReader(c.conn)
	for {
		frame, err := fr.ReadFrame()
		switch {
		case err == nil:
			if !t.emit(Event{Kind: EventFrame, Conn: c, Frame: frame}) {
				return
			}
		case errors.Is(err, protocol.ErrFrameTooLarge):
			if !t.emit(Event{Kind: EventFrame, Conn: c, Err: err}) {
				return
			}
		default:
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			c.markBroken()
			t.emit(Event{Kind: EventClosed, Conn: c, Err: err})
			return
		}
	}
}

// emit reports false once the transport is closed.
func (t *TCPTransport) emit(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

type tcpConn struct {
	id     string
	conn   net.Conn
	remote string
	logger logging.Logger

	out chan []byte

	mu     sync.Mutex
	closed bool
	broken bool
}

func newTCPConn(nc net.Conn, logger logging.Logger) *tcpConn {
	id := uuid.NewString()
	return &tcpConn{
		id:     id,
		conn:   nc,
		remote: nc.RemoteAddr().String(),
		logger: logger.With("conn", id),
		out:    make(chan []byte, SendQueueSize),
	}
}

func (c *tcpConn) ID() string { return c.id }

func (c *tcpConn) RemoteAddr() string { return c.remote }

func (c *tcpConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.broken {
		return ErrConnClosed
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close lets the writer drain the queue; the writer closes the socket.
func (c *tcpConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.out)
	return nil
}

func (c *tcpConn) markBroken() {
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()
}

func (c *tcpConn) writeLoop() {
	defer c.conn.Close()

	failed := false
	for frame := range c.out {
		if failed {
			continue
		}
		err := c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err == nil {
			_, err = c.conn.Write(frame)
		}
		if err != nil {
			failed = true
			c.markBroken()
			c.logger.Debug(context.Background(), "write failed", "error", err)
			// Unblock the reader so the loop learns about the failure.
			_ = c.conn.Close()
		}
	}
}
