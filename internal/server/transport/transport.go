// Package transport abstracts the byte streams the relay loop serves.
//
// The loop consumes Events from a Transport and writes through Conn.Send. It
// never sees listeners or sockets; those live in the TCP implementation.
package transport

import "errors"

var (
	// ErrQueueFull means the connection cannot take another frame right now.
	// The connection itself is still healthy.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrConnClosed is returned by Send after Close or a write failure.
	ErrConnClosed = errors.New("connection closed")
)

// EventKind tells what happened on a connection.
type EventKind int

const (
	// EventAccepted announces a new connection.
	EventAccepted EventKind = iota
	// EventFrame carries one received frame, or a framing error in Err when
	// the frame could not be delimited. The stream stays usable either way.
	EventFrame
	// EventClosed is the last event of a connection. Err holds the read
	// error, nil on a clean EOF.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "accepted"
	case EventFrame:
		return "frame"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind  EventKind
	Conn  Conn
	Frame []byte
	Err   error
}

// Conn is one framed connection.
type Conn interface {
	ID() string
	// RemoteAddr is the peer address in host:port form.
	RemoteAddr() string
	// Send queues one encoded frame without blocking. It fails with
	// ErrQueueFull when the outbound queue has no room and with
	// ErrConnClosed once the connection is unusable.
	Send(frame []byte) error
	// Close flushes queued frames and closes the stream. Safe to call more
	// than once.
	Close() error
}

// Transport delivers connection events to a single consumer.
type Transport interface {
	Events() <-chan Event
	Addr() string
	// Close stops accepting and closes every open connection.
	Close() error
}
