// Package session tracks the per-connection handshake state and the live
// username to connection bindings of the relay.
//
// Nothing here is safe for concurrent use. Sessions and the Registry are
// owned by the relay loop goroutine.
package session

import (
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/server/transport"
)

// State is the handshake position of a connection.
type State int

const (
	Connected State = iota
	Challenged
	Authenticated
	Rejected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Challenged:
		return "challenged"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Session is the relay's view of one connection.
type Session struct {
	Conn        transport.Conn
	Username    string
	PublicKey   string
	State       State
	ConnectedAt time.Time

	expected []byte
}

func New(conn transport.Conn, now time.Time) *Session {
	return &Session{Conn: conn, State: Connected, ConnectedAt: now}
}

// Challenge binds the claimed identity and the digest the client must
// answer with.
func (s *Session) Challenge(username, publicKey string, expected []byte) {
	s.Username = username
	s.PublicKey = publicKey
	s.expected = expected
	s.State = Challenged
}

// Expected returns the pending digest, nil outside Challenged.
func (s *Session) Expected() []byte {
	return s.expected
}

func (s *Session) Authenticate() {
	s.clearChallenge()
	s.State = Authenticated
}

// Reject drops any partial handshake state.
func (s *Session) Reject() {
	s.clearChallenge()
	s.State = Rejected
}

func (s *Session) Authenticated() bool {
	return s.State == Authenticated
}

func (s *Session) clearChallenge() {
	common.WipeByteArray(s.expected)
	s.expected = nil
}
