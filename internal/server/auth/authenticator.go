// Package auth runs the challenge-response handshake that turns a fresh
// connection into an authenticated session.
//
// The client announces itself with presence. The relay answers with a random
// nonce and expects HMAC-SHA256(verifier, nonce) back. The verifier never
// travels over the wire.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/cryptox"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/netx"
	"github.com/dmitrijs2005/jimrelay/internal/protocol"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/dmitrijs2005/jimrelay/internal/server/session"
)

// Authenticator drives the handshake of unauthenticated sessions. It shares
// the Registry with the router and must be used from the loop goroutine.
type Authenticator struct {
	directory directory.Directory
	registry  *session.Registry
	logger    logging.Logger
	newNonce  func() []byte
}

func NewAuthenticator(d directory.Directory, r *session.Registry, logger logging.Logger) *Authenticator {
	return &Authenticator{
		directory: d,
		registry:  r,
		logger:    logger.With("module", "auth"),
		newNonce:  cryptox.NewNonce,
	}
}

// Handle advances the handshake of s with m and returns the reply to send, if
// any. An error wrapping common.ErrProtocolViolation leaves the connection
// usable. Any other error means the caller must close the connection after
// sending the reply.
func (a *Authenticator) Handle(ctx context.Context, s *session.Session, m *protocol.Message) (*protocol.Message, error) {
	switch s.State {
	case session.Connected:
		return a.presence(ctx, s, m)
	case session.Challenged:
		return a.response(ctx, s, m)
	default:
		return nil, fmt.Errorf("handshake in state %s: %w", s.State, common.ErrProtocolViolation)
	}
}

func (a *Authenticator) presence(ctx context.Context, s *session.Session, m *protocol.Message) (*protocol.Message, error) {
	name := m.UserName()
	if m.Action != protocol.ActionPresence || m.Time == nil || name == "" {
		return protocol.BadRequest(protocol.ReasonBadRequest),
			fmt.Errorf("expected presence, got %q: %w", m.Action, common.ErrProtocolViolation)
	}

	log := a.logger.With("conn", s.Conn.ID(), "user", name)

	if _, busy := a.registry.Lookup(name); busy {
		s.Reject()
		log.Info(ctx, "presence rejected, name in use")
		return protocol.BadRequest(protocol.ReasonNameInUse),
			fmt.Errorf("presence %q: %w: %s", name, common.ErrAuthRejected, protocol.ReasonNameInUse)
	}

	user, err := a.directory.User(ctx, name)
	if err != nil {
		s.Reject()
		if errors.Is(err, common.ErrorNotFound) {
			log.Info(ctx, "presence rejected, unknown user")
			return protocol.BadRequest(protocol.ReasonNotRegistered),
				fmt.Errorf("presence %q: %w: %s", name, common.ErrAuthRejected, protocol.ReasonNotRegistered)
		}
		log.Error(ctx, "user lookup failed", "error", err)
		return protocol.BadRequest(protocol.ReasonStorage), fmt.Errorf("presence %q: %w", name, err)
	}

	publicKey := m.UserKey()
	if publicKey == "" {
		publicKey = user.PublicKey
	}

	nonce := a.newNonce()
	defer common.WipeByteArray(nonce)

	s.Challenge(name, publicKey, cryptox.ChallengeDigest(user.Verifier, nonce))
	log.Debug(ctx, "challenge issued")

	return protocol.Challenge(nonce), nil
}

func (a *Authenticator) response(ctx context.Context, s *session.Session, m *protocol.Message) (*protocol.Message, error) {
	log := a.logger.With("conn", s.Conn.ID(), "user", s.Username)

	reject := func(reason string) (*protocol.Message, error) {
		s.Reject()
		log.Info(ctx, "handshake rejected", "reason", reason)
		return protocol.BadRequest(reason),
			fmt.Errorf("response from %q: %w: %s", s.Username, common.ErrAuthRejected, reason)
	}

	if m.Response != protocol.StatusChallenge || m.Bin == "" {
		return reject(protocol.ReasonBadRequest)
	}
	digest, err := m.BinBytes()
	if err != nil {
		return reject(protocol.ReasonBadRequest)
	}
	if !cryptox.CheckDigest(s.Expected(), digest) {
		return reject(protocol.ReasonBadCredentials)
	}

	// Another connection may have completed the handshake for the same name
	// while this one was challenged.
	if cur, busy := a.registry.Lookup(s.Username); busy && cur != s {
		return reject(protocol.ReasonNameInUse)
	}

	ip, port, err := netx.SplitHostPort(s.Conn.RemoteAddr())
	if err != nil {
		ip, port = s.Conn.RemoteAddr(), 0
	}

	if err := a.directory.RecordLogin(ctx, s.Username, ip, port, s.PublicKey); err != nil {
		s.Reject()
		log.Error(ctx, "record login failed", "error", err)
		return protocol.BadRequest(protocol.ReasonStorage), fmt.Errorf("login %q: %w", s.Username, err)
	}

	s.Authenticate()
	if err := a.registry.Register(s); err != nil {
		s.Reject()
		return protocol.BadRequest(protocol.ReasonNameInUse), err
	}

	log.Info(ctx, "user authenticated", "remote", s.Conn.RemoteAddr())
	return protocol.OK(), nil
}
