// Package relay runs the event loop of the chat relay.
//
// One goroutine owns every connection, the session registry and all
// handshake state. It selects over transport events, directory change
// notifications, a handshake sweep ticker and the stop signal, and handles
// each to completion without waiting on any peer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/protocol"
	"github.com/dmitrijs2005/jimrelay/internal/server/auth"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/dmitrijs2005/jimrelay/internal/server/metrics"
	"github.com/dmitrijs2005/jimrelay/internal/server/router"
	"github.com/dmitrijs2005/jimrelay/internal/server/session"
	"github.com/dmitrijs2005/jimrelay/internal/server/transport"
)

const defaultSweepInterval = time.Second

var _ router.Deliverer = (*Loop)(nil)

type Loop struct {
	transport transport.Transport
	directory directory.Directory
	registry  *session.Registry
	auth      *auth.Authenticator
	router    *router.Router
	metrics   *metrics.Metrics
	logger    logging.Logger

	sessions map[string]*session.Session
	notify   chan struct{}

	handshakeTimeout time.Duration
	sweepInterval    time.Duration
	now              func() time.Time
}

// New builds a loop serving t. Unauthenticated connections older than
// handshakeTimeout are closed; zero disables the limit.
func New(t transport.Transport, d directory.Directory, m *metrics.Metrics, logger logging.Logger, handshakeTimeout time.Duration) *Loop {
	l := &Loop{
		transport:        t,
		directory:        d,
		registry:         session.NewRegistry(),
		metrics:          m,
		logger:           logger.With("module", "relay"),
		sessions:         make(map[string]*session.Session),
		notify:           make(chan struct{}, 1),
		handshakeTimeout: handshakeTimeout,
		sweepInterval:    defaultSweepInterval,
		now:              time.Now,
	}
	l.auth = auth.NewAuthenticator(d, l.registry, logger)
	l.router = router.New(d, l.registry, l, logger)
	return l
}

// NotifyDirectoryChanged asks the loop to push 205 to every authenticated
// session. Safe to call from any goroutine; calls made before the loop gets
// to them collapse into one push.
func (l *Loop) NotifyDirectoryChanged() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Run serves until ctx is done or the transport stops delivering events.
// On return every connection is closed, logouts are persisted and the
// transport is closed.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info(ctx, "relay loop started", "addr", l.transport.Addr())

	var sweep <-chan time.Time
	if l.handshakeTimeout > 0 {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	events := l.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return l.shutdown(context.WithoutCancel(ctx))
		case ev, ok := <-events:
			if !ok {
				return l.shutdown(ctx)
			}
			l.handle(ctx, ev)
		case <-l.notify:
			l.broadcastReset(ctx)
		case <-sweep:
			l.sweep(ctx)
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev transport.Event) {
	if ev.Kind == transport.EventAccepted {
		l.sessions[ev.Conn.ID()] = session.New(ev.Conn, l.now())
		l.metrics.ConnectionAccepted()
		l.logger.Debug(ctx, "connection added", "conn", ev.Conn.ID(), "remote", ev.Conn.RemoteAddr())
		return
	}

	s, ok := l.sessions[ev.Conn.ID()]
	if !ok {
		return
	}

	switch ev.Kind {
	case transport.EventClosed:
		reason := "peer closed"
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		l.teardown(ctx, s, reason)
	case transport.EventFrame:
		if ev.Err != nil {
			l.framingError(ctx, s, ev.Err)
			return
		}
		m, err := protocol.Decode(ev.Frame)
		if err != nil {
			l.framingError(ctx, s, err)
			return
		}
		l.metrics.Request(m.Action)
		l.dispatch(ctx, s, m)
	}
}

func (l *Loop) dispatch(ctx context.Context, s *session.Session, m *protocol.Message) {
	if s.Authenticated() {
		out := l.router.Dispatch(ctx, s, m)
		if out.Delivered {
			l.metrics.MessageRelayed()
		}
		if out.Reply != nil && !l.reply(ctx, s, out.Reply) {
			return
		}
		if out.Close {
			l.teardown(ctx, s, "exit")
		}
		return
	}

	reply, err := l.auth.Handle(ctx, s, m)
	if err == nil && s.Authenticated() {
		l.metrics.Handshake(metrics.HandshakeOK)
		l.metrics.SessionOpened()
	}
	if reply != nil && !l.reply(ctx, s, reply) {
		return
	}
	if err != nil && !errors.Is(err, common.ErrProtocolViolation) {
		l.metrics.Handshake(metrics.HandshakeRejected)
		l.teardown(ctx, s, err.Error())
	}
}

// framingError answers an undecodable frame. A client that was challenged
// loses the handshake; anyone else gets 400 and may go on.
func (l *Loop) framingError(ctx context.Context, s *session.Session, err error) {
	l.logger.Info(ctx, "undecodable frame", "conn", s.Conn.ID(), "user", s.Username, "error", err)

	if s.State == session.Challenged {
		s.Reject()
		l.metrics.Handshake(metrics.HandshakeRejected)
		if l.reply(ctx, s, protocol.BadRequest(protocol.ReasonBadRequest)) {
			l.teardown(ctx, s, "undecodable handshake response")
		}
		return
	}
	l.reply(ctx, s, protocol.BadRequest(protocol.ReasonBadRequest))
}

// reply queues m to the requester of the current frame. A requester that
// cannot take its reply is torn down and false is returned.
func (l *Loop) reply(ctx context.Context, s *session.Session, m *protocol.Message) bool {
	frame, err := protocol.Encode(m)
	if err != nil {
		l.logger.Warn(ctx, "reply does not fit a frame", "conn", s.Conn.ID(), "error", err)
		frame, _ = protocol.Encode(protocol.BadRequest("reply too large"))
	}
	if err := s.Conn.Send(frame); err != nil {
		l.teardown(ctx, s, fmt.Sprintf("reply failed: %v", err))
		return false
	}
	return true
}

// Deliver forwards m to an authenticated recipient, as the frame it arrived
// in when there is one. A full queue leaves the recipient alone; a broken
// connection is torn down.
func (l *Loop) Deliver(ctx context.Context, to *session.Session, m *protocol.Message) error {
	frame := m.Frame()
	if frame == nil {
		var err error
		if frame, err = protocol.Encode(m); err != nil {
			return fmt.Errorf("%w: %w", common.ErrPeerUnreachable, err)
		}
	}

	err := to.Conn.Send(frame)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrQueueFull):
		l.metrics.DeliveryFailed()
	default:
		l.metrics.DeliveryFailed()
		l.teardown(ctx, to, fmt.Sprintf("delivery failed: %v", err))
	}
	return fmt.Errorf("deliver to %q: %w: %w", to.Username, common.ErrPeerUnreachable, err)
}

func (l *Loop) broadcastReset(ctx context.Context) {
	frame, err := protocol.Encode(protocol.Reset())
	if err != nil {
		return
	}
	for _, s := range l.registry.Sessions() {
		err := s.Conn.Send(frame)
		switch {
		case err == nil:
		case errors.Is(err, transport.ErrQueueFull):
			l.logger.Warn(ctx, "reset push skipped", "user", s.Username, "error", err)
		default:
			l.teardown(ctx, s, fmt.Sprintf("reset push failed: %v", err))
		}
	}
}

func (l *Loop) sweep(ctx context.Context) {
	deadline := l.now().Add(-l.handshakeTimeout)
	for _, s := range l.sessions {
		if s.Authenticated() || s.ConnectedAt.After(deadline) {
			continue
		}
		if s.State == session.Challenged {
			l.metrics.Handshake(metrics.HandshakeRejected)
		}
		s.Reject()
		if frame, err := protocol.Encode(protocol.BadRequest("handshake timeout")); err == nil {
			_ = s.Conn.Send(frame)
		}
		l.teardown(ctx, s, "handshake timeout")
	}
}

// teardown drops s from the loop. An authenticated session is removed from
// the registry and its logout persisted. Repeated calls are no-ops.
func (l *Loop) teardown(ctx context.Context, s *session.Session, reason string) {
	id := s.Conn.ID()
	if _, ok := l.sessions[id]; !ok {
		return
	}
	delete(l.sessions, id)

	log := l.logger.With("conn", id, "user", s.Username)
	if s.Authenticated() && l.registry.Remove(s) {
		l.metrics.SessionClosed()
		if err := l.directory.RecordLogout(ctx, s.Username); err != nil {
			log.Error(ctx, "record logout failed", "error", err)
		}
	}
	_ = s.Conn.Close()
	log.Info(ctx, "connection closed", "reason", reason)
}

func (l *Loop) shutdown(ctx context.Context) error {
	for _, s := range l.sessions {
		l.teardown(ctx, s, "relay stopping")
	}
	err := l.transport.Close()
	l.logger.Info(ctx, "relay loop stopped")
	return err
}
