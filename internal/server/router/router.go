// Package router executes the actions of authenticated sessions.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/protocol"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/dmitrijs2005/jimrelay/internal/server/session"
)

// Deliverer forwards a message to another session without blocking. It
// returns an error wrapping common.ErrPeerUnreachable when the recipient
// cannot take the message in this pass.
type Deliverer interface {
	Deliver(ctx context.Context, to *session.Session, m *protocol.Message) error
}

// Outcome is what the caller must do after a dispatch.
type Outcome struct {
	// Reply goes back to the requesting session, nil for none.
	Reply *protocol.Message
	// Close tears the requesting session down.
	Close bool
	// Delivered is set when a message reached its recipient.
	Delivered bool
}

type Router struct {
	directory directory.Directory
	registry  *session.Registry
	deliverer Deliverer
	logger    logging.Logger
}

func New(d directory.Directory, r *session.Registry, deliverer Deliverer, logger logging.Logger) *Router {
	return &Router{
		directory: d,
		registry:  r,
		deliverer: deliverer,
		logger:    logger.With("module", "router"),
	}
}

// Dispatch runs m on behalf of s. Failures are reported in the reply; the
// session is only closed on exit.
func (r *Router) Dispatch(ctx context.Context, s *session.Session, m *protocol.Message) Outcome {
	log := r.logger.With("conn", s.Conn.ID(), "user", s.Username, "action", string(m.Action))

	if !s.Authenticated() {
		return r.violation(ctx, log, fmt.Errorf("session in state %s", s.State))
	}
	if err := checkIdentity(s, m); err != nil {
		return r.violation(ctx, log, err)
	}

	switch m.Action {
	case protocol.ActionMessage:
		return r.message(ctx, log, s, m)
	case protocol.ActionGetUsers:
		names, err := r.directory.UserNames(ctx)
		if err != nil {
			return r.storage(ctx, log, err)
		}
		return Outcome{Reply: protocol.List(names)}
	case protocol.ActionGetContacts:
		names, err := r.directory.Contacts(ctx, s.Username)
		if err != nil {
			return r.storage(ctx, log, err)
		}
		return Outcome{Reply: protocol.List(names)}
	case protocol.ActionAddContact:
		return r.addContact(ctx, log, s, m)
	case protocol.ActionDelContact:
		if m.AccountName == "" {
			return r.violation(ctx, log, errors.New("del without account_name"))
		}
		if err := r.directory.RemoveContact(ctx, s.Username, m.AccountName); err != nil {
			return r.storage(ctx, log, err)
		}
		return Outcome{Reply: protocol.OK()}
	case protocol.ActionPubKeyNeed:
		return r.publicKey(ctx, log, m)
	case protocol.ActionExit:
		log.Info(ctx, "user leaves")
		return Outcome{Close: true}
	default:
		return r.violation(ctx, log, fmt.Errorf("unexpected action %q", m.Action))
	}
}

func (r *Router) message(ctx context.Context, log logging.Logger, s *session.Session, m *protocol.Message) Outcome {
	if m.Time == nil || m.To == "" || m.Text == "" {
		return r.violation(ctx, log, errors.New("message without time, to or text"))
	}

	dest, online := r.registry.Lookup(m.To)
	if !online {
		_, err := r.directory.User(ctx, m.To)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			log.Info(ctx, "recipient not registered", "to", m.To)
			return Outcome{Reply: protocol.BadRequest(fmt.Sprintf("user %s is not registered", m.To))}
		case err != nil:
			return r.storage(ctx, log, err)
		default:
			log.Info(ctx, "recipient offline", "to", m.To)
			return Outcome{Reply: protocol.BadRequest(fmt.Sprintf("user %s is not online", m.To))}
		}
	}

	if err := r.deliverer.Deliver(ctx, dest, m); err != nil {
		log.Warn(ctx, "delivery failed", "to", m.To, "error", err)
		return Outcome{Reply: protocol.BadRequest(fmt.Sprintf("user %s is not reachable right now", m.To))}
	}

	if err := r.directory.RecordMessage(ctx, m.From, m.To); err != nil {
		out := r.storage(ctx, log, err)
		out.Delivered = true
		return out
	}

	log.Debug(ctx, "message relayed", "to", m.To)
	return Outcome{Reply: protocol.OK(), Delivered: true}
}

func (r *Router) addContact(ctx context.Context, log logging.Logger, s *session.Session, m *protocol.Message) Outcome {
	if m.AccountName == "" {
		return r.violation(ctx, log, errors.New("add without account_name"))
	}
	err := r.directory.AddContact(ctx, s.Username, m.AccountName)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return Outcome{Reply: protocol.BadRequest(fmt.Sprintf("user %s is not registered", m.AccountName))}
	case err != nil:
		return r.storage(ctx, log, err)
	}
	return Outcome{Reply: protocol.OK()}
}

func (r *Router) publicKey(ctx context.Context, log logging.Logger, m *protocol.Message) Outcome {
	if m.AccountName == "" {
		return r.violation(ctx, log, errors.New("pubkey_need without account_name"))
	}
	key, err := r.directory.PublicKey(ctx, m.AccountName)
	switch {
	case errors.Is(err, common.ErrorNotFound) || (err == nil && key == ""):
		return Outcome{Reply: protocol.BadRequest(protocol.ReasonNoPublicKey)}
	case err != nil:
		return r.storage(ctx, log, err)
	}
	return Outcome{Reply: &protocol.Message{Response: protocol.StatusChallenge, Bin: key}}
}

func (r *Router) violation(ctx context.Context, log logging.Logger, err error) Outcome {
	log.Info(ctx, "bad request", "error", fmt.Errorf("%w: %w", common.ErrProtocolViolation, err))
	return Outcome{Reply: protocol.BadRequest(protocol.ReasonBadRequest)}
}

func (r *Router) storage(ctx context.Context, log logging.Logger, err error) Outcome {
	log.Error(ctx, "directory call failed", "error", err)
	return Outcome{Reply: protocol.BadRequest(protocol.ReasonStorage)}
}

// checkIdentity matches the identity declared in m against the session
// owner. message declares it in from, exit and get_users in user or
// account_name, everything else in user. pubkey_need may omit it.
func checkIdentity(s *session.Session, m *protocol.Message) error {
	var declared string
	switch m.Action {
	case protocol.ActionMessage:
		declared = m.From
	case protocol.ActionExit, protocol.ActionGetUsers:
		declared = m.UserName()
		if declared == "" {
			declared = m.AccountName
		}
	case protocol.ActionPubKeyNeed:
		if m.User == nil {
			return nil
		}
		declared = m.UserName()
	default:
		declared = m.UserName()
	}

	if declared != s.Username {
		return fmt.Errorf("declared identity %q on session of %q", declared, s.Username)
	}
	return nil
}
