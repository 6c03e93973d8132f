// Package services contains application services for the chat client.
// ChatService ties the relay connection to the local store: requests go to
// the relay and their results are mirrored locally, while a worker turns
// relay events into notifications for the user interface.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/client/models"
	"github.com/dmitrijs2005/jimrelay/internal/client/store"
	"github.com/dmitrijs2005/jimrelay/internal/client/transport"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
)

const notificationsBufSize = 64

var ErrUnknownUser = errors.New("unknown user")

// Relay is the part of transport.Client the chat service uses.
type Relay interface {
	Users(ctx context.Context) ([]string, error)
	Contacts(ctx context.Context) ([]string, error)
	AddContact(ctx context.Context, name string) error
	RemoveContact(ctx context.Context, name string) error
	PublicKey(ctx context.Context, name string) (string, error)
	Send(ctx context.Context, to, text string) error
	Events() <-chan transport.Event
	Close() error
}

var _ Relay = (*transport.Client)(nil)

type NotificationKind int

const (
	NoteMessage NotificationKind = iota
	NoteListsChanged
	NoteDisconnected
)

// Notification is something the user should see.
type Notification struct {
	Kind NotificationKind
	From string
	Text string
	Err  error
}

// ChatService defines the chat operations of the CLI.
//
// Lists (Users, Contacts, History) are read from the local store; Sync
// refreshes them from the relay. Run must be running for Notifications to
// receive anything.
type ChatService interface {
	Sync(ctx context.Context) error
	Users(ctx context.Context) ([]string, error)
	Contacts(ctx context.Context) ([]string, error)
	AddContact(ctx context.Context, name string) error
	RemoveContact(ctx context.Context, name string) error
	Send(ctx context.Context, to, text string) error
	History(ctx context.Context, contact string) ([]models.Message, error)
	PublicKey(ctx context.Context, name string) (string, error)
	Notifications() <-chan Notification
	Run(ctx context.Context) error
	Close() error
}

type chatService struct {
	relay  Relay
	store  *store.Store
	notes  chan Notification
	logger logging.Logger
}

func NewChatService(r Relay, s *store.Store, logger logging.Logger) ChatService {
	return &chatService{
		relay:  r,
		store:  s,
		notes:  make(chan Notification, notificationsBufSize),
		logger: logger.With("module", "chat"),
	}
}

// Sync replaces the local user and contact lists with the relay's.
func (c *chatService) Sync(ctx context.Context) error {
	users, err := c.relay.Users(ctx)
	if err != nil {
		return fmt.Errorf("fetch users: %w", err)
	}
	if err := c.store.ReplaceUsers(ctx, users); err != nil {
		return err
	}

	contacts, err := c.relay.Contacts(ctx)
	if err != nil {
		return fmt.Errorf("fetch contacts: %w", err)
	}
	return c.store.ReplaceContacts(ctx, contacts)
}

func (c *chatService) Users(ctx context.Context) ([]string, error) {
	return c.store.Users(ctx)
}

func (c *chatService) Contacts(ctx context.Context) ([]string, error) {
	return c.store.Contacts(ctx)
}

// AddContact only accepts users from the last synced user list.
func (c *chatService) AddContact(ctx context.Context, name string) error {
	known, err := c.store.KnownUser(ctx, name)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}
	if err := c.relay.AddContact(ctx, name); err != nil {
		return err
	}
	return c.store.AddContact(ctx, name)
}

func (c *chatService) RemoveContact(ctx context.Context, name string) error {
	if err := c.relay.RemoveContact(ctx, name); err != nil {
		return err
	}
	return c.store.RemoveContact(ctx, name)
}

// Send relays text and records it in the history once the relay accepted it.
func (c *chatService) Send(ctx context.Context, to, text string) error {
	if err := c.relay.Send(ctx, to, text); err != nil {
		return err
	}
	return c.store.LogMessage(ctx, to, models.Outgoing, text)
}

func (c *chatService) History(ctx context.Context, contact string) ([]models.Message, error) {
	return c.store.History(ctx, contact)
}

func (c *chatService) PublicKey(ctx context.Context, name string) (string, error) {
	return c.relay.PublicKey(ctx, name)
}

// Notifications is closed when Run returns.
func (c *chatService) Notifications() <-chan Notification { return c.notes }

// Run consumes relay events until ctx is done or the connection is lost, in
// which case the loss is returned.
func (c *chatService) Run(ctx context.Context) error {
	defer close(c.notes)

	events := c.relay.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (c *chatService) handle(ctx context.Context, ev transport.Event) error {
	switch ev.Kind {
	case transport.EventMessage:
		m := ev.Message
		if err := c.store.LogMessage(ctx, m.From, models.Incoming, m.Text); err != nil {
			c.logger.Error(ctx, "failed to store message", "from", m.From, "error", err)
		}
		c.notify(ctx, Notification{Kind: NoteMessage, From: m.From, Text: m.Text})
	case transport.EventReset:
		if err := c.Sync(ctx); err != nil {
			c.logger.Error(ctx, "list refresh failed", "error", err)
		}
		c.notify(ctx, Notification{Kind: NoteListsChanged})
	case transport.EventLost:
		c.notify(ctx, Notification{Kind: NoteDisconnected, Err: ev.Err})
		return ev.Err
	}
	return nil
}

func (c *chatService) notify(ctx context.Context, n Notification) {
	select {
	case c.notes <- n:
	case <-ctx.Done():
	}
}

func (c *chatService) Close() error {
	return c.relay.Close()
}
