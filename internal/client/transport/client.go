package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/cryptox"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/protocol"
)

const (
	DefaultAttempts = 5
	DefaultBackoff  = time.Second
	DefaultTimeout  = 5 * time.Second
	eventsBufSize   = 64
)

var (
	ErrConnectionLost = errors.New("connection lost")
	ErrClosed         = errors.New("client closed")
	ErrTimeout        = errors.New("no reply from server")
)

// ServerError is a 400 reply to a request.
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string { return "server: " + e.Reason }

type EventKind int

const (
	// EventMessage carries a direct message addressed to this user.
	EventMessage EventKind = iota
	// EventReset asks the client to reload its user and contact lists.
	EventReset
	// EventLost is the last event; Err says what happened.
	EventLost
)

type Event struct {
	Kind    EventKind
	Message *protocol.Message
	Err     error
}

type Options struct {
	Addr     string
	Attempts int
	Backoff  time.Duration
	// Timeout bounds the handshake and every request.
	Timeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Attempts < 1 {
		o.Attempts = DefaultAttempts
	}
	if o.Backoff < 0 {
		o.Backoff = DefaultBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

type Credentials struct {
	UserName  string
	Password  []byte
	PublicKey string
}

// dialContext is a test seam for net.Dialer.DialContext.
var dialContext = func(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// Dial connects to the relay, trying up to opts.Attempts times with
// opts.Backoff between attempts.
func Dial(ctx context.Context, opts Options, logger logging.Logger) (net.Conn, error) {
	opts.setDefaults()

	var lastErr error
	for i := 1; i <= opts.Attempts; i++ {
		logger.Info(ctx, "connection attempt", "addr", opts.Addr, "attempt", i)
		conn, err := dialContext(ctx, opts.Addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.Debug(ctx, "connection attempt failed", "error", err)

		if i == opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Backoff):
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", common.ErrPeerUnreachable, opts.Addr, opts.Attempts, lastErr)
}

type Client struct {
	conn    net.Conn
	reader  *protocol.FrameReader
	user    string
	timeout time.Duration
	logger  logging.Logger

	reqMu   sync.Mutex
	waiting atomic.Bool
	replies chan *protocol.Message

	events    chan Event
	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	err       error
}

// Connect dials the relay and logs in. The returned client is ready for
// requests and its receiver is running.
func Connect(ctx context.Context, opts Options, creds Credentials, logger logging.Logger) (*Client, error) {
	opts.setDefaults()
	logger = logger.With("module", "transport", "user", creds.UserName)

	conn, err := Dial(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	c := newClient(conn, creds.UserName, opts.Timeout, logger)
	if err := c.handshake(ctx, creds); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info(ctx, "logged in", "addr", opts.Addr)

	go c.receive(context.WithoutCancel(ctx))
	return c, nil
}

func newClient(conn net.Conn, user string, timeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		conn:    conn,
		reader:  protocol.NewFrameReader(conn),
		user:    user,
		timeout: timeout,
		logger:  logger,
		replies: make(chan *protocol.Message, 1),
		events:  make(chan Event, eventsBufSize),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
}

func (c *Client) handshake(ctx context.Context, creds Credentials) error {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	if err := c.send(protocol.Presence(creds.UserName, creds.PublicKey)); err != nil {
		return err
	}
	reply, err := c.read()
	if err != nil {
		return err
	}
	switch reply.Response {
	case protocol.StatusChallenge:
	case protocol.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrAuthRejected, reply.Error)
	default:
		return fmt.Errorf("%w: unexpected response %d to presence", common.ErrProtocolViolation, reply.Response)
	}

	nonce, err := reply.BinBytes()
	if err != nil || len(nonce) == 0 {
		return fmt.Errorf("%w: bad challenge", common.ErrProtocolViolation)
	}
	digest := cryptox.ChallengeDigest(cryptox.MakeVerifier(creds.UserName, creds.Password), nonce)
	if err := c.send(protocol.Challenge(digest)); err != nil {
		return err
	}

	reply, err = c.read()
	if err != nil {
		return err
	}
	switch reply.Response {
	case protocol.StatusOK:
		return nil
	case protocol.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrAuthRejected, reply.Error)
	default:
		return fmt.Errorf("%w: unexpected response %d to challenge", common.ErrProtocolViolation, reply.Response)
	}
}

func (c *Client) send(m *protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return nil
}

// read is only used before the receiver starts.
func (c *Client) read() (*protocol.Message, error) {
	frame, err := c.reader.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return protocol.Decode(frame)
}

func (c *Client) receive(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	for {
		frame, err := c.reader.ReadFrame()
		if errors.Is(err, protocol.ErrFrameTooLarge) {
			c.logger.Warn(ctx, "dropping oversized frame")
			continue
		}
		if err != nil {
			c.fail(ctx, err)
			return
		}

		m, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn(ctx, "dropping undecodable frame", "error", err)
			continue
		}
		c.dispatch(ctx, m)
	}
}

func (c *Client) dispatch(ctx context.Context, m *protocol.Message) {
	switch {
	case m.Response == protocol.StatusReset:
		c.logger.Debug(ctx, "list reset requested")
		c.emit(Event{Kind: EventReset})
	case m.Response != 0:
		if c.waiting.CompareAndSwap(true, false) {
			c.replies <- m
			return
		}
		c.logger.Warn(ctx, "unsolicited reply", "response", m.Response)
	case m.Action == protocol.ActionMessage && m.To == c.user && m.From != "":
		c.logger.Debug(ctx, "message received", "from", m.From)
		c.emit(Event{Kind: EventMessage, Message: m})
	default:
		c.logger.Warn(ctx, "unexpected frame", "action", m.Action)
	}
}

func (c *Client) fail(ctx context.Context, err error) {
	select {
	case <-c.closing:
		c.err = ErrClosed
		return
	default:
	}
	c.err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
	c.logger.Error(ctx, "connection lost", "error", err)
	c.emit(Event{Kind: EventLost, Err: c.err})
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.closing:
	}
}

// Events delivers unsolicited frames. It is closed when the receiver stops.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) UserName() string { return c.user }

func (c *Client) request(ctx context.Context, m *protocol.Message) (*protocol.Message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	select {
	case <-c.done:
		return nil, c.err
	default:
	}

	// a reply that arrived after its requester gave up
	select {
	case <-c.replies:
	default:
	}

	c.waiting.Store(true)
	if err := c.send(m); err != nil {
		c.waiting.Store(false)
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-c.replies:
		return r, nil
	case <-c.done:
		c.waiting.Store(false)
		return nil, c.err
	case <-ctx.Done():
		c.waiting.Store(false)
		return nil, ctx.Err()
	case <-timer.C:
		c.waiting.Store(false)
		return nil, fmt.Errorf("%w: %s", ErrTimeout, m.Action)
	}
}

func expect(r *protocol.Message, status int) error {
	switch r.Response {
	case status:
		return nil
	case protocol.StatusBadRequest:
		return &ServerError{Reason: r.Error}
	default:
		return fmt.Errorf("%w: unexpected response %d", common.ErrProtocolViolation, r.Response)
	}
}

func (c *Client) list(ctx context.Context, action protocol.Action) ([]string, error) {
	r, err := c.request(ctx, protocol.Request(action, c.user, ""))
	if err != nil {
		return nil, err
	}
	if err := expect(r, protocol.StatusList); err != nil {
		return nil, err
	}
	return r.DataList, nil
}

// Users lists every account registered on the relay.
func (c *Client) Users(ctx context.Context) ([]string, error) {
	return c.list(ctx, protocol.ActionGetUsers)
}

// Contacts lists the contacts stored on the relay for this user.
func (c *Client) Contacts(ctx context.Context) ([]string, error) {
	return c.list(ctx, protocol.ActionGetContacts)
}

func (c *Client) AddContact(ctx context.Context, name string) error {
	r, err := c.request(ctx, protocol.Request(protocol.ActionAddContact, c.user, name))
	if err != nil {
		return err
	}
	return expect(r, protocol.StatusOK)
}

func (c *Client) RemoveContact(ctx context.Context, name string) error {
	r, err := c.request(ctx, protocol.Request(protocol.ActionDelContact, c.user, name))
	if err != nil {
		return err
	}
	return expect(r, protocol.StatusOK)
}

// PublicKey fetches the public key name published at login.
func (c *Client) PublicKey(ctx context.Context, name string) (string, error) {
	r, err := c.request(ctx, protocol.Request(protocol.ActionPubKeyNeed, c.user, name))
	if err != nil {
		return "", err
	}
	if err := expect(r, protocol.StatusChallenge); err != nil {
		return "", err
	}
	return r.Bin, nil
}

// Send relays text to the user to.
func (c *Client) Send(ctx context.Context, to, text string) error {
	r, err := c.request(ctx, protocol.Text(c.user, to, text))
	if err != nil {
		return err
	}
	return expect(r, protocol.StatusOK)
}

// Close says goodbye to the relay and waits for the receiver to stop. It is
// safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.reqMu.Lock()
		close(c.closing)
		select {
		case <-c.done:
		default:
			if sendErr := c.send(protocol.Request(protocol.ActionExit, c.user, "")); sendErr != nil {
				c.logger.Debug(context.Background(), "exit not sent", "error", sendErr)
			}
		}
		c.reqMu.Unlock()

		err = c.conn.Close()
		<-c.done
	})
	return err
}
