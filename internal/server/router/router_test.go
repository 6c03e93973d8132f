package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/protocol"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/dmitrijs2005/jimrelay/internal/server/models"
	"github.com/dmitrijs2005/jimrelay/internal/server/session"
	"github.com/dmitrijs2005/jimrelay/internal/server/transport/transporttest"
)

type delivery struct {
	to *session.Session
	m  *protocol.Message
}

type fakeDeliverer struct {
	err       error
	delivered []delivery
}

func (d *fakeDeliverer) Deliver(_ context.Context, to *session.Session, m *protocol.Message) error {
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, delivery{to: to, m: m})
	return nil
}

type fixture struct {
	dir       *directory.Memory
	registry  *session.Registry
	deliverer *fakeDeliverer
	router    *Router
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	f := &fixture{
		dir:       directory.NewMemory(),
		registry:  session.NewRegistry(),
		deliverer: &fakeDeliverer{},
	}
	for _, u := range users {
		require.NoError(t, f.dir.AddUser(context.Background(), u, "v-"+u))
	}
	f.router = New(f.dir, f.registry, f.deliverer, logging.NewNop())
	return f
}

func (f *fixture) login(t *testing.T, name string) *session.Session {
	t.Helper()
	s := session.New(transporttest.NewConn("conn-"+name, "127.0.0.1:1"), time.Now())
	s.Challenge(name, "", nil)
	s.Authenticate()
	require.NoError(t, f.registry.Register(s))
	return s
}

func TestDispatch_MessageDelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")

	out := f.router.Dispatch(ctx, alice, protocol.Text("alice", "bob", "hello"))
	require.NotNil(t, out.Reply)
	assert.Equal(t, protocol.StatusOK, out.Reply.Response)
	assert.False(t, out.Close)
	assert.True(t, out.Delivered)

	require.Len(t, f.deliverer.delivered, 1)
	assert.Same(t, bob, f.deliverer.delivered[0].to)
	assert.Equal(t, "hello", f.deliverer.delivered[0].m.Text)

	stats, err := f.dir.MessageStats(ctx)
	require.NoError(t, err)
	counters := map[string]models.MessageCounter{}
	for _, c := range stats {
		counters[c.Name] = c
	}
	assert.Equal(t, 1, counters["alice"].Sent)
	assert.Equal(t, 0, counters["alice"].Accepted)
	assert.Equal(t, 0, counters["bob"].Sent)
	assert.Equal(t, 1, counters["bob"].Accepted)
}

func TestDispatch_MessageTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.login(t, "alice")
	f.login(t, "bob")

	m := protocol.Text("alice", "bob", "epoch")
	m.Time = protocol.Timestamp(0)
	out := f.router.Dispatch(ctx, alice, m)
	assert.Equal(t, protocol.StatusOK, out.Reply.Response, "a zero time is still a time")

	m = protocol.Text("alice", "bob", "untimed")
	m.Time = nil
	out = f.router.Dispatch(ctx, alice, m)
	assert.Equal(t, protocol.StatusBadRequest, out.Reply.Response)
	assert.Len(t, f.deliverer.delivered, 1)
}

func TestDispatch_MessageRecipientStates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.login(t, "alice")

	out := f.router.Dispatch(ctx, alice, protocol.Text("alice", "bob", "hi"))
	assert.Equal(t, "user bob is not online", out.Reply.Error)

	out = f.router.Dispatch(ctx, alice, protocol.Text("alice", "zed", "hi"))
	assert.Equal(t, "user zed is not registered", out.Reply.Error)

	bob := f.login(t, "bob")
	f.deliverer.err = fmt.Errorf("queue full: %w", common.ErrPeerUnreachable)
	out = f.router.Dispatch(ctx, alice, protocol.Text("alice", "bob", "hi"))
	assert.Equal(t, "user bob is not reachable right now", out.Reply.Error)
	assert.False(t, out.Close)
	assert.False(t, out.Delivered)

	_, ok := f.registry.Lookup("bob")
	assert.True(t, ok, "an unreachable recipient keeps its session")
	assert.True(t, bob.Authenticated())

	stats, err := f.dir.MessageStats(ctx)
	require.NoError(t, err)
	for _, c := range stats {
		assert.Zero(t, c.Sent)
		assert.Zero(t, c.Accepted)
	}
}

func TestDispatch_IdentityMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.login(t, "alice")
	f.login(t, "bob")

	for name, m := range map[string]*protocol.Message{
		"spoofed from":     protocol.Text("bob", "alice", "hi"),
		"foreign contacts": protocol.Request(protocol.ActionGetContacts, "bob", ""),
		"foreign add":      protocol.Request(protocol.ActionAddContact, "bob", "alice"),
		"foreign exit":     protocol.Request(protocol.ActionExit, "bob", ""),
		"anonymous users":  {Action: protocol.ActionGetUsers, Time: protocol.Timestamp(1)},
	} {
		t.Run(name, func(t *testing.T) {
			out := f.router.Dispatch(ctx, alice, m)
			require.NotNil(t, out.Reply)
			assert.Equal(t, protocol.StatusBadRequest, out.Reply.Response)
			assert.Equal(t, protocol.ReasonBadRequest, out.Reply.Error)
			assert.False(t, out.Close)
		})
	}
	assert.Empty(t, f.deliverer.delivered)
}

func TestDispatch_Lists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "bob", "alice")
	alice := f.login(t, "alice")

	out := f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionGetUsers, "alice", ""))
	assert.Equal(t, protocol.StatusList, out.Reply.Response)
	assert.Equal(t, []string{"alice", "bob"}, out.Reply.DataList)

	out = f.router.Dispatch(ctx, alice, &protocol.Message{Action: protocol.ActionGetUsers, AccountName: "alice"})
	assert.Equal(t, protocol.StatusList, out.Reply.Response)

	out = f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionGetContacts, "alice", ""))
	assert.Equal(t, protocol.StatusList, out.Reply.Response)
	assert.NotNil(t, out.Reply.DataList)
	assert.Empty(t, out.Reply.DataList)

	frame, err := protocol.Encode(out.Reply)
	require.NoError(t, err)
	assert.Equal(t, `{"response":202,"data_list":[]}`+"\n", string(frame))
}

func TestDispatch_ContactsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.login(t, "alice")

	for i := 0; i < 2; i++ {
		out := f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionAddContact, "alice", "bob"))
		assert.Equal(t, protocol.StatusOK, out.Reply.Response)
	}
	contacts, err := f.dir.Contacts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, contacts)

	out := f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionAddContact, "alice", "ghost"))
	assert.Equal(t, "user ghost is not registered", out.Reply.Error)

	out = f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionDelContact, "alice", "bob"))
	assert.Equal(t, protocol.StatusOK, out.Reply.Response)
	out = f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionDelContact, "alice", "bob"))
	assert.Equal(t, protocol.StatusOK, out.Reply.Response)
	out = f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionDelContact, "alice", "ghost"))
	assert.Equal(t, protocol.StatusOK, out.Reply.Response)

	contacts, err = f.dir.Contacts(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, contacts)

	out = f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionAddContact, "alice", ""))
	assert.Equal(t, protocol.ReasonBadRequest, out.Reply.Error)
}

func TestDispatch_PublicKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.login(t, "alice")

	out := f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionPubKeyNeed, "alice", "bob"))
	assert.Equal(t, protocol.ReasonNoPublicKey, out.Reply.Error)

	require.NoError(t, f.dir.RecordLogin(ctx, "bob", "127.0.0.1", 2, "BOBKEY"))
	out = f.router.Dispatch(ctx, alice, &protocol.Message{Action: protocol.ActionPubKeyNeed, AccountName: "bob"})
	assert.Equal(t, protocol.StatusChallenge, out.Reply.Response)
	assert.Equal(t, "BOBKEY", out.Reply.Bin)

	out = f.router.Dispatch(ctx, alice, protocol.Request(protocol.ActionPubKeyNeed, "alice", "ghost"))
	assert.Equal(t, protocol.ReasonNoPublicKey, out.Reply.Error)
}

func TestDispatch_ExitClosesWithoutReply(t *testing.T) {
	f := newFixture(t, "alice")
	alice := f.login(t, "alice")

	out := f.router.Dispatch(context.Background(), alice, protocol.Request(protocol.ActionExit, "alice", ""))
	assert.True(t, out.Close)
	assert.Nil(t, out.Reply)
}

func TestDispatch_BadRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.login(t, "alice")

	for name, m := range map[string]*protocol.Message{
		"unknown action":  {Action: "dance", User: &protocol.User{AccountName: "alice"}},
		"presence again":  protocol.Presence("alice", "PK"),
		"message no text": protocol.Text("alice", "bob", ""),
		"message no time": {Action: protocol.ActionMessage, From: "alice", To: "bob", Text: "x"},
	} {
		t.Run(name, func(t *testing.T) {
			out := f.router.Dispatch(ctx, alice, m)
			assert.Equal(t, protocol.ReasonBadRequest, out.Reply.Error)
			assert.False(t, out.Close)
		})
	}
}

func TestDispatch_UnauthenticatedSession(t *testing.T) {
	f := newFixture(t, "alice")
	s := session.New(transporttest.NewConn("c", "127.0.0.1:1"), time.Now())

	out := f.router.Dispatch(context.Background(), s, protocol.Request(protocol.ActionGetUsers, "", ""))
	assert.Equal(t, protocol.ReasonBadRequest, out.Reply.Error)
}

type brokenDirectory struct {
	*directory.Memory
}

var errBroken = fmt.Errorf("%w: %w", common.ErrStorageFailure, errors.New("db gone"))

func (brokenDirectory) UserNames(context.Context) ([]string, error) { return nil, errBroken }
func (brokenDirectory) Contacts(context.Context, string) ([]string, error) { return nil, errBroken }
func (brokenDirectory) RecordMessage(context.Context, string, string) error { return errBroken }
func (brokenDirectory) PublicKey(context.Context, string) (string, error) { return "", errBroken }
func (brokenDirectory) AddContact(context.Context, string, string) error { return errBroken }
func (brokenDirectory) RemoveContact(context.Context, string, string) error { return errBroken }

func TestDispatch_StorageFailuresAreReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	f.router = New(brokenDirectory{f.dir}, f.registry, f.deliverer, logging.NewNop())
	alice := f.login(t, "alice")
	f.login(t, "bob")

	for name, m := range map[string]*protocol.Message{
		"users":    protocol.Request(protocol.ActionGetUsers, "alice", ""),
		"contacts": protocol.Request(protocol.ActionGetContacts, "alice", ""),
		"add":      protocol.Request(protocol.ActionAddContact, "alice", "bob"),
		"del":      protocol.Request(protocol.ActionDelContact, "alice", "bob"),
		"pubkey":   protocol.Request(protocol.ActionPubKeyNeed, "alice", "bob"),
		"message":  protocol.Text("alice", "bob", "hi"),
	} {
		t.Run(name, func(t *testing.T) {
			out := f.router.Dispatch(ctx, alice, m)
			assert.Equal(t, protocol.ReasonStorage, out.Reply.Error)
			assert.False(t, out.Close)
		})
	}
}
