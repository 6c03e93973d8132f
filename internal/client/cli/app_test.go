package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/jimrelay/internal/client/config"
	"github.com/dmitrijs2005/jimrelay/internal/client/transport"
	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/cryptox"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/netx"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/dmitrijs2005/jimrelay/internal/server/metrics"
	"github.com/dmitrijs2005/jimrelay/internal/server/relay"
	srvtransport "github.com/dmitrijs2005/jimrelay/internal/server/transport"
)

func startRelay(t *testing.T, users ...string) string {
	t.Helper()
	dir := directory.NewMemory()
	for _, u := range users {
		require.NoError(t, dir.AddUser(context.Background(), u, cryptox.MakeVerifier(u, []byte("pw-"+u))))
	}

	ctx, cancel := context.WithCancel(context.Background())
	tr, err := srvtransport.Listen(ctx, "127.0.0.1:0", logging.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- relay.New(tr, dir, metrics.New(), logging.NewNop(), 0).Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tr.Addr()
}

func testConfig(t *testing.T, addr, user string) *config.Config {
	t.Helper()
	host, port, err := netx.SplitHostPort(addr)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ServerAddress = host
	cfg.ServerPort = port
	cfg.UserName = user
	cfg.ConnectAttempts = 1
	cfg.DatabasePath = filepath.Join(t.TempDir(), "client_"+user+".db3")
	return cfg
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(w io.Writer, label string) ([]byte, error) {
		return []byte(pw), nil
	}
}

func TestApp_Session(t *testing.T) {
	addr := startRelay(t, "alice", "bob", "carol")
	stubPassword(t, "pw-alice")

	bobCfg := testConfig(t, addr, "bob")
	bob, err := transport.Connect(context.Background(),
		transport.Options{Addr: bobCfg.Addr(), Attempts: 1},
		transport.Credentials{UserName: "bob", Password: []byte("pw-bob"), PublicKey: "bob-key"},
		logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bob.Close() })

	input := strings.Join([]string{
		"users",
		"contacts",
		"add bob",
		"add nobody",
		"contacts",
		"key bob",
		"send bob hello bob",
		"send carol anyone?",
		"history bob",
		"del bob",
		"contacts",
		"exit",
	}, "\n") + "\n"
	var out bytes.Buffer
	app := NewApp(testConfig(t, addr, "alice"), strings.NewReader(input), &out, logging.NewNop())

	require.NoError(t, app.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Logged in as alice")
	assert.Contains(t, text, "alice\nbob\ncarol")
	assert.Contains(t, text, "No contacts.")
	assert.Contains(t, text, "bob added to contacts")
	assert.Contains(t, text, "error: unknown user: nobody")
	assert.Contains(t, text, "bob-key")
	assert.Contains(t, text, "error: user carol is not online")
	assert.Contains(t, text, "you -> bob: hello bob")
	assert.Contains(t, text, "bob removed from contacts")
	assert.Contains(t, text, "Bye!")

	select {
	case ev := <-bob.Events():
		require.Equal(t, transport.EventMessage, ev.Kind)
		assert.Equal(t, "alice", ev.Message.From)
		assert.Equal(t, "hello bob", ev.Message.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("bob got nothing")
	}
}

func TestApp_PromptsForName(t *testing.T) {
	addr := startRelay(t, "alice")
	stubPassword(t, "pw-alice")

	cfg := testConfig(t, addr, "")
	var out bytes.Buffer
	app := NewApp(cfg, strings.NewReader("alice\nquit\n"), &out, logging.NewNop())

	require.NoError(t, app.Run(context.Background()))
	assert.Equal(t, "alice", cfg.UserName)
	assert.Contains(t, out.String(), "Logged in as alice")
}

func TestApp_LoginRejected(t *testing.T) {
	addr := startRelay(t, "alice")
	stubPassword(t, "wrong")

	app := NewApp(testConfig(t, addr, "alice"), strings.NewReader(""), io.Discard, logging.NewNop())
	err := app.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrAuthRejected)
}

func TestApp_PasswordError(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(io.Writer, string) ([]byte, error) { return nil, errors.New("not a terminal") }

	app := NewApp(testConfig(t, "127.0.0.1:7777", "alice"), strings.NewReader(""), io.Discard, logging.NewNop())
	assert.ErrorContains(t, app.Run(context.Background()), "not a terminal")
}

func TestApp_EmptyName(t *testing.T) {
	app := NewApp(testConfig(t, "127.0.0.1:7777", ""), strings.NewReader("\n"), io.Discard, logging.NewNop())
	assert.ErrorContains(t, app.Run(context.Background()), "empty user name")
}
