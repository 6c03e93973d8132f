package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/jimrelay/internal/server/config"
)

func freePort(t *testing.T) config.Port {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	p, err := config.NewPort(port)
	require.NoError(t, err)
	return p
}

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ListenAddress = "127.0.0.1"
	cfg.ListenPort = freePort(t)
	cfg.LogLevel = "error"
	return cfg
}

func runApp(ctx context.Context, app *App) <-chan error {
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	return done
}

func wait(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_HeadlessStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Headless = true
	cfg.DatabaseDriver = config.DriverMemory

	ctx, cancel := context.WithCancel(context.Background())
	app, err := NewApp(ctx, cfg, strings.NewReader(""), io.Discard)
	require.NoError(t, err)

	done := runApp(ctx, app)

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", cfg.Addr())
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	wait(t, done)
}

func TestApp_ConsoleExitStopsRelay(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = config.DriverSQLite
	cfg.DatabaseDSN = filepath.Join(t.TempDir(), "server.db3")

	var out bytes.Buffer
	app, err := NewApp(context.Background(), cfg, strings.NewReader("users\nexit\n"), &out)
	require.NoError(t, err)

	wait(t, runApp(context.Background(), app))
	assert.Contains(t, out.String(), "No users registered.")
	assert.Contains(t, out.String(), "Bye!")
}

func TestNewApp_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "loud"
	_, err := NewApp(context.Background(), cfg, nil, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.DatabaseDriver = "oracle"
	_, err = NewApp(context.Background(), cfg, nil, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}
