package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1", "-p", "9090", "-s", "postgres", "-d", "postgres://relay",
			"-m", ":9100", "-l", "debug", "-f", "json", "-t", "5", "-headless",
		},
			expected: &Config{
				ListenAddress:    "127.0.0.1",
				ListenPort:       9090,
				Headless:         true,
				DatabaseDriver:   "postgres",
				DatabaseDSN:      "postgres://relay",
				MetricsAddress:   ":9100",
				LogLevel:         "debug",
				LogFormat:        "json",
				HandshakeTimeout: 5 * time.Second,
			}},
		{name: "config flag is ignored", args: []string{"cmd", "-c", "server.toml", "-p", "8000"},
			expected: &Config{ListenPort: 8000}},
		{name: "bad port number", args: []string{"cmd", "-p", "abc"}, wantErr: true},
		{name: "port out of range", args: []string{"cmd", "-p", "70000"}, wantErr: true},
		{name: "bad timeout", args: []string{"cmd", "-t", "soon"}, wantErr: true},
	}

	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{ListenPort: DefaultPort}
			err := parseFlags(config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
