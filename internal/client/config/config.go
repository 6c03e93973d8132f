package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/netx"
)

const (
	DefaultServerAddress = "127.0.0.1"
	DefaultServerPort    = 7777
)

// Config holds runtime settings for the chat client.
type Config struct {
	ServerAddress   string
	ServerPort      int
	UserName        string
	DatabasePath    string
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddress = DefaultServerAddress
	c.ServerPort = DefaultServerPort
	c.UserName = ""
	c.DatabasePath = ""
	c.ConnectAttempts = 5
	c.ConnectBackoff = time.Second
}

// Addr is the host:port of the relay.
func (c *Config) Addr() string {
	return netx.JoinHostPort(c.ServerAddress, c.ServerPort)
}

// DatabaseFile is the local store path, derived from the user name unless
// set explicitly.
func (c *Config) DatabaseFile() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return fmt.Sprintf("client_%s.db3", c.UserName)
}

func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server port %d out of range", c.ServerPort)
	}
	if c.ConnectAttempts < 1 {
		return fmt.Errorf("connect attempts must be positive, got %d", c.ConnectAttempts)
	}
	if c.ConnectBackoff < 0 {
		return fmt.Errorf("negative connect backoff %s", c.ConnectBackoff)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
