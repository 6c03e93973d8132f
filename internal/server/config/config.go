package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime settings for the relay server.
type Config struct {
	ListenAddress    string
	ListenPort       Port
	Headless         bool
	DatabaseDriver   string
	DatabaseDSN      string
	MetricsAddress   string
	LogLevel         string
	LogFormat        string
	HandshakeTimeout time.Duration

	// ConfigFile is the file the configuration was read from, if any.
	// Save uses it when no other path is given.
	ConfigFile string
}

// LoadDefaults populates Config with the defaults of a single-host deployment.
func (c *Config) LoadDefaults() {
	c.ListenAddress = ""
	c.ListenPort = DefaultPort
	c.Headless = false
	c.DatabaseDriver = DriverSQLite
	c.DatabaseDSN = "server.db3"
	c.MetricsAddress = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.HandshakeTimeout = 30 * time.Second
}

// Addr is the host:port the relay listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(int(c.ListenPort)))
}

// Validate checks values that can be set independently of their type.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("negative handshake timeout %s", c.HandshakeTimeout)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional configuration file and finally from command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg); err != nil {
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
