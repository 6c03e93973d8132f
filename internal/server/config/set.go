package config

import (
	"fmt"
	"strconv"
	"time"
)

// Set changes a single setting by its file key. The running server does not
// pick the change up; it applies after Save and a restart.
func (c *Config) Set(key, value string) error {
	switch key {
	case "listen_address":
		c.ListenAddress = value
	case "listen_port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("listen_port: %w", err)
		}
		p, err := NewPort(n)
		if err != nil {
			return err
		}
		c.ListenPort = p
	case "headless":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("headless: %w", err)
		}
		c.Headless = b
	case "database_driver":
		prev := c.DatabaseDriver
		c.DatabaseDriver = value
		if err := c.Validate(); err != nil {
			c.DatabaseDriver = prev
			return err
		}
	case "database_dsn":
		c.DatabaseDSN = value
	case "metrics_address":
		c.MetricsAddress = value
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "handshake_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("handshake_timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("negative handshake timeout %s", d)
		}
		c.HandshakeTimeout = d
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
