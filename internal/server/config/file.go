package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/jimrelay/internal/flagx"
)

// Duration lets intervals be written as "30s" in both JSON and TOML files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// FileConfig is the on-disk form of Config.
type FileConfig struct {
	ListenAddress    string   `json:"listen_address" toml:"listen_address"`
	ListenPort       int      `json:"listen_port" toml:"listen_port"`
	Headless         bool     `json:"headless" toml:"headless"`
	DatabaseDriver   string   `json:"database_driver" toml:"database_driver"`
	DatabaseDSN      string   `json:"database_dsn" toml:"database_dsn"`
	MetricsAddress   string   `json:"metrics_address" toml:"metrics_address"`
	LogLevel         string   `json:"log_level" toml:"log_level"`
	LogFormat        string   `json:"log_format" toml:"log_format"`
	HandshakeTimeout Duration `json:"handshake_timeout" toml:"handshake_timeout"`
}

// File returns the on-disk form of c.
func (c *Config) File() *FileConfig {
	return &FileConfig{
		ListenAddress:    c.ListenAddress,
		ListenPort:       int(c.ListenPort),
		Headless:         c.Headless,
		DatabaseDriver:   c.DatabaseDriver,
		DatabaseDSN:      c.DatabaseDSN,
		MetricsAddress:   c.MetricsAddress,
		LogLevel:         c.LogLevel,
		LogFormat:        c.LogFormat,
		HandshakeTimeout: Duration(c.HandshakeTimeout),
	}
}

func (c *Config) apply(fc *FileConfig) error {
	port, err := NewPort(fc.ListenPort)
	if err != nil {
		return err
	}
	c.ListenAddress = fc.ListenAddress
	c.ListenPort = port
	c.Headless = fc.Headless
	c.DatabaseDriver = fc.DatabaseDriver
	c.DatabaseDSN = fc.DatabaseDSN
	c.MetricsAddress = fc.MetricsAddress
	c.LogLevel = fc.LogLevel
	c.LogFormat = fc.LogFormat
	c.HandshakeTimeout = time.Duration(fc.HandshakeTimeout)
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// parseFile overlays config with the file named by -c/-config. Keys missing
// from the file keep their current values.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}
	return config.ReadFile(path)
}

// ReadFile overlays c with the contents of path.
func (c *Config) ReadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fc := c.File()
	if isTOML(path) {
		err = toml.Unmarshal(data, fc)
	} else {
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := c.apply(fc); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

// Encode renders c in the format implied by path.
func (c *Config) Encode(path string) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c.File()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(c.File(), "", "  ")
}

// Save writes c to path, or to the file it was loaded from when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.ConfigFile
	}
	if path == "" {
		return fmt.Errorf("no config file to save to")
	}

	data, err := c.Encode(path)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.ConfigFile = path
	return nil
}
