package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/flagx"
)

// JSONConfig is the on-disk form of Config. Durations are written as
// strings like "1s".
type JSONConfig struct {
	ServerAddress   string `json:"server_address"`
	ServerPort      int    `json:"server_port"`
	UserName        string `json:"user_name"`
	DatabasePath    string `json:"database_path"`
	ConnectAttempts int    `json:"connect_attempts"`
	ConnectBackoff  string `json:"connect_backoff"`
}

// parseJSON overlays cfg with the file named by -c/-config. Keys missing
// from the file keep their current values.
func parseJSON(cfg *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	jc := JSONConfig{
		ServerAddress:   cfg.ServerAddress,
		ServerPort:      cfg.ServerPort,
		UserName:        cfg.UserName,
		DatabasePath:    cfg.DatabasePath,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectBackoff:  cfg.ConnectBackoff.String(),
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	backoff, err := time.ParseDuration(jc.ConnectBackoff)
	if err != nil {
		return fmt.Errorf("config %s: connect_backoff: %w", path, err)
	}

	cfg.ServerAddress = jc.ServerAddress
	cfg.ServerPort = jc.ServerPort
	cfg.UserName = jc.UserName
	cfg.DatabasePath = jc.DatabasePath
	cfg.ConnectAttempts = jc.ConnectAttempts
	cfg.ConnectBackoff = backoff
	return nil
}
