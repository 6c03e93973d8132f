// Package config loads runtime configuration for the relay server.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional configuration file selected with -c or -config. Files ending
//     in .toml are read as TOML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   listen address ("" listens on every interface)
//	-p int      listen port, 1024-65535
//	-s string   directory driver: sqlite, postgres or memory
//	-d string   database DSN (file path for sqlite)
//	-m string   metrics listen address ("" disables /metrics)
//	-l string   log level: debug, info, warn, error
//	-f string   log format: text or json
//	-t int      handshake timeout in seconds (0 disables the sweep)
//	-headless   run without the admin console
//
// # File schema
//
//	listen_address    = ""
//	listen_port       = 7777
//	headless          = false
//	database_driver   = "sqlite"
//	database_dsn      = "server.db3"
//	metrics_address   = ""
//	log_level         = "info"
//	log_format        = "text"
//	handshake_timeout = "30s"
//
// The same keys are used in JSON files. Save writes a Config back in either
// format.
package config
