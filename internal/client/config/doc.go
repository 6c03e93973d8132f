// Package config loads runtime configuration for the chat client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJSON) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   relay address (default 127.0.0.1)
//	-p int      relay port (default 7777)
//	-n string   user name; asked for at startup when empty
//	-d string   local database file (default client_<name>.db3)
//	-r int      connect attempts (default 5)
//	-b int      seconds between connect attempts (default 1)
//	-c string   JSON configuration file
package config
