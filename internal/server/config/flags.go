package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/flagx"
)

// parseFlags populates Config fields from command-line flags; see the package
// documentation for the list. Only the flags handled here are taken from
// os.Args, so -c/-config and unknown flags do not make parsing fail.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-p", "-s", "-d", "-m", "-l", "-f", "-t"},
		"-headless")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddress, "a", config.ListenAddress, "address to listen on")
	port := fs.Int("p", int(config.ListenPort), "port to listen on")
	fs.StringVar(&config.DatabaseDriver, "s", config.DatabaseDriver, "directory driver (sqlite, postgres, memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MetricsAddress, "m", config.MetricsAddress, "metrics listen address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format (text, json)")
	timeout := fs.Int("t", int(config.HandshakeTimeout.Seconds()), "handshake timeout (in seconds)")
	fs.BoolVar(&config.Headless, "headless", config.Headless, "run without the admin console")

	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := NewPort(*port)
	if err != nil {
		return err
	}
	config.ListenPort = p
	config.HandshakeTimeout = time.Duration(*timeout) * time.Second
	return nil
}
