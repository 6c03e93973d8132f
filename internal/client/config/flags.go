package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/flagx"
)

// parseFlags populates Config fields from command-line flags listed in the
// package documentation. Only those flags are taken from os.Args.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-p", "-n", "-d", "-r", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddress, "a", cfg.ServerAddress, "relay address")
	fs.IntVar(&cfg.ServerPort, "p", cfg.ServerPort, "relay port")
	fs.StringVar(&cfg.UserName, "n", cfg.UserName, "user name")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	fs.IntVar(&cfg.ConnectAttempts, "r", cfg.ConnectAttempts, "connect attempts")
	backoff := fs.Int("b", int(cfg.ConnectBackoff.Seconds()), "seconds between connect attempts")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.ConnectBackoff = time.Duration(*backoff) * time.Second
	return nil
}
