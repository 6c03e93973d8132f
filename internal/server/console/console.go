// Package console is the interactive administration shell of the relay.
//
// It reads commands from a line-oriented input and works on the user
// directory and the server configuration. Registering or removing a user
// makes every connected client refresh its lists.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/cryptox"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/prompt"
	"github.com/dmitrijs2005/jimrelay/internal/server/config"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
)

const timeLayout = "2006-01-02 15:04:05"

// readNewPassword is a test seam for prompt.NewPassword.
var readNewPassword = prompt.NewPassword

// Notifier is told about changes to the set of registered users.
type Notifier interface {
	NotifyDirectoryChanged()
}

type Console struct {
	directory directory.Directory
	config    *config.Config
	notifier  Notifier
	reader    *bufio.Reader
	out       io.Writer
	logger    logging.Logger
}

func New(d directory.Directory, cfg *config.Config, n Notifier, in io.Reader, out io.Writer, logger logging.Logger) *Console {
	return &Console{
		directory: d,
		config:    cfg,
		notifier:  n,
		reader:    bufio.NewReader(in),
		out:       out,
		logger:    logger.With("module", "console"),
	}
}

const help = `Available commands:
  users               registered users
  active              authenticated sessions
  history [name]      login history, optionally of one user
  stats               message statistics
  contacts <name>     contact list of a user
  register <name>     register a user (asks for the password)
  remove <name>       remove a user with all their data
  config              show the configuration
  set <key> <value>   change a configuration value
  save [path]         write the configuration to a file
  help                this text
  exit | quit         stop the server`

// Run reads and executes commands until input ends, exit is entered or ctx
// is done. Command failures are printed and do not end the session.
func (c *Console) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(c.out, "relay> ")

		line, err := c.reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "exit" || parts[0] == "quit" {
			fmt.Fprintln(c.out, "Bye!")
			return nil
		}

		if err := c.Exec(ctx, parts[0], parts[1:]); err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	}
}

// Exec runs a single command.
func (c *Console) Exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(c.out, help)
		return nil
	case "users":
		return c.users(ctx)
	case "active":
		return c.active(ctx)
	case "history":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return c.history(ctx, name)
	case "stats":
		return c.stats(ctx)
	case "contacts":
		if len(args) != 1 {
			return errors.New("usage: contacts <name>")
		}
		return c.contacts(ctx, args[0])
	case "register":
		if len(args) != 1 {
			return errors.New("usage: register <name>")
		}
		return c.register(ctx, args[0])
	case "remove":
		if len(args) != 1 {
			return errors.New("usage: remove <name>")
		}
		return c.remove(ctx, args[0])
	case "config":
		return c.showConfig()
	case "set":
		if len(args) != 2 {
			return errors.New("usage: set <key> <value>")
		}
		if err := c.config.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Setting changed, save and restart to apply.")
		return nil
	case "save":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		if err := c.config.Save(path); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Configuration saved to", c.config.ConfigFile)
		return nil
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (c *Console) users(ctx context.Context) error {
	names, err := c.directory.UserNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(c.out, "No users registered.")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(c.out, n)
	}
	return nil
}

func (c *Console) active(ctx context.Context) error {
	users, err := c.directory.ActiveUsers(ctx)
	if err != nil {
		return err
	}
	tw := c.table("NAME", "IP", "PORT", "LOGIN TIME")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", u.Name, u.IP, u.Port, formatTime(u.LoginTime))
	}
	return tw.Flush()
}

func (c *Console) history(ctx context.Context, name string) error {
	entries, err := c.directory.LoginHistory(ctx, name)
	if err != nil {
		return err
	}
	tw := c.table("NAME", "TIME", "IP", "PORT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.Name, formatTime(e.Time), e.IP, e.Port)
	}
	return tw.Flush()
}

func (c *Console) stats(ctx context.Context) error {
	counters, err := c.directory.MessageStats(ctx)
	if err != nil {
		return err
	}
	tw := c.table("NAME", "LAST LOGIN", "SENT", "ACCEPTED")
	for _, s := range counters {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Name, formatTime(s.LastLogin), s.Sent, s.Accepted)
	}
	return tw.Flush()
}

func (c *Console) contacts(ctx context.Context, name string) error {
	contacts, err := c.directory.Contacts(ctx, name)
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		fmt.Fprintf(c.out, "%s has no contacts.\n", name)
		return nil
	}
	for _, n := range contacts {
		fmt.Fprintln(c.out, n)
	}
	return nil
}

func (c *Console) register(ctx context.Context, name string) error {
	if _, err := c.directory.User(ctx, name); err == nil {
		return fmt.Errorf("user %s: %w", name, common.ErrorAlreadyExists)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	password, err := readNewPassword(c.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := c.directory.AddUser(ctx, name, cryptox.MakeVerifier(name, password)); err != nil {
		return fmt.Errorf("user %s: %w", name, err)
	}

	c.logger.Info(ctx, "user registered", "user", name)
	fmt.Fprintf(c.out, "User %s registered.\n", name)
	c.notifier.NotifyDirectoryChanged()
	return nil
}

func (c *Console) remove(ctx context.Context, name string) error {
	if err := c.directory.RemoveUser(ctx, name); err != nil {
		return fmt.Errorf("user %s: %w", name, err)
	}
	c.logger.Info(ctx, "user removed", "user", name)
	fmt.Fprintf(c.out, "User %s removed.\n", name)
	c.notifier.NotifyDirectoryChanged()
	return nil
}

func (c *Console) showConfig() error {
	data, err := c.config.Encode(".toml")
	if err != nil {
		return err
	}
	_, err = c.out.Write(data)
	return err
}

func (c *Console) table(headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
