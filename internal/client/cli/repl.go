package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/jimrelay/internal/client/transport"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Users(ctx context.Context) error
	Contacts(ctx context.Context) error
	AddContact(ctx context.Context, name string) error
	RemoveContact(ctx context.Context, name string) error
	Send(ctx context.Context, to, text string) error
	History(ctx context.Context, contact string) error
	Key(ctx context.Context, name string) error
	Sync(ctx context.Context) error
}

const help = `Available commands:
  users                 registered users
  contacts              your contacts
  add <name>            add a contact
  del <name>            remove a contact
  send <name> <text>    send a message
  history <name>        conversation with a user
  key <name>            public key of a user
  sync                  reload users and contacts
  help                  this text
  exit | quit           leave the chat`

// runREPL reads commands line by line and dispatches them to a. It returns
// on EOF or when the user types "exit" or "quit". Command errors are printed
// and the loop goes on.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprint(out, "chat> ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]
		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(out, "Bye!")
			return
		}
		if err := execute(ctx, a, cmd, args, out); err != nil {
			fmt.Fprintln(out, "error:", describe(err))
		}
	}
}

func execute(ctx context.Context, a execIface, cmd string, args []string, out io.Writer) error {
	needName := func() (string, error) {
		if len(args) < 1 {
			return "", fmt.Errorf("usage: %s <name>", cmd)
		}
		return args[0], nil
	}

	switch cmd {
	case "help":
		fmt.Fprintln(out, help)
		return nil
	case "users":
		return a.Users(ctx)
	case "contacts":
		return a.Contacts(ctx)
	case "add":
		name, err := needName()
		if err != nil {
			return err
		}
		return a.AddContact(ctx, name)
	case "del":
		name, err := needName()
		if err != nil {
			return err
		}
		return a.RemoveContact(ctx, name)
	case "send", "msg":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <name> <text>", cmd)
		}
		return a.Send(ctx, args[0], strings.Join(args[1:], " "))
	case "history":
		name, err := needName()
		if err != nil {
			return err
		}
		return a.History(ctx, name)
	case "key":
		name, err := needName()
		if err != nil {
			return err
		}
		return a.Key(ctx, name)
	case "sync":
		return a.Sync(ctx)
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

// describe shortens server refusals to their reason.
func describe(err error) string {
	var se *transport.ServerError
	if errors.As(err, &se) {
		return se.Reason
	}
	return err.Error()
}
