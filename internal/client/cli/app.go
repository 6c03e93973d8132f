package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dmitrijs2005/jimrelay/internal/client/config"
	"github.com/dmitrijs2005/jimrelay/internal/client/models"
	"github.com/dmitrijs2005/jimrelay/internal/client/services"
	"github.com/dmitrijs2005/jimrelay/internal/client/store"
	"github.com/dmitrijs2005/jimrelay/internal/client/transport"
	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/cryptox"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/prompt"
)

const timeLayout = "2006-01-02 15:04:05"

// readPassword is a test seam for prompt.Password.
var readPassword = prompt.Password

// syncWriter serializes writes from the REPL and the notification printer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type App struct {
	config *config.Config
	reader *bufio.Reader
	out    io.Writer
	logger logging.Logger
	chat   services.ChatService
}

func NewApp(c *config.Config, in io.Reader, out io.Writer, logger logging.Logger) *App {
	return &App{
		config: c,
		reader: bufio.NewReader(in),
		out:    &syncWriter{w: out},
		logger: logger,
	}
}

// Run logs in and serves the REPL until the user leaves or input ends.
func (a *App) Run(ctx context.Context) error {
	if a.config.UserName == "" {
		name, err := prompt.Line(a.reader, "User name", a.out)
		if err != nil {
			return err
		}
		if name == "" {
			return errors.New("empty user name")
		}
		a.config.UserName = name
	}

	pw, err := readPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	st, err := store.Open(ctx, a.config.DatabaseFile())
	if err != nil {
		return fmt.Errorf("local store: %w", err)
	}
	defer st.Close()

	kp, err := st.KeyPair(ctx)
	if err != nil {
		return fmt.Errorf("key pair: %w", err)
	}

	opts := transport.Options{
		Addr:     a.config.Addr(),
		Attempts: a.config.ConnectAttempts,
		Backoff:  a.config.ConnectBackoff,
	}
	creds := transport.Credentials{
		UserName:  a.config.UserName,
		Password:  pw,
		PublicKey: cryptox.EncodePublicKey(kp.PublicKey),
	}
	relay, err := transport.Connect(ctx, opts, creds, a.logger)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	a.chat = services.NewChatService(relay, st, a.logger)
	defer a.chat.Close()

	if err := a.chat.Sync(ctx); err != nil {
		fmt.Fprintf(a.out, "list sync failed: %v\n", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.chat.Run(ctx); err != nil {
			a.logger.Warn(ctx, "chat worker stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		a.watch()
	}()

	fmt.Fprintf(a.out, "Logged in as %s (type 'help' for commands)\n", a.config.UserName)
	runREPL(ctx, a, a.reader, a.out)

	cancel()
	wg.Wait()
	return nil
}

// watch prints notifications until the chat worker stops.
func (a *App) watch() {
	for n := range a.chat.Notifications() {
		switch n.Kind {
		case services.NoteMessage:
			fmt.Fprintf(a.out, "\n[%s] %s\n", n.From, n.Text)
		case services.NoteListsChanged:
			fmt.Fprintln(a.out, "\nuser list updated")
		case services.NoteDisconnected:
			fmt.Fprintf(a.out, "\nconnection to the relay lost: %v\ntype exit to quit\n", n.Err)
		}
	}
}

func (a *App) Users(ctx context.Context) error {
	names, err := a.chat.Users(ctx)
	if err != nil {
		return err
	}
	a.printList(names, "No users known, try sync.")
	return nil
}

func (a *App) Contacts(ctx context.Context) error {
	names, err := a.chat.Contacts(ctx)
	if err != nil {
		return err
	}
	a.printList(names, "No contacts.")
	return nil
}

func (a *App) AddContact(ctx context.Context, name string) error {
	if err := a.chat.AddContact(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s added to contacts\n", name)
	return nil
}

func (a *App) RemoveContact(ctx context.Context, name string) error {
	if err := a.chat.RemoveContact(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s removed from contacts\n", name)
	return nil
}

func (a *App) Send(ctx context.Context, to, text string) error {
	return a.chat.Send(ctx, to, text)
}

func (a *App) History(ctx context.Context, contact string) error {
	msgs, err := a.chat.History(ctx, contact)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintf(a.out, "No messages with %s.\n", contact)
		return nil
	}
	for _, m := range msgs {
		from, to := "you", m.Contact
		if m.Direction == models.Incoming {
			from, to = m.Contact, "you"
		}
		fmt.Fprintf(a.out, "%s %s -> %s: %s\n", m.CreatedAt.Local().Format(timeLayout), from, to, m.Text)
	}
	return nil
}

func (a *App) Key(ctx context.Context, name string) error {
	key, err := a.chat.PublicKey(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, key)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if err := a.chat.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "lists updated")
	return nil
}

func (a *App) printList(names []string, empty string) {
	if len(names) == 0 {
		fmt.Fprintln(a.out, empty)
		return
	}
	fmt.Fprintln(a.out, strings.Join(names, "\n"))
}
