// Package store is the chat client's local database: the cached user and
// contact lists, the message history and the user's key pair.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/client/models"
	"github.com/dmitrijs2005/jimrelay/internal/client/repositories/contacts"
	"github.com/dmitrijs2005/jimrelay/internal/client/repositories/history"
	"github.com/dmitrijs2005/jimrelay/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/jimrelay/internal/client/repositories/users"
	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/cryptox"
	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/dmitrijs2005/jimrelay/internal/filex"
)

const (
	keyPrivate = "private_key"
	keyPublic  = "public_key"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	users    users.Repository
	contacts contacts.Repository
	history  history.Repository
	metadata metadata.Repository
	now      func() time.Time
}

// Open opens the store at path, creating the file and its directory if
// needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}
	db, err := InitDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{
		db:       db,
		users:    users.NewSQLiteRepository(db),
		contacts: contacts.NewSQLiteRepository(db),
		history:  history.NewSQLiteRepository(db),
		metadata: metadata.NewSQLiteRepository(db),
		now:      time.Now,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceUsers swaps the cached list of registered users for names.
func (s *Store) ReplaceUsers(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return users.NewSQLiteRepository(tx).Replace(ctx, names)
	})
}

func (s *Store) Users(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.List(ctx)
}

// KnownUser reports whether name was in the last user list from the relay.
func (s *Store) KnownUser(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Exists(ctx, name)
}

// ReplaceContacts swaps the local contact list for names.
func (s *Store) ReplaceContacts(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := contacts.NewSQLiteRepository(tx)
		if err := repo.Clear(ctx); err != nil {
			return err
		}
		for _, name := range names {
			if err := repo.Add(ctx, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) AddContact(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts.Add(ctx, name)
}

func (s *Store) RemoveContact(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts.Remove(ctx, name)
}

func (s *Store) Contacts(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts.List(ctx)
}

func (s *Store) IsContact(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts.Exists(ctx, name)
}

// LogMessage appends a message to the history with contact.
func (s *Store) LogMessage(ctx context.Context, contact string, dir models.Direction, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &models.Message{Contact: contact, Direction: dir, Text: text, CreatedAt: s.now()}
	return s.history.Add(ctx, m)
}

func (s *Store) History(ctx context.Context, contact string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.ByContact(ctx, contact)
}

// KeyPair returns the stored key pair, generating and saving a new one on
// first use.
func (s *Store) KeyPair(ctx context.Context) (*cryptox.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priv, err := s.metadata.Get(ctx, keyPrivate)
	if err == nil {
		var pub []byte
		pub, err = s.metadata.Get(ctx, keyPublic)
		if err == nil {
			return &cryptox.KeyPair{PrivateKey: priv, PublicKey: pub}, nil
		}
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	kp, err := cryptox.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keyPrivate, kp.PrivateKey); err != nil {
			return err
		}
		return repo.Set(ctx, keyPublic, kp.PublicKey)
	})
	if err != nil {
		return nil, fmt.Errorf("save key pair: %w", err)
	}
	return kp, nil
}
