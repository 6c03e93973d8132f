// Package services contains server-side business logic over the SQL
// repositories. This file implements DirectoryService, the relational
// directory.Directory: registration, login bookkeeping, contacts and message
// statistics.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/dmitrijs2005/jimrelay/internal/server/models"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/repomanager"
)

var _ directory.Directory = (*DirectoryService)(nil)

// DirectoryService is a directory.Directory stored in PostgreSQL or SQLite.
// Multi-row changes run in a single transaction.
type DirectoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

// NewDirectoryService constructs a DirectoryService. Migrations are expected
// to have been applied already.
func NewDirectoryService(db *sql.DB, m repomanager.RepositoryManager) *DirectoryService {
	return &DirectoryService{
		db:          db,
		repomanager: m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *DirectoryService) AddUser(ctx context.Context, name, verifier string) error {
	user := &models.User{Name: name, LastLogin: s.now(), Verifier: verifier}
	_, err := s.repomanager.Users(s.db).Create(ctx, user)
	return storageError("add user", err)
}

func (s *DirectoryService) RemoveUser(ctx context.Context, name string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByName(ctx, name)
		if err != nil {
			return err
		}
		if err := s.repomanager.ActiveUsers(tx).Delete(ctx, user.ID); err != nil {
			return err
		}
		if err := s.repomanager.LoginHistory(tx).DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		if err := s.repomanager.Contacts(tx).DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		if err := s.repomanager.Stats(tx).DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, user.ID)
	})
	return storageError("remove user", err)
}

func (s *DirectoryService) User(ctx context.Context, name string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByName(ctx, name)
	if err != nil {
		return nil, storageError("get user", err)
	}
	return user, nil
}

func (s *DirectoryService) UserNames(ctx context.Context) ([]string, error) {
	names, err := s.repomanager.Users(s.db).ListNames(ctx)
	if err != nil {
		return nil, storageError("list users", err)
	}
	return names, nil
}

func (s *DirectoryService) PublicKey(ctx context.Context, name string) (string, error) {
	user, err := s.User(ctx, name)
	if err != nil {
		return "", err
	}
	return user.PublicKey, nil
}

func (s *DirectoryService) RecordLogin(ctx context.Context, name, ip string, port int, publicKey string) error {
	at := s.now()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByName(ctx, name)
		if err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).UpdateLogin(ctx, user.ID, at, publicKey); err != nil {
			return err
		}
		if err := s.repomanager.ActiveUsers(tx).Upsert(ctx, user.ID, ip, port, at); err != nil {
			return err
		}
		return s.repomanager.LoginHistory(tx).Add(ctx, user.ID, at, ip, port)
	})
	return storageError("record login", err)
}

func (s *DirectoryService) RecordLogout(ctx context.Context, name string) error {
	user, err := s.repomanager.Users(s.db).GetByName(ctx, name)
	if err != nil {
		return storageError("record logout", err)
	}
	return storageError("record logout", s.repomanager.ActiveUsers(s.db).Delete(ctx, user.ID))
}

func (s *DirectoryService) AddContact(ctx context.Context, owner, contact string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		o, err := users.GetByName(ctx, owner)
		if err != nil {
			return err
		}
		c, err := users.GetByName(ctx, contact)
		if err != nil {
			return err
		}
		return s.repomanager.Contacts(tx).Add(ctx, o.ID, c.ID)
	})
	return storageError("add contact", err)
}

func (s *DirectoryService) RemoveContact(ctx context.Context, owner, contact string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		o, err := users.GetByName(ctx, owner)
		if err != nil {
			return err
		}
		c, err := users.GetByName(ctx, contact)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.repomanager.Contacts(tx).Remove(ctx, o.ID, c.ID)
	})
	return storageError("remove contact", err)
}

func (s *DirectoryService) Contacts(ctx context.Context, owner string) ([]string, error) {
	o, err := s.repomanager.Users(s.db).GetByName(ctx, owner)
	if err != nil {
		return nil, storageError("list contacts", err)
	}
	names, err := s.repomanager.Contacts(s.db).List(ctx, o.ID)
	if err != nil {
		return nil, storageError("list contacts", err)
	}
	return names, nil
}

func (s *DirectoryService) RecordMessage(ctx context.Context, from, to string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		f, err := users.GetByName(ctx, from)
		if err != nil {
			return err
		}
		r, err := users.GetByName(ctx, to)
		if err != nil {
			return err
		}
		stats := s.repomanager.Stats(tx)
		if err := stats.Increment(ctx, f.ID, 1, 0); err != nil {
			return err
		}
		return stats.Increment(ctx, r.ID, 0, 1)
	})
	return storageError("record message", err)
}

func (s *DirectoryService) ActiveUsers(ctx context.Context) ([]models.ActiveUser, error) {
	result, err := s.repomanager.ActiveUsers(s.db).List(ctx)
	if err != nil {
		return nil, storageError("list active users", err)
	}
	return result, nil
}

func (s *DirectoryService) LoginHistory(ctx context.Context, name string) ([]models.LoginHistoryEntry, error) {
	result, err := s.repomanager.LoginHistory(s.db).List(ctx, name)
	if err != nil {
		return nil, storageError("list login history", err)
	}
	return result, nil
}

func (s *DirectoryService) MessageStats(ctx context.Context) ([]models.MessageCounter, error) {
	result, err := s.repomanager.Stats(s.db).List(ctx)
	if err != nil {
		return nil, storageError("list message stats", err)
	}
	return result, nil
}

func (s *DirectoryService) ClearActive(ctx context.Context) error {
	return storageError("clear active users", s.repomanager.ActiveUsers(s.db).Clear(ctx))
}

// storageError leaves the directory's own sentinels untouched and marks
// everything else as a storage failure.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorAlreadyExists) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageFailure, err)
}
