// Package directory defines the user directory the relay authenticates and
// routes against, and an in-memory implementation of it.
//
// Implementations must be safe for concurrent use: the event loop and the
// admin console call into the same directory.
package directory

import (
	"context"

	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

// Directory is the persistent view of accounts, contacts and activity.
//
// Lookups of a missing user return common.ErrorNotFound, registering a taken
// name returns common.ErrorAlreadyExists. Any other failure wraps
// common.ErrStorageFailure.
type Directory interface {
	AddUser(ctx context.Context, name, verifier string) error
	RemoveUser(ctx context.Context, name string) error
	User(ctx context.Context, name string) (*models.User, error)
	UserNames(ctx context.Context) ([]string, error)
	PublicKey(ctx context.Context, name string) (string, error)

	// RecordLogin stamps the last login, stores publicKey and records the
	// active session and a history entry, all or nothing.
	RecordLogin(ctx context.Context, name, ip string, port int, publicKey string) error
	RecordLogout(ctx context.Context, name string) error

	// AddContact fails with common.ErrorNotFound if either user is missing
	// and is idempotent otherwise.
	AddContact(ctx context.Context, owner, contact string) error
	// RemoveContact is a no-op when the contact or the edge is missing.
	RemoveContact(ctx context.Context, owner, contact string) error
	Contacts(ctx context.Context, owner string) ([]string, error)

	// RecordMessage counts one message sent by from and accepted by to.
	RecordMessage(ctx context.Context, from, to string) error

	ActiveUsers(ctx context.Context) ([]models.ActiveUser, error)
	LoginHistory(ctx context.Context, name string) ([]models.LoginHistoryEntry, error)
	MessageStats(ctx context.Context) ([]models.MessageCounter, error)

	// ClearActive drops every active session record. Called at startup,
	// when no session can be live.
	ClearActive(ctx context.Context) error
}
