// Package contacts persists directed contact edges (the users_contacts table).
package contacts

import "context"

type Repository interface {
	// Add is idempotent: an existing edge is left as it is.
	Add(ctx context.Context, userID, contactID int64) error
	// Remove is a no-op for a missing edge.
	Remove(ctx context.Context, userID, contactID int64) error
	List(ctx context.Context, userID int64) ([]string, error)
	// DeleteByUser drops every edge touching userID in either direction.
	DeleteByUser(ctx context.Context, userID int64) error
}
