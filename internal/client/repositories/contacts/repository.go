// Package contacts is the local copy of the user's contact list.
package contacts

import "context"

type Repository interface {
	// Add is idempotent.
	Add(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
}
