// Package users caches the list of accounts registered on the relay.
package users

import "context"

type Repository interface {
	// Replace drops the cached list and stores names instead.
	Replace(ctx context.Context, names []string) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
}
