// Package metadata is a small key/value table for client settings, such as
// the user's key pair.
package metadata

import (
	"context"
)

type Repository interface {
	// Get fails with common.ErrorNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set inserts or overwrites.
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
