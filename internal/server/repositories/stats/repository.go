// Package stats persists per-user message counters (the users_history table).
package stats

import (
	"context"

	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

type Repository interface {
	// Increment adds to the counters of userID, creating its row on first use.
	Increment(ctx context.Context, userID int64, sent, accepted int) error
	// List returns a counter for every registered user, zero when none was
	// recorded yet.
	List(ctx context.Context) ([]models.MessageCounter, error)
	DeleteByUser(ctx context.Context, userID int64) error
}
