// Package loginhistory persists the append-only log of successful logins.
package loginhistory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

type Repository interface {
	Add(ctx context.Context, userID int64, at time.Time, ip string, port int) error
	// List returns entries for name, or for every user when name is empty,
	// oldest first.
	List(ctx context.Context, name string) ([]models.LoginHistoryEntry, error)
	DeleteByUser(ctx context.Context, userID int64) error
}
