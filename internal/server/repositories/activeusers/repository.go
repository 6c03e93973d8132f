// Package activeusers persists the set of accounts with an authenticated
// session (the active_users table).
package activeusers

import (
	"context"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, userID int64, ip string, port int, at time.Time) error
	Delete(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]models.ActiveUser, error)
	Clear(ctx context.Context) error
}
