// Package users persists registered accounts (the all_users table).
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	ListNames(ctx context.Context) ([]string, error)
	UpdateLogin(ctx context.Context, id int64, at time.Time, publicKey string) error
	Delete(ctx context.Context, id int64) error
}
