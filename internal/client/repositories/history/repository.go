// Package history stores the conversation log of the chat client.
package history

import (
	"context"

	"github.com/dmitrijs2005/jimrelay/internal/client/models"
)

type Repository interface {
	Add(ctx context.Context, m *models.Message) error
	// ByContact returns the conversation with contact, oldest first.
	ByContact(ctx context.Context, contact string) ([]models.Message, error)
}
