package history

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/client/models"
	"github.com/dmitrijs2005/jimrelay/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Add stores m and sets its ID.
func (r *SQLiteRepository) Add(ctx context.Context, m *models.Message) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO message_history (contact, direction, message, created_at) VALUES (?, ?, ?, ?)`,
		m.Contact, string(m.Direction), m.Text, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	m.ID = id
	return nil
}

func (r *SQLiteRepository) ByContact(ctx context.Context, contact string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, contact, direction, message, created_at FROM message_history WHERE contact = ? ORDER BY id`,
		contact)
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", contact, err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var dir string
		if err := rows.Scan(&m.ID, &m.Contact, &dir, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		m.Direction = models.Direction(dir)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return out, nil
}
