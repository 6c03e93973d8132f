package contacts

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/dbx"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Add(ctx context.Context, userID, contactID int64) error {
	query :=
		`INSERT INTO users_contacts (user_id, contact_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, contact_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, contactID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Remove(ctx context.Context, userID, contactID int64) error {
	query := `DELETE FROM users_contacts WHERE user_id = $1 AND contact_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, contactID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, userID int64) ([]string, error) {
	query :=
		`SELECT u.name FROM users_contacts c
		 JOIN all_users u ON u.id = c.contact_id
		 WHERE c.user_id = $1
		 ORDER BY u.name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return names, nil
}

func (r *SQLRepository) DeleteByUser(ctx context.Context, userID int64) error {
	query := `DELETE FROM users_contacts WHERE user_id = $1 OR contact_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
