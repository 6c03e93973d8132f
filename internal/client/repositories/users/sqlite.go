package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Replace is not atomic on its own; run it inside dbx.WithTx.
func (r *SQLiteRepository) Replace(ctx context.Context, names []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	for _, name := range names {
		_, err := r.db.ExecContext(ctx, `INSERT INTO users (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", name, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", name, err)
	}
	return n > 0, nil
}
