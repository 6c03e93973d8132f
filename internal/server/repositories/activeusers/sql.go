package activeusers

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Upsert(ctx context.Context, userID int64, ip string, port int, at time.Time) error {
	query :=
		`INSERT INTO active_users (user_id, ip, port, login_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET ip = excluded.ip, port = excluded.port, login_time = excluded.login_time`

	if _, err := r.db.ExecContext(ctx, query, userID, ip, port, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete is a no-op for a user without an active row.
func (r *SQLRepository) Delete(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM active_users WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context) ([]models.ActiveUser, error) {
	query :=
		`SELECT u.name, a.ip, a.port, a.login_time
		 FROM active_users a JOIN all_users u ON u.id = a.user_id
		 ORDER BY u.name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.ActiveUser, 0)
	for rows.Next() {
		var a models.ActiveUser
		if err := rows.Scan(&a.Name, &a.IP, &a.Port, &a.LoginTime); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM active_users`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
