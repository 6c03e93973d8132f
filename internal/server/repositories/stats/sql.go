package stats

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Increment(ctx context.Context, userID int64, sent, accepted int) error {
	query :=
		`INSERT INTO users_history (user_id, sent, accepted)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET sent = users_history.sent + excluded.sent,
		     accepted = users_history.accepted + excluded.accepted`

	if _, err := r.db.ExecContext(ctx, query, userID, sent, accepted); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context) ([]models.MessageCounter, error) {
	query :=
		`SELECT u.name, u.last_login, COALESCE(h.sent, 0), COALESCE(h.accepted, 0)
		 FROM all_users u LEFT JOIN users_history h ON h.user_id = u.id
		 ORDER BY u.name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.MessageCounter, 0)
	for rows.Next() {
		var c models.MessageCounter
		if err := rows.Scan(&c.Name, &c.LastLogin, &c.Sent, &c.Accepted); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) DeleteByUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
