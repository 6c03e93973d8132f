package loginhistory

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

func (r *SQLRepository) Add(ctx context.Context, userID int64, at time.Time, ip string, port int) error {
	query :=
		`INSERT INTO login_history (user_id, date_time, ip, port)
		 VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, userID, at, ip, port); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, name string) ([]models.LoginHistoryEntry, error) {
	query :=
		`SELECT u.name, h.date_time, h.ip, h.port
		 FROM login_history h JOIN all_users u ON u.id = h.user_id
		 WHERE $1 = '' OR u.name = $1
		 ORDER BY h.date_time, h.id`

	rows, err := r.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.LoginHistoryEntry, 0)
	for rows.Next() {
		var e models.LoginHistoryEntry
		if err := rows.Scan(&e.Name, &e.Time, &e.IP, &e.Port); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) DeleteByUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM login_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
