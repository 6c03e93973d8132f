package dbx

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"postgres", Postgres, false},
		{"SQLite", SQLite, false},
		{"mysql", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDialect(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDialect_Names(t *testing.T) {
	assert.Equal(t, "pgx", Postgres.DriverName())
	assert.Equal(t, "postgres", Postgres.GooseDialect())
	assert.Equal(t, "sqlite", SQLite.DriverName())
	assert.Equal(t, "sqlite3", SQLite.GooseDialect())
}

func TestRebind(t *testing.T) {
	q := `UPDATE all_users SET last_login = $2, pubkey = $3 WHERE name = $1 AND price > '$'`

	assert.Equal(t, q, Postgres.Rebind(q))
	assert.Equal(t,
		`UPDATE all_users SET last_login = ?2, pubkey = ?3 WHERE name = ?1 AND price > '$'`,
		SQLite.Rebind(q))
	assert.Equal(t, "SELECT 1", SQLite.Rebind("SELECT 1"))
	assert.Equal(t, "SELECT ?12", SQLite.Rebind("SELECT $12"))
}

func TestBind_RewritesForSQLiteOnly(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	assert.Same(t, db, Bind(db, Postgres))

	ctx := context.Background()
	b := Bind(db, SQLite)

	mock.ExpectExec(`DELETE FROM active_users WHERE user_id = ?1`).WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = b.ExecContext(ctx, `DELETE FROM active_users WHERE user_id = $1`, 7)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT name FROM all_users WHERE id = ?1`).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice"))
	var name string
	require.NoError(t, b.QueryRowContext(ctx, `SELECT name FROM all_users WHERE id = $1`, 7).Scan(&name))
	assert.Equal(t, "alice", name)

	mock.ExpectQuery(`SELECT name FROM all_users ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	rows, err := b.QueryContext(ctx, `SELECT name FROM all_users ORDER BY name`)
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	require.NoError(t, mock.ExpectationsWereMet())
}
