package activeusers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/jimrelay/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewSQLRepository(db), mock
}

func TestUpsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	q := `(?s)^INSERT\s+INTO\s+active_users\s*\(user_id,\s*ip,\s*port,\s*login_time\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(user_id\)\s*DO\s+UPDATE`
	mock.ExpectExec(q).WithArgs(int64(1), "10.0.0.5", 51000, at).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(q).WillReturnError(errors.New("db down"))

	require.NoError(t, repo.Upsert(context.Background(), 1, "10.0.0.5", 51000, at))

	err := repo.Upsert(context.Background(), 1, "10.0.0.5", 51000, at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`^DELETE FROM active_users WHERE user_id = \$1$`).WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), 9), "missing row is not an error")
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`(?s)^SELECT\s+u\.name,\s*a\.ip,\s*a\.port,\s*a\.login_time\s+FROM\s+active_users\s+a\s+JOIN\s+all_users\s+u`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "ip", "port", "login_time"}).
			AddRow("alice", "127.0.0.1", 5000, at).
			AddRow("bob", "127.0.0.2", 5001, at))

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.ActiveUser{
		{Name: "alice", IP: "127.0.0.1", Port: 5000, LoginTime: at},
		{Name: "bob", IP: "127.0.0.2", Port: 5001, LoginTime: at},
	}, got)
}

func TestList_ScanError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "ip", "port", "login_time"}).
			AddRow("alice", "127.0.0.1", "not a port", time.Now()))

	_, err := repo.List(context.Background())
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`^DELETE FROM active_users$`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`^DELETE FROM active_users$`).WillReturnError(errors.New("readonly"))

	assert.NoError(t, repo.Clear(context.Background()))
	assert.Error(t, repo.Clear(context.Background()))
}
