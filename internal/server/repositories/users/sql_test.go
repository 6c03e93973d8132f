package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/jimrelay/internal/common"
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

const (
	qInsert = `(?s)^INSERT\s+INTO\s+all_users\s*\(name,\s*last_login,\s*passwd_hash,\s*pubkey\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(name\)\s*DO\s+NOTHING\s*RETURNING\s+id$`
	qSelect = `(?s)^SELECT\s+id,\s*name,\s*last_login,\s*passwd_hash,\s*pubkey\s+FROM\s+all_users\s+WHERE\s+name\s*=\s*\$1$`
	qNames  = `^SELECT name FROM all_users ORDER BY name$`
	qLogin  = `(?s)^UPDATE\s+all_users\s+SET\s+last_login\s*=\s*\$2,\s*pubkey\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1$`
	qDelete = `^DELETE FROM all_users WHERE id = \$1$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(qInsert).
		WithArgs("alice", at, "verifier", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	got, err := repo.Create(context.Background(), &models.User{Name: "alice", LastLogin: at, Verifier: "verifier"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "alice", got.Name)
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qInsert).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Create(context.Background(), &models.User{Name: "alice"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qInsert).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Name: "alice"})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestGetByName(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qSelect).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "last_login", "passwd_hash", "pubkey"}).
				AddRow(int64(1), "alice", at, "ver", "key"))

		got, err := repo.GetByName(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, &models.User{ID: 1, Name: "alice", LastLogin: at, Verifier: "ver", PublicKey: "key"}, got)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qSelect).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByName(context.Background(), "ghost")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qSelect).WithArgs("alice").WillReturnError(errors.New("db err"))

		_, err := repo.GetByName(context.Background(), "alice")
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestListNames(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qNames).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice").AddRow("bob"))

		names, err := repo.ListNames(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, names)
	})

	t.Run("empty is not nil", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qNames).WillReturnRows(sqlmock.NewRows([]string{"name"}))

		names, err := repo.ListNames(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, names)
		assert.Empty(t, names)
	})

	t.Run("row error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(qNames).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice").RowError(0, errors.New("broken")))

		_, err := repo.ListNames(context.Background())
		assert.Error(t, err)
	})
}

func TestUpdateLogin(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("updated", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qLogin).WithArgs(int64(3), at, "key").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.UpdateLogin(context.Background(), 3, at, "key"))
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(qLogin).WithArgs(int64(3), at, "key").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.UpdateLogin(context.Background(), 3, at, "key"), common.ErrorNotFound)
	})
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(qDelete).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qDelete).WithArgs(int64(6)).WillReturnError(errors.New("locked"))

	assert.NoError(t, repo.Delete(context.Background(), 5))
	assert.Error(t, repo.Delete(context.Background(), 6))
}
