package contacts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE contacts (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);`)
	require.NoError(t, err)
	return db
}

func TestAddListRemove(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "carol"))
	require.NoError(t, r.Add(ctx, "bob"))
	require.NoError(t, r.Add(ctx, "bob"))

	names, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, names)

	ok, err := r.Exists(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Remove(ctx, "bob"))
	require.NoError(t, r.Remove(ctx, "nobody"))

	ok, err = r.Exists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "a"))
	require.NoError(t, r.Add(ctx, "b"))
	require.NoError(t, r.Clear(ctx))

	names, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	assert.ErrorContains(t, r.Add(ctx, "a"), "failed to add contact a")
	assert.ErrorContains(t, r.Remove(ctx, "a"), "failed to remove contact a")
	assert.ErrorContains(t, r.Clear(ctx), "failed to clear contacts")
	_, err := r.List(ctx)
	assert.ErrorContains(t, err, "failed to list contacts")
	_, err = r.Exists(ctx, "a")
	assert.ErrorContains(t, err, "failed to look up contact a")
}
