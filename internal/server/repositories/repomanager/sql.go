package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/dmitrijs2005/jimrelay/internal/server/migrations"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/activeusers"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/loginhistory"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/stats"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager binds every repository it returns to its dialect, so
// the repositories themselves are written once with $N placeholders.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(dbx.Bind(db, m.dialect))
}

func (m *SQLRepositoryManager) ActiveUsers(db dbx.DBTX) activeusers.Repository {
	return activeusers.NewSQLRepository(dbx.Bind(db, m.dialect))
}

func (m *SQLRepositoryManager) LoginHistory(db dbx.DBTX) loginhistory.Repository {
	return loginhistory.NewSQLRepository(dbx.Bind(db, m.dialect))
}

func (m *SQLRepositoryManager) Contacts(db dbx.DBTX) contacts.Repository {
	return contacts.NewSQLRepository(dbx.Bind(db, m.dialect))
}

func (m *SQLRepositoryManager) Stats(db dbx.DBTX) stats.Repository {
	return stats.NewSQLRepository(dbx.Bind(db, m.dialect))
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the migration set of the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, string(m.dialect))
}

// NewSQLRepositoryManager constructs a RepositoryManager for dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect) RepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}
