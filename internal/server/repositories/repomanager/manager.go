// Package repomanager vends the directory repositories for one SQL dialect
// and runs its embedded goose migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/activeusers"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/loginhistory"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/stats"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	ActiveUsers(db dbx.DBTX) activeusers.Repository
	LoginHistory(db dbx.DBTX) loginhistory.Repository
	Contacts(db dbx.DBTX) contacts.Repository
	Stats(db dbx.DBTX) stats.Repository
}
