package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/client/migrations"
	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/pressly/goose/v3"
)

// RunMigrations brings the local schema up to date.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect(dbx.SQLite.GooseDialect()); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, string(dbx.SQLite))
}

// InitDatabase opens the SQLite file at dsn and migrates it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := dbx.Open(ctx, dbx.SQLite, dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dsn, err)
	}
	return db, nil
}
