// Package repomanager provides the RepositoryManager used by the server,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/tombstones"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends repositories for one SQL dialect and exposes a
// schema migration hook. PostgreSQL is the production engine; the SQLite
// flavour backs tests and single-node trials.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// Users returns a users.Repository bound to the provided DBTX. User
// provisioning queries are written for PostgreSQL only.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Records returns a records.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewRepository(db, m.dialect)
}

// Tombstones returns a tombstones.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Tombstones(db dbx.DBTX) tombstones.Repository {
	return tombstones.NewRepository(db, m.dialect)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.Goose); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dbx.Postgres}
}

// NewSQLiteRepositoryManager constructs a SQLite-backed RepositoryManager.
func NewSQLiteRepositoryManager() *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dbx.SQLite}
}
