package client

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/iconstatus"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/tombstones"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// Repositories bundles the local stores bound to one DBTX.
type Repositories struct {
	Metadata   metadata.Repository
	Records    records.Repository
	Tombstones tombstones.Repository
	IconStatus iconstatus.Repository
}

// NewRepositories binds every local repository to db, which may be a
// transaction.
func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Metadata:   metadata.NewSQLiteRepository(db),
		Records:    records.NewSQLiteRepository(db),
		Tombstones: tombstones.NewSQLiteRepository(db),
		IconStatus: iconstatus.NewSQLiteRepository(db),
	}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect(dbx.SQLite.Goose); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// localPragmas enforce cascades and let the UI read while a sync writes.
var localPragmas = []string{"foreign_keys(1)", "journal_mode(WAL)", "busy_timeout(5000)"}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	parts := make([]string, len(localPragmas))
	for i, p := range localPragmas {
		parts[i] = "_pragma=" + p
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(parts, "&")
}

// InitDatabase opens the on-device database and brings its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
