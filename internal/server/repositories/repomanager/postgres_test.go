package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/tombstones"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/users"
	"github.com/dmitrijs2005/fieldsync/internal/server/scope"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	var _ RepositoryManager = NewPostgresRepositoryManager()
	var _ RepositoryManager = NewSQLiteRepositoryManager()
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManager()

	if u := m.Users(db); u == nil {
		t.Fatal("Users() nil")
	}
	if r := m.Records(db); r == nil {
		t.Fatal("Records() nil")
	}
	if ts := m.Tombstones(db); ts == nil {
		t.Fatal("Tombstones() nil")
	}

	var _ users.Repository = m.Users(db)
	var _ records.Repository = m.Records(db)
	var _ tombstones.Repository = m.Tombstones(db)
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager()
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager()
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRunMigrations_SQLiteSchema(t *testing.T) {
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	m := NewSQLiteRepositoryManager()
	ctx := context.Background()
	if err := m.RunMigrations(ctx, db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}

	for _, table := range entity.Tables() {
		if _, err := m.Records(db).SelectUpdated(ctx, table, 0, scope.Scope{Role: entity.RoleAdmin}); err != nil {
			t.Fatalf("select %s: %v", table, err)
		}
	}
	if _, err := m.Tombstones(db).SelectSince(ctx, 0, scope.Scope{Role: entity.RoleAdmin}); err != nil {
		t.Fatalf("select tombstones: %v", err)
	}
}
