package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/tombstones"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Records(db dbx.DBTX) records.Repository
	Tombstones(db dbx.DBTX) tombstones.Repository
}
