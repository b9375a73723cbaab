package records

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// Repository describes storage operations on synchronized rows.
type Repository interface {
	// GetByID returns the row or common.ErrorNotFound.
	GetByID(ctx context.Context, table entity.Table, id string) (entity.Record, error)

	// List returns rows of a table ordered by creation, optionally including
	// archived ones.
	List(ctx context.Context, table entity.Table, includeArchived bool) ([]entity.Record, error)

	// CreateOrUpdate stores the row as given, local columns included.
	CreateOrUpdate(ctx context.Context, rec entity.Record) error

	// ApplyRemote stores a server row as synced. It returns false without
	// touching anything when the local copy is dirty.
	ApplyRemote(ctx context.Context, rec entity.Record) (bool, error)

	// GetAllPending returns dirty rows that are not in conflict.
	GetAllPending(ctx context.Context, table entity.Table) ([]entity.Record, error)

	// GetConflicts returns rows the server refused.
	GetConflicts(ctx context.Context, table entity.Table) ([]entity.Record, error)

	// CountPending counts dirty rows, conflicts included.
	CountPending(ctx context.Context, table entity.Table) (int, error)

	// MarkSynced clears the dirty state of the given version of a row.
	MarkSynced(ctx context.Context, table entity.Table, id string, updatedAt int64) (bool, error)

	// MarkConflict flags the given version of a row as refused by the server.
	MarkConflict(ctx context.Context, table entity.Table, id string, updatedAt int64) (bool, error)

	// DeleteByID hard-deletes a row; children go with it through cascades.
	DeleteByID(ctx context.Context, table entity.Table, id string) (bool, error)

	// DeleteAll empties a table, dirty rows included.
	DeleteAll(ctx context.Context, table entity.Table) (int64, error)
}
