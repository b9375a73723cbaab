// Package records stores synchronized rows on the server. One implementation
// serves every registered table; the SQL is generated from the entity column
// contract and runs on PostgreSQL in production and on SQLite in tests.
package records

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/scope"
)

// Ref identifies one row.
type Ref struct {
	Table entity.Table
	ID    string
}

type Repository interface {
	// GetByID returns the row or common.ErrorNotFound.
	GetByID(ctx context.Context, table entity.Table, id string) (entity.Record, error)

	// Upsert stamps rec with the next server version and stores it unless
	// the stored copy carries a newer updated_at_epoch, in which case it
	// returns false.
	Upsert(ctx context.Context, rec entity.Record) (bool, error)

	// SelectUpdated returns live rows of table whose server version is above
	// since and that are visible in sc, in version order.
	SelectUpdated(ctx context.Context, table entity.Table, since int64, sc scope.Scope) ([]entity.Record, error)

	// TouchIconPack gives a pack and its icons a new server version so that
	// clients whose entitlement changed receive them again.
	TouchIconPack(ctx context.Context, packID string) error

	// ListByParent returns live rows of table hanging off parentID and
	// visible in sc.
	ListByParent(ctx context.Context, table entity.Table, parentID string, sc scope.Scope) ([]entity.Record, error)

	// Visible reports whether a live row exists and is visible in sc.
	Visible(ctx context.Context, table entity.Table, id string, sc scope.Scope) (bool, error)

	// OwnerOf resolves the owning client of a stored row. The boolean is
	// false when the row does not exist.
	OwnerOf(ctx context.Context, table entity.Table, id string) (*string, bool, error)

	// ParentOwner resolves the owning client through the parent referenced
	// by rec. The boolean is false when the parent does not exist.
	ParentOwner(ctx context.Context, rec entity.Record) (*string, bool, error)

	// Descendants lists the rows below id on the ownership chain, deepest
	// first, followed by the row itself.
	Descendants(ctx context.Context, table entity.Table, id string) ([]Ref, error)

	// DeleteByID hard-deletes one row.
	DeleteByID(ctx context.Context, table entity.Table, id string) (bool, error)
}
