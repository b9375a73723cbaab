// Package tombstones keeps the server's record of hard deletes so that peers
// can remove their cached copies.
package tombstones

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/versions"
	"github.com/dmitrijs2005/fieldsync/internal/server/scope"
)

type Repository interface {
	// Create stores a tombstone under the next server version; a repeated
	// delete refreshes its timestamp and version.
	Create(ctx context.Context, d entity.DeletedRecord) error
	// Exists reports whether the row was deleted.
	Exists(ctx context.Context, table entity.Table, id string) (bool, error)
	// SelectSince returns tombstones with a server version above since that
	// are visible in sc, in version order.
	SelectSince(ctx context.Context, since int64, sc scope.Scope) ([]entity.DeletedRecord, error)
	// PurgeBefore drops tombstones older than before and reports how many.
	PurgeBefore(ctx context.Context, before int64) (int64, error)
}

// SQLRepository implements Repository for one SQL dialect.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return NewRepository(db, dbx.Postgres)
}

func NewRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

func (r *SQLRepository) Create(ctx context.Context, d entity.DeletedRecord) error {
	if d.EntityTableName == "" || d.RecordID == "" {
		return errors.New("tombstone needs a table and a record id")
	}
	v, err := versions.Next(ctx, r.db)
	if err != nil {
		return err
	}
	b := r.d.NewBuilder()
	q := fmt.Sprintf(`INSERT INTO deleted_records (entity_table_name, record_id, deleted_at_epoch, server_version, owner_client_id)
		VALUES (%s)
		ON CONFLICT (entity_table_name, record_id) DO UPDATE SET
			deleted_at_epoch = excluded.deleted_at_epoch,
			server_version = excluded.server_version,
			owner_client_id = COALESCE(excluded.owner_client_id, deleted_records.owner_client_id)`,
		b.List(d.EntityTableName, d.RecordID, d.DeletedAtEpoch, v, d.OwnerClientID))
	if _, err := r.db.ExecContext(ctx, q, b.Args()...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Exists(ctx context.Context, table entity.Table, id string) (bool, error) {
	b := r.d.NewBuilder()
	q := fmt.Sprintf("SELECT COUNT(*) FROM deleted_records WHERE entity_table_name = %s AND record_id = %s",
		b.Arg(string(table)), b.Arg(id))
	var n int
	if err := r.db.QueryRowContext(ctx, q, b.Args()...).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) SelectSince(ctx context.Context, since int64, sc scope.Scope) ([]entity.DeletedRecord, error) {
	b := r.d.NewBuilder()
	where := scope.Join("d.server_version > "+b.Arg(since), scope.TombstonePredicate(b, "d", sc))
	q := `SELECT d.entity_table_name, d.record_id, d.deleted_at_epoch, d.server_version, d.owner_client_id
		FROM deleted_records d WHERE ` + where + `
		ORDER BY d.server_version, d.record_id`

	rows, err := r.db.QueryContext(ctx, q, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []entity.DeletedRecord
	for rows.Next() {
		var d entity.DeletedRecord
		if err := rows.Scan(&d.EntityTableName, &d.RecordID, &d.DeletedAtEpoch, &d.ServerVersion, &d.OwnerClientID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) PurgeBefore(ctx context.Context, before int64) (int64, error) {
	b := r.d.NewBuilder()
	res, err := r.db.ExecContext(ctx, "DELETE FROM deleted_records WHERE deleted_at_epoch < "+b.Arg(before), b.Args()...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
