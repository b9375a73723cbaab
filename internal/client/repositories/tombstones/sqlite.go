// Package tombstones stores hard deletes made on the device until the server
// acknowledges them.
package tombstones

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

type Repository interface {
	// Create records a pending tombstone, replacing any earlier one for the
	// same row.
	Create(ctx context.Context, d entity.DeletedRecord) error
	// GetAllPending returns tombstones not yet acknowledged by the server.
	GetAllPending(ctx context.Context) ([]entity.DeletedRecord, error)
	// Remove forgets an acknowledged tombstone.
	Remove(ctx context.Context, table, recordID string) error
	// Clear drops every tombstone, acknowledged or not.
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, d entity.DeletedRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deleted_records (entity_table_name, record_id, deleted_at_epoch, owner_client_id, dirty_flag)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(entity_table_name, record_id) DO UPDATE SET
			deleted_at_epoch = excluded.deleted_at_epoch,
			owner_client_id = excluded.owner_client_id,
			dirty_flag = 1
	`, d.EntityTableName, d.RecordID, d.DeletedAtEpoch, d.OwnerClientID)
	if err != nil {
		return fmt.Errorf("failed to store tombstone %s/%s: %w", d.EntityTableName, d.RecordID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAllPending(ctx context.Context) ([]entity.DeletedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_table_name, record_id, deleted_at_epoch, owner_client_id, dirty_flag
		FROM deleted_records WHERE dirty_flag = 1
		ORDER BY deleted_at_epoch, record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select tombstones: %w", err)
	}
	defer rows.Close()

	var result []entity.DeletedRecord
	for rows.Next() {
		var d entity.DeletedRecord
		if err := rows.Scan(&d.EntityTableName, &d.RecordID, &d.DeletedAtEpoch, &d.OwnerClientID, &d.DirtyFlag); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tombstones: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, table, recordID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM deleted_records WHERE entity_table_name = ? AND record_id = ?`, table, recordID)
	if err != nil {
		return fmt.Errorf("failed to remove tombstone %s/%s: %w", table, recordID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deleted_records`); err != nil {
		return fmt.Errorf("failed to clear tombstones: %w", err)
	}
	return nil
}
