package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func newRecord(table entity.Table) (entity.Record, error) {
	rec, err := entity.New(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	return rec, nil
}

func selectList(table entity.Table) (string, error) {
	rec, err := newRecord(table)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(entity.Names(entity.LocalColumns(rec)), ", "), table), nil
}

func (r *SQLiteRepository) query(ctx context.Context, table entity.Table, where string, args ...any) ([]entity.Record, error) {
	base, err := selectList(table)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, base+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", table, err)
	}
	defer rows.Close()

	var result []entity.Record
	for rows.Next() {
		rec, _ := newRecord(table)
		if err := rows.Scan(entity.Ptrs(entity.LocalColumns(rec))...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, table entity.Table, id string) (entity.Record, error) {
	list, err := r.query(ctx, table, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

func (r *SQLiteRepository) List(ctx context.Context, table entity.Table, includeArchived bool) ([]entity.Record, error) {
	where := "WHERE is_archived = 0 ORDER BY created_at_epoch, id"
	if includeArchived {
		where = "ORDER BY created_at_epoch, id"
	}
	return r.query(ctx, table, where)
}

func upsertSQL(rec entity.Record, guard string) (string, []any) {
	cols := entity.LocalColumns(rec)
	names := entity.Names(cols)
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	sets := make([]string, 0, len(names)-1)
	for _, n := range names[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", n, n))
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		rec.Table(), strings.Join(names, ", "), ph, strings.Join(sets, ", "))
	if guard != "" {
		q += " WHERE " + guard
	}
	return q, entity.Values(cols)
}

// CreateOrUpdate upserts a row by id.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, rec entity.Record) error {
	if _, err := newRecord(rec.Table()); err != nil {
		return err
	}
	q, args := upsertSQL(rec, "")
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.Table(), err)
	}
	return nil
}

func (r *SQLiteRepository) ApplyRemote(ctx context.Context, rec entity.Record) (bool, error) {
	if _, err := newRecord(rec.Table()); err != nil {
		return false, err
	}
	m := rec.Meta()
	m.DirtyFlag = false
	m.SyncStatus = entity.SyncStatusSynced
	m.Origin = m.Origin.OrDefault()

	q, args := upsertSQL(rec, fmt.Sprintf("%s.dirty_flag = 0", rec.Table()))
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("failed to apply %s %s: %w", rec.Table(), m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) GetAllPending(ctx context.Context, table entity.Table) ([]entity.Record, error) {
	return r.query(ctx, table, "WHERE dirty_flag = 1 AND sync_status <> ? ORDER BY updated_at_epoch, id",
		int64(entity.SyncStatusConflict))
}

func (r *SQLiteRepository) GetConflicts(ctx context.Context, table entity.Table) ([]entity.Record, error) {
	return r.query(ctx, table, "WHERE sync_status = ? ORDER BY updated_at_epoch, id",
		int64(entity.SyncStatusConflict))
}

func (r *SQLiteRepository) CountPending(ctx context.Context, table entity.Table) (int, error) {
	if _, err := newRecord(table); err != nil {
		return 0, err
	}
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE dirty_flag = 1", table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending %s: %w", table, err)
	}
	return n, nil
}

func (r *SQLiteRepository) mark(ctx context.Context, table entity.Table, id string, updatedAt int64, dirty bool, status entity.SyncStatus) (bool, error) {
	if _, err := newRecord(table); err != nil {
		return false, err
	}
	dirtyVal := 0
	if dirty {
		dirtyVal = 1
	}
	q := fmt.Sprintf("UPDATE %s SET dirty_flag = ?, sync_status = ? WHERE id = ? AND updated_at_epoch = ?", table)
	res, err := r.db.ExecContext(ctx, q, dirtyVal, int64(status), id, updatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, table entity.Table, id string, updatedAt int64) (bool, error) {
	return r.mark(ctx, table, id, updatedAt, false, entity.SyncStatusSynced)
}

func (r *SQLiteRepository) MarkConflict(ctx context.Context, table entity.Table, id string, updatedAt int64) (bool, error) {
	return r.mark(ctx, table, id, updatedAt, true, entity.SyncStatusConflict)
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, table entity.Table, id string) (bool, error) {
	if _, err := newRecord(table); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context, table entity.Table) (int64, error) {
	if _, err := newRecord(table); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
	if err != nil {
		return 0, fmt.Errorf("failed to empty %s: %w", table, err)
	}
	return res.RowsAffected()
}
