package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/versions"
	"github.com/dmitrijs2005/fieldsync/internal/server/scope"
)

// SQLRepository implements Repository over a DBTX for one SQL dialect.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

// NewPostgresRepository binds a repository to a PostgreSQL handle.
func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return NewRepository(db, dbx.Postgres)
}

// NewRepository binds a repository to db speaking dialect d.
func NewRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

func newRecord(table entity.Table) (entity.Record, error) {
	rec, err := entity.New(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	return rec, nil
}

func selectList(rec entity.Record, alias string) string {
	names := entity.Names(entity.WireColumns(rec))
	for i, n := range names {
		names[i] = alias + "." + n
	}
	return fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(names, ", "), rec.Table(), alias)
}

// query runs "SELECT <columns> FROM table a WHERE <where> <tail>". where must
// have been built with b.
func (r *SQLRepository) query(ctx context.Context, table entity.Table, b *dbx.Builder, where, tail string) ([]entity.Record, error) {
	proto, err := newRecord(table)
	if err != nil {
		return nil, err
	}
	q := selectList(proto, "a")
	if where != "" {
		q += " WHERE " + where
	}
	if tail != "" {
		q += " " + tail
	}

	rows, err := r.db.QueryContext(ctx, q, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []entity.Record
	for rows.Next() {
		rec, _ := newRecord(table)
		if err := rows.Scan(entity.Ptrs(entity.WireColumns(rec))...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, table entity.Table, id string) (entity.Record, error) {
	b := r.d.NewBuilder()
	list, err := r.query(ctx, table, b, "a.id = "+b.Arg(id), "")
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

func (r *SQLRepository) Upsert(ctx context.Context, rec entity.Record) (bool, error) {
	if _, err := newRecord(rec.Table()); err != nil {
		return false, err
	}
	rec.Meta().Origin = rec.Meta().Origin.OrDefault()
	v, err := versions.Next(ctx, r.db)
	if err != nil {
		return false, err
	}
	rec.Meta().ServerVersion = v

	cols := entity.WireColumns(rec)
	names := entity.Names(cols)
	b := r.d.NewBuilder()
	values := b.List(entity.Values(cols)...)

	sets := make([]string, 0, len(names)-1)
	for _, n := range names[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", n, n))
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET %s
		WHERE %s.updated_at_epoch <= excluded.updated_at_epoch`,
		rec.Table(), strings.Join(names, ", "), values, strings.Join(sets, ", "), rec.Table())

	res, err := r.db.ExecContext(ctx, q, b.Args()...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) SelectUpdated(ctx context.Context, table entity.Table, since int64, sc scope.Scope) ([]entity.Record, error) {
	b := r.d.NewBuilder()
	where := scope.Join(
		"a.server_version > "+b.Arg(since),
		"a.deleted_at_epoch IS NULL",
		scope.Predicate(b, table, "a", sc),
	)
	return r.query(ctx, table, b, where, "ORDER BY a.server_version, a.id")
}

func (r *SQLRepository) TouchIconPack(ctx context.Context, packID string) error {
	v, err := versions.Next(ctx, r.db)
	if err != nil {
		return err
	}
	for _, q := range []string{
		"UPDATE icon_packs SET server_version = %s WHERE id = %s",
		"UPDATE icons SET server_version = %s WHERE pack_id = %s",
	} {
		b := r.d.NewBuilder()
		if _, err := r.db.ExecContext(ctx, fmt.Sprintf(q, b.Arg(v), b.Arg(packID)), b.Args()...); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) ListByParent(ctx context.Context, table entity.Table, parentID string, sc scope.Scope) ([]entity.Record, error) {
	info, ok := entity.Info(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	if info.Parent == "" {
		return nil, fmt.Errorf("%s has no parent table", table)
	}
	b := r.d.NewBuilder()
	where := scope.Join(
		"a."+info.ParentColumn+" = "+b.Arg(parentID),
		"a.deleted_at_epoch IS NULL",
		scope.Predicate(b, table, "a", sc),
	)
	return r.query(ctx, table, b, where, "ORDER BY a.created_at_epoch, a.id")
}

func (r *SQLRepository) Visible(ctx context.Context, table entity.Table, id string, sc scope.Scope) (bool, error) {
	if _, err := newRecord(table); err != nil {
		return false, err
	}
	b := r.d.NewBuilder()
	where := scope.Join(
		"a.id = "+b.Arg(id),
		"a.deleted_at_epoch IS NULL",
		scope.Predicate(b, table, "a", sc),
	)
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s a WHERE %s", table, where)
	if err := r.db.QueryRowContext(ctx, q, b.Args()...).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) OwnerOf(ctx context.Context, table entity.Table, id string) (*string, bool, error) {
	if _, err := newRecord(table); err != nil {
		return nil, false, err
	}
	b := r.d.NewBuilder()
	q := fmt.Sprintf("SELECT %s FROM %s a WHERE a.id = %s", scope.OwnerExpr(table, "a"), table, b.Arg(id))
	return r.scanOwner(ctx, q, b)
}

func (r *SQLRepository) ParentOwner(ctx context.Context, rec entity.Record) (*string, bool, error) {
	info, ok := entity.Info(rec.Table())
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", common.ErrUnknownTable, rec.Table())
	}
	if info.Parent == "" {
		if rec.Table() == entity.TableClients {
			id := rec.Meta().ID
			return &id, true, nil
		}
		return nil, true, nil
	}

	parentID := entity.ParentID(rec)
	if parentID == "" {
		return nil, false, nil
	}
	return r.OwnerOf(ctx, info.Parent, parentID)
}

func (r *SQLRepository) scanOwner(ctx context.Context, q string, b *dbx.Builder) (*string, bool, error) {
	var owner sql.NullString
	err := r.db.QueryRowContext(ctx, q, b.Args()...).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("db error: %w", err)
	}
	if !owner.Valid {
		return nil, true, nil
	}
	return &owner.String, true, nil
}

func (r *SQLRepository) childIDs(ctx context.Context, child entity.TableInfo, parentID string) ([]string, error) {
	b := r.d.NewBuilder()
	q := fmt.Sprintf("SELECT id FROM %s WHERE %s = %s ORDER BY id", child.Name, child.ParentColumn, b.Arg(parentID))
	rows, err := r.db.QueryContext(ctx, q, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLRepository) Descendants(ctx context.Context, table entity.Table, id string) ([]Ref, error) {
	if _, err := newRecord(table); err != nil {
		return nil, err
	}
	var out []Ref
	for _, child := range entity.Children(table) {
		ids, err := r.childIDs(ctx, child, id)
		if err != nil {
			return nil, err
		}
		for _, cid := range ids {
			below, err := r.Descendants(ctx, child.Name, cid)
			if err != nil {
				return nil, err
			}
			out = append(out, below...)
		}
	}
	return append(out, Ref{Table: table, ID: id}), nil
}

func (r *SQLRepository) DeleteByID(ctx context.Context, table entity.Table, id string) (bool, error) {
	if _, err := newRecord(table); err != nil {
		return false, err
	}
	b := r.d.NewBuilder()
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = %s", table, b.Arg(id)), b.Args()...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
