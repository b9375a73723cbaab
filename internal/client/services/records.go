package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// ErrNotInConflict is returned when resolving a row the server accepted.
var ErrNotInConflict = errors.New("record is not in conflict")

// ErrMissingParent is returned when a row points at a parent that does not
// exist on the device.
var ErrMissingParent = errors.New("parent record not found")

// CursorRewinder forces tables to be pulled again from scratch.
type CursorRewinder interface {
	ResetCursor(ctx context.Context, table entity.Table) error
}

// RecordService is the local mutation API used by the UI. Every write marks
// the row dirty so the next sync cycle pushes it.
type RecordService interface {
	Create(ctx context.Context, rec entity.Record) error
	Update(ctx context.Context, rec entity.Record) error
	Archive(ctx context.Context, table entity.Table, id string) error
	Unarchive(ctx context.Context, table entity.Table, id string) error
	Delete(ctx context.Context, table entity.Table, id string) error
	Get(ctx context.Context, table entity.Table, id string) (entity.Record, error)
	List(ctx context.Context, table entity.Table, includeArchived bool) ([]entity.Record, error)

	// Conflicts lists every row the server refused, across tables.
	Conflicts(ctx context.Context) ([]entity.Record, error)
	// KeepLocal re-queues the local version of a conflicted row with a
	// fresh timestamp so it wins the next push.
	KeepLocal(ctx context.Context, table entity.Table, id string) error
	// DiscardLocal drops the local version and re-pulls the server's.
	DiscardLocal(ctx context.Context, table entity.Table, id string) error

	// PendingCounts returns the number of dirty rows per table.
	PendingCounts(ctx context.Context) (map[entity.Table]int, error)
}

type recordService struct {
	db      *sql.DB
	auth    AuthService
	cursors CursorRewinder
	now     func() time.Time
	newID   func() string
}

// NewRecordService builds a RecordService. auth supplies the session that
// stamps origin and ownership on new rows.
func NewRecordService(db *sql.DB, auth AuthService, cursors CursorRewinder) RecordService {
	return &recordService{db: db, auth: auth, cursors: cursors, now: time.Now, newID: uuid.NewString}
}

func (s *recordService) repos(db dbx.DBTX) *client.Repositories {
	return client.NewRepositories(db)
}

func (s *recordService) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *recordService) checkWritable(table entity.Table) error {
	info, ok := entity.Info(table)
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	if sess := s.auth.Current(); sess != nil && sess.IsClient() && !info.ClientWritable {
		return fmt.Errorf("%w: %s is read-only for client users", common.ErrForbidden, table)
	}
	return nil
}

// ownerOf walks the ownership chain of rec through local rows.
func ownerOf(ctx context.Context, repos *client.Repositories, rec entity.Record) (*string, error) {
	if rec.Table() == entity.TableClients {
		id := rec.Meta().ID
		return &id, nil
	}
	info, _ := entity.Info(rec.Table())
	parentID := entity.ParentID(rec)
	if info.Parent == "" || parentID == "" {
		return nil, nil
	}
	if info.Parent == entity.TableClients {
		return &parentID, nil
	}
	parent, err := repos.Records.GetByID(ctx, info.Parent, parentID)
	if err != nil {
		return nil, err
	}
	if owner := parent.Meta().OwnerClientID; owner != nil {
		return owner, nil
	}
	return ownerOf(ctx, repos, parent)
}

func (s *recordService) checkParent(ctx context.Context, repos *client.Repositories, rec entity.Record) error {
	info, _ := entity.Info(rec.Table())
	if info.Parent == "" {
		return nil
	}
	parentID := entity.ParentID(rec)
	if parentID == "" {
		return fmt.Errorf("%w: %s requires %s", ErrMissingParent, rec.Table(), info.ParentColumn)
	}
	if _, err := repos.Records.GetByID(ctx, info.Parent, parentID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: %s %s", ErrMissingParent, info.Parent, parentID)
		}
		return err
	}
	return nil
}

func (s *recordService) Create(ctx context.Context, rec entity.Record) error {
	if err := s.checkWritable(rec.Table()); err != nil {
		return err
	}
	repos := s.repos(s.db)
	if err := s.checkParent(ctx, repos, rec); err != nil {
		return err
	}

	now := s.nowMillis()
	m := rec.Meta()
	if m.ID == "" {
		m.ID = s.newID()
	}
	m.CreatedAtEpoch = now
	m.Origin = entity.OriginCRM
	if sess := s.auth.Current(); sess != nil {
		uid := sess.UserID
		m.CreatedByUserID = &uid
		if sess.IsClient() {
			m.Origin = entity.OriginClient
		}
	}

	owner, err := ownerOf(ctx, repos, rec)
	if err != nil {
		return err
	}
	m.OwnerClientID = owner
	m.Touch(now)

	return repos.Records.CreateOrUpdate(ctx, rec)
}

func (s *recordService) Update(ctx context.Context, rec entity.Record) error {
	if err := s.checkWritable(rec.Table()); err != nil {
		return err
	}
	repos := s.repos(s.db)
	existing, err := repos.Records.GetByID(ctx, rec.Table(), rec.Meta().ID)
	if err != nil {
		return err
	}
	if err := s.checkParent(ctx, repos, rec); err != nil {
		return err
	}

	m, old := rec.Meta(), existing.Meta()
	m.CreatedAtEpoch = old.CreatedAtEpoch
	m.Origin = old.Origin
	m.CreatedByUserID = old.CreatedByUserID
	m.IsArchived = old.IsArchived
	m.ArchivedAtEpoch = old.ArchivedAtEpoch

	owner, err := ownerOf(ctx, repos, rec)
	if err != nil {
		return err
	}
	m.OwnerClientID = owner
	m.Touch(s.nextVersion(old.UpdatedAtEpoch))

	return repos.Records.CreateOrUpdate(ctx, rec)
}

// nextVersion returns now, or one past prev if the clock has not moved past
// it, so that every local edit produces a newer version.
func (s *recordService) nextVersion(prev int64) int64 {
	now := s.nowMillis()
	if now <= prev {
		return prev + 1
	}
	return now
}

func (s *recordService) mutate(ctx context.Context, table entity.Table, id string, fn func(m *entity.SyncMeta)) error {
	if err := s.checkWritable(table); err != nil {
		return err
	}
	repos := s.repos(s.db)
	rec, err := repos.Records.GetByID(ctx, table, id)
	if err != nil {
		return err
	}
	fn(rec.Meta())
	return repos.Records.CreateOrUpdate(ctx, rec)
}

func (s *recordService) Archive(ctx context.Context, table entity.Table, id string) error {
	return s.mutate(ctx, table, id, func(m *entity.SyncMeta) { m.Archive(s.nextVersion(m.UpdatedAtEpoch)) })
}

func (s *recordService) Unarchive(ctx context.Context, table entity.Table, id string) error {
	return s.mutate(ctx, table, id, func(m *entity.SyncMeta) { m.Unarchive(s.nextVersion(m.UpdatedAtEpoch)) })
}

// Delete removes the row, cascading to its children, and queues a
// tombstone carrying the row's owner.
func (s *recordService) Delete(ctx context.Context, table entity.Table, id string) error {
	if err := s.checkWritable(table); err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repos := s.repos(tx)
		rec, err := repos.Records.GetByID(ctx, table, id)
		if err != nil {
			return err
		}
		if _, err := repos.Records.DeleteByID(ctx, table, id); err != nil {
			return err
		}
		return repos.Tombstones.Create(ctx, entity.DeletedRecord{
			EntityTableName: string(table),
			RecordID:        id,
			DeletedAtEpoch:  s.nowMillis(),
			OwnerClientID:   rec.Meta().OwnerClientID,
		})
	})
}

func (s *recordService) Get(ctx context.Context, table entity.Table, id string) (entity.Record, error) {
	return s.repos(s.db).Records.GetByID(ctx, table, id)
}

func (s *recordService) List(ctx context.Context, table entity.Table, includeArchived bool) ([]entity.Record, error) {
	return s.repos(s.db).Records.List(ctx, table, includeArchived)
}

func (s *recordService) Conflicts(ctx context.Context) ([]entity.Record, error) {
	repos := s.repos(s.db)
	var out []entity.Record
	for _, t := range entity.PushOrder {
		rows, err := repos.Records.GetConflicts(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *recordService) conflicted(ctx context.Context, repos *client.Repositories, table entity.Table, id string) (entity.Record, error) {
	rec, err := repos.Records.GetByID(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if rec.Meta().SyncStatus != entity.SyncStatusConflict {
		return nil, ErrNotInConflict
	}
	return rec, nil
}

func (s *recordService) KeepLocal(ctx context.Context, table entity.Table, id string) error {
	repos := s.repos(s.db)
	rec, err := s.conflicted(ctx, repos, table, id)
	if err != nil {
		return err
	}
	m := rec.Meta()
	m.Touch(s.nextVersion(m.UpdatedAtEpoch))
	return repos.Records.CreateOrUpdate(ctx, rec)
}

// DiscardLocal deletes the local row without a tombstone and rewinds the
// cursors of its table and every descendant table, so the next pull brings
// back whatever the server holds.
func (s *recordService) DiscardLocal(ctx context.Context, table entity.Table, id string) error {
	repos := s.repos(s.db)
	if _, err := s.conflicted(ctx, repos, table, id); err != nil {
		return err
	}
	if _, err := repos.Records.DeleteByID(ctx, table, id); err != nil {
		return err
	}
	return s.rewind(ctx, table)
}

func (s *recordService) rewind(ctx context.Context, table entity.Table) error {
	if err := s.cursors.ResetCursor(ctx, table); err != nil {
		return err
	}
	for _, child := range entity.Children(table) {
		if err := s.rewind(ctx, child.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *recordService) PendingCounts(ctx context.Context) (map[entity.Table]int, error) {
	repos := s.repos(s.db)
	out := make(map[entity.Table]int)
	for _, t := range entity.PushOrder {
		n, err := repos.Records.CountPending(ctx, t)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out[t] = n
		}
	}
	pending, err := repos.Tombstones.GetAllPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		out[entity.TableDeleted] = len(pending)
	}
	return out, nil
}
