package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/metrics"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/tombstones"
	"github.com/dmitrijs2005/fieldsync/internal/server/scope"
)

// Reasons attached to rows that were not accepted.
const (
	ReasonMalformed     = "malformed row"
	ReasonMissingID     = "missing id"
	ReasonDeleted       = "deleted"
	ReasonStale         = "stale"
	ReasonDuplicate     = "duplicate"
	ReasonMissingParent = "missing parent"
	ReasonForbidden     = "forbidden"
	ReasonUnknownTable  = "unknown table"
)

// SyncService applies pushed rows and serves scoped pulls.
//
// Every pushed row is handled in its own transaction, so one bad row never
// blocks the rest of a batch. Conflicts are decided by updated_at_epoch alone
// (last write wins, no field merge). Accepted writes and tombstones are
// stamped with the server change sequence, which pull cursors follow.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, mx *metrics.Metrics) *SyncService {
	if mx == nil {
		mx = metrics.New()
	}
	return &SyncService{
		db:          db,
		repomanager: m,
		logger:      logging.OrNop(logger).With("module", "sync"),
		metrics:     mx,
		now:         time.Now,
	}
}

// errRowRejected rolls back a row transaction whose result is already set.
var errRowRejected = errors.New("row rejected")

func (s *SyncService) Push(ctx context.Context, sess entity.Session, table entity.Table, rows []json.RawMessage) ([]entity.PushResult, error) {
	if _, ok := entity.Info(table); !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	sc := scope.For(sess)
	if !scope.CanWrite(table, sc) {
		return nil, fmt.Errorf("%w: %s is read-only for %s", common.ErrForbidden, table, sess.Role)
	}

	log := s.logger.With("table", table, "user_id", sess.UserID)
	results := make([]entity.PushResult, 0, len(rows))
	for _, raw := range rows {
		res, err := s.pushRow(ctx, sess, sc, table, raw)
		if err != nil {
			return nil, err
		}
		s.metrics.Pushed(table, res.Status)
		if res.Status != entity.PushOK {
			log.Warn(ctx, "row not accepted", "id", res.ID, "status", res.Status, "reason", res.Reason)
		}
		results = append(results, res)
	}
	log.Info(ctx, "push applied", "rows", len(rows))
	return results, nil
}

func (s *SyncService) pushRow(ctx context.Context, sess entity.Session, sc scope.Scope, table entity.Table, raw json.RawMessage) (entity.PushResult, error) {
	rec, err := entity.New(table)
	if err != nil {
		return entity.PushResult{}, err
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return entity.PushResult{Status: entity.PushRejected, Reason: ReasonMalformed}, nil
	}
	meta := rec.Meta()
	res := entity.PushResult{ID: meta.ID, Status: entity.PushOK}
	if meta.ID == "" {
		res.Status, res.Reason = entity.PushRejected, ReasonMissingID
		return res, nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := s.repomanager.Records(tx)
		tombs := s.repomanager.Tombstones(tx)

		deleted, err := tombs.Exists(ctx, table, meta.ID)
		if err != nil {
			return err
		}
		if deleted {
			res.Status, res.Reason = entity.PushConflict, ReasonDeleted
			return errRowRejected
		}

		owner, found, err := recs.ParentOwner(ctx, rec)
		if err != nil {
			return err
		}
		if !found {
			res.Status, res.Reason = entity.PushRejected, ReasonMissingParent
			return errRowRejected
		}

		if !sc.Unrestricted() {
			if !ownedBy(owner, sc.ClientID) {
				res.Status, res.Reason = entity.PushRejected, ReasonForbidden
				return errRowRejected
			}
			current, exists, err := recs.OwnerOf(ctx, table, meta.ID)
			if err != nil {
				return err
			}
			if exists && !ownedBy(current, sc.ClientID) {
				res.Status, res.Reason = entity.PushRejected, ReasonForbidden
				return errRowRejected
			}
			meta.Origin = entity.OriginClient
		}

		if meta.IsDeleted() {
			return s.deleteTree(ctx, recs, tombs, table, meta.ID)
		}

		meta.OwnerClientID = owner
		if meta.CreatedByUserID == nil && sess.UserID != "" {
			uid := sess.UserID
			meta.CreatedByUserID = &uid
		}
		packs, err := entitledPacks(ctx, recs, rec)
		if err != nil {
			return err
		}
		applied, err := recs.Upsert(ctx, rec)
		if err != nil {
			return err
		}
		if !applied {
			res.Status, res.Reason = entity.PushConflict, ReasonStale
			return errRowRejected
		}
		return touchPacks(ctx, recs, packs)
	})

	switch {
	case err == nil, errors.Is(err, errRowRejected):
		return res, nil
	case dbx.IsUniqueViolation(err):
		res.Status, res.Reason = entity.PushConflict, ReasonDuplicate
		return res, nil
	case dbx.IsForeignKeyViolation(err):
		res.Status, res.Reason = entity.PushRejected, ReasonMissingParent
		return res, nil
	}
	return res, fmt.Errorf("push %s/%s: %w", table, meta.ID, err)
}

func ownedBy(owner *string, clientID string) bool {
	return owner != nil && *owner == clientID
}

// PushDeleted hard-deletes the rows named by ts together with everything
// below them and records server tombstones for each.
func (s *SyncService) PushDeleted(ctx context.Context, sess entity.Session, ts []entity.Tombstone) ([]entity.PushResult, error) {
	sc := scope.For(sess)
	log := s.logger.With("table", entity.TableDeleted, "user_id", sess.UserID)

	results := make([]entity.PushResult, 0, len(ts))
	for _, t := range ts {
		res, err := s.pushTombstone(ctx, sc, t)
		if err != nil {
			return nil, err
		}
		s.metrics.Pushed(entity.TableDeleted, res.Status)
		if res.Status != entity.PushOK {
			log.Warn(ctx, "tombstone not accepted", "table_name", t.TableName, "id", t.RecordID, "reason", res.Reason)
		}
		results = append(results, res)
	}
	log.Info(ctx, "tombstones applied", "rows", len(ts))
	return results, nil
}

func (s *SyncService) pushTombstone(ctx context.Context, sc scope.Scope, t entity.Tombstone) (entity.PushResult, error) {
	res := entity.PushResult{ID: t.RecordID, Status: entity.PushOK}
	table := entity.Table(t.TableName)
	if _, ok := entity.Info(table); !ok {
		res.Status, res.Reason = entity.PushRejected, ReasonUnknownTable
		return res, nil
	}
	if t.RecordID == "" {
		res.Status, res.Reason = entity.PushRejected, ReasonMissingID
		return res, nil
	}
	if !scope.CanWrite(table, sc) {
		res.Status, res.Reason = entity.PushRejected, ReasonForbidden
		return res, nil
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := s.repomanager.Records(tx)
		if !sc.Unrestricted() {
			owner, exists, err := recs.OwnerOf(ctx, table, t.RecordID)
			if err != nil {
				return err
			}
			if exists && !ownedBy(owner, sc.ClientID) {
				res.Status, res.Reason = entity.PushRejected, ReasonForbidden
				return errRowRejected
			}
		}
		return s.deleteTree(ctx, recs, s.repomanager.Tombstones(tx), table, t.RecordID)
	})
	if err == nil || errors.Is(err, errRowRejected) {
		return res, nil
	}
	return res, fmt.Errorf("delete %s/%s: %w", table, t.RecordID, err)
}

// deleteTree removes id and its descendants, children first, and stores a
// tombstone for each row. Every tombstone carries the owner resolved before
// anything was deleted. A row that is already gone is left alone.
func (s *SyncService) deleteTree(ctx context.Context, recs records.Repository, tombs tombstones.Repository, table entity.Table, id string) error {
	owner, exists, err := recs.OwnerOf(ctx, table, id)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	refs, err := recs.Descendants(ctx, table, id)
	if err != nil {
		return err
	}
	now := s.now().UnixMilli()
	var packs []string
	for _, ref := range refs {
		if ref.Table == entity.TableClientIconPacks {
			cur, err := recs.GetByID(ctx, ref.Table, ref.ID)
			if err != nil {
				return err
			}
			packs = append(packs, cur.(*entity.ClientIconPack).PackID)
		}
		if _, err := recs.DeleteByID(ctx, ref.Table, ref.ID); err != nil {
			return err
		}
		err := tombs.Create(ctx, entity.DeletedRecord{
			EntityTableName: string(ref.Table),
			RecordID:        ref.ID,
			DeletedAtEpoch:  now,
			OwnerClientID:   owner,
		})
		if err != nil {
			return err
		}
	}
	return touchPacks(ctx, recs, packs)
}

// entitledPacks lists the icon packs whose visibility a write of rec can
// change: the pack named by an entitlement row and the one it named before.
func entitledPacks(ctx context.Context, recs records.Repository, rec entity.Record) ([]string, error) {
	cip, ok := rec.(*entity.ClientIconPack)
	if !ok {
		return nil, nil
	}
	packs := []string{cip.PackID}
	cur, err := recs.GetByID(ctx, entity.TableClientIconPacks, cip.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
	case err != nil:
		return nil, err
	case cur.(*entity.ClientIconPack).PackID != cip.PackID:
		packs = append(packs, cur.(*entity.ClientIconPack).PackID)
	}
	return packs, nil
}

// touchPacks re-versions packs so that clients whose entitlement changed
// pull them and their icons again.
func touchPacks(ctx context.Context, recs records.Repository, packs []string) error {
	for _, id := range packs {
		if err := recs.TouchIconPack(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Pull returns rows of table with a server version above since that are
// visible to sess, in version order.
func (s *SyncService) Pull(ctx context.Context, sess entity.Session, table entity.Table, since int64) ([]entity.Record, error) {
	if _, ok := entity.Info(table); !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	rows, err := s.repomanager.Records(s.db).SelectUpdated(ctx, table, since, scope.For(sess))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []entity.Record{}
	}
	s.metrics.Pulled(table, len(rows))
	s.logger.Debug(ctx, "pull served", "table", table, "since", since, "rows", len(rows), "user_id", sess.UserID)
	return rows, nil
}

// PullMany runs Pull for every table, sharing one since value.
func (s *SyncService) PullMany(ctx context.Context, sess entity.Session, tables []entity.Table, since int64) (map[entity.Table][]entity.Record, error) {
	out := make(map[entity.Table][]entity.Record, len(tables))
	for _, t := range tables {
		rows, err := s.Pull(ctx, sess, t, since)
		if err != nil {
			return nil, err
		}
		out[t] = rows
	}
	return out, nil
}

// PullDeleted returns tombstones with a server version above since that
// concern rows visible to sess.
func (s *SyncService) PullDeleted(ctx context.Context, sess entity.Session, since int64) ([]entity.Tombstone, error) {
	list, err := s.repomanager.Tombstones(s.db).SelectSince(ctx, since, scope.For(sess))
	if err != nil {
		return nil, err
	}
	out := make([]entity.Tombstone, 0, len(list))
	for _, d := range list {
		out = append(out, d.Tombstone())
	}
	s.metrics.Tombstones(len(out))
	s.logger.Debug(ctx, "tombstones served", "since", since, "rows", len(out), "user_id", sess.UserID)
	return out, nil
}

// PurgeTombstones drops tombstones older than olderThan. Devices that have
// not synced within that window must do a full resync.
func (s *SyncService) PurgeTombstones(ctx context.Context, olderThan time.Duration) (int64, error) {
	before := s.now().Add(-olderThan).UnixMilli()
	n, err := s.repomanager.Tombstones(s.db).PurgeBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "tombstones purged", "before", before, "rows", n)
	return n, nil
}
