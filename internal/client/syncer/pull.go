package syncer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// Pull downloads rows of table changed since its cursor, or remote
// tombstones when table is entity.TableDeleted.
//
// The cursor is the server version of the newest row applied. Rows that
// fail to decode or store are logged and skipped; the cursor then stops just
// below the oldest failed row, so failures are retried on the next cycle.
func (e *Engine) Pull(ctx context.Context, table entity.Table) (Result, error) {
	if table == entity.TableDeleted {
		return e.pullDeleted(ctx)
	}

	res := Result{Step: Step{Phase: PhasePull, Table: table}}
	log := e.logger.With("step", res.Step.String())

	since, err := e.Cursor(ctx, table)
	if err != nil {
		return res, err
	}

	raw, err := e.api.Pull(ctx, table, since)
	if err != nil {
		return res, err
	}
	res.Received = len(raw)

	newest := since
	var hold int64 = -1

	fail := func(version int64) {
		res.Failed++
		if version > since && (hold < 0 || version-1 < hold) {
			hold = version - 1
		}
	}

	for _, msg := range raw {
		rec, err := entity.New(table)
		if err != nil {
			return res, err
		}
		if err := json.Unmarshal(msg, rec); err != nil {
			log.Warn(ctx, "skipping undecodable row", "error", err)
			fail(-1)
			continue
		}
		m := rec.Meta()
		if m.ID == "" {
			log.Warn(ctx, "skipping row without id")
			fail(m.ServerVersion)
			continue
		}

		if m.IsDeleted() {
			if _, err := e.repos.Records.DeleteByID(ctx, table, m.ID); err != nil {
				log.Warn(ctx, "failed to apply deleted row", "id", m.ID, "error", err)
				fail(m.ServerVersion)
				continue
			}
			res.Applied++
		} else {
			applied, err := e.repos.Records.ApplyRemote(ctx, rec)
			if err != nil {
				log.Warn(ctx, "failed to store row", "id", m.ID, "error", err)
				fail(m.ServerVersion)
				continue
			}
			if applied {
				res.Applied++
			} else {
				log.Debug(ctx, "local copy is dirty; kept", "id", m.ID)
				res.Skipped++
			}
		}

		newest = max(newest, m.ServerVersion)
	}

	if hold >= 0 && hold < newest {
		newest = hold
	}
	if newest != since {
		if newest, err = e.advanceCursor(ctx, table, since, newest); err != nil {
			return res, err
		}
	}
	res.Cursor = newest

	log.Info(ctx, "pulled", "received", res.Received, "applied", res.Applied,
		"skipped", res.Skipped, "failed", res.Failed, "cursor", newest)
	return res, nil
}

func (e *Engine) pullDeleted(ctx context.Context) (Result, error) {
	res := Result{Step: Step{Phase: PhasePull, Table: entity.TableDeleted}}
	log := e.logger.With("step", res.Step.String())

	since, err := e.Cursor(ctx, entity.TableDeleted)
	if err != nil {
		return res, err
	}

	tombs, err := e.api.PullDeleted(ctx, since)
	if err != nil {
		return res, err
	}
	res.Received = len(tombs)

	entity.SortChildFirst(tombs)

	newest := since
	for _, t := range tombs {
		newest = max(newest, t.ServerVersion)
		_, err := e.repos.Records.DeleteByID(ctx, entity.Table(t.TableName), t.RecordID)
		if errors.Is(err, common.ErrUnknownTable) {
			log.Warn(ctx, "tombstone for unknown table", "table", t.TableName, "id", t.RecordID)
			res.Failed++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Applied++
	}

	if newest != since {
		if newest, err = e.advanceCursor(ctx, entity.TableDeleted, since, newest); err != nil {
			return res, err
		}
	}
	res.Cursor = newest

	log.Info(ctx, "applied tombstones", "received", res.Received, "applied", res.Applied, "cursor", newest)
	return res, nil
}
