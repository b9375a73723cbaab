package syncer

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// Push uploads the pending rows of table, or the pending tombstones when
// table is entity.TableDeleted.
func (e *Engine) Push(ctx context.Context, table entity.Table) (Result, error) {
	if table == entity.TableDeleted {
		return e.pushDeleted(ctx)
	}

	res := Result{Step: Step{Phase: PhasePush, Table: table}}
	log := e.logger.With("step", res.Step.String())

	rows, err := e.repos.Records.GetAllPending(ctx, table)
	if err != nil {
		return res, err
	}
	if len(rows) == 0 {
		return res, nil
	}
	res.Sent = len(rows)

	results, err := e.api.Push(ctx, table, rows)
	if err != nil {
		return res, err
	}

	// Versions are captured before any marking so that a concurrent edit,
	// which bumps updated_at_epoch, keeps its row dirty.
	sent := make(map[string]int64, len(rows))
	for _, r := range rows {
		sent[r.Meta().ID] = r.Meta().UpdatedAtEpoch
	}

	for _, pr := range results {
		version, ok := sent[pr.ID]
		if !ok {
			log.Warn(ctx, "push result for unknown row", "id", pr.ID)
			continue
		}
		delete(sent, pr.ID)

		switch pr.Status {
		case entity.PushOK:
			marked, err := e.repos.Records.MarkSynced(ctx, table, pr.ID, version)
			if err != nil {
				return res, err
			}
			if !marked {
				log.Debug(ctx, "row changed during push; left dirty", "id", pr.ID)
			}
			res.Applied++
		default:
			if _, err := e.repos.Records.MarkConflict(ctx, table, pr.ID, version); err != nil {
				return res, err
			}
			log.Warn(ctx, "row refused by server", "id", pr.ID, "status", pr.Status, "reason", pr.Reason)
			res.Conflicts++
		}
	}

	for id := range sent {
		log.Warn(ctx, "no push result for row; left queued", "id", id)
	}

	log.Info(ctx, "pushed", "sent", res.Sent, "ok", res.Applied, "conflicts", res.Conflicts)
	return res, nil
}

func (e *Engine) pushDeleted(ctx context.Context) (Result, error) {
	res := Result{Step: Step{Phase: PhasePush, Table: entity.TableDeleted}}
	log := e.logger.With("step", res.Step.String())

	pending, err := e.repos.Tombstones.GetAllPending(ctx)
	if err != nil {
		return res, err
	}
	if len(pending) == 0 {
		return res, nil
	}
	res.Sent = len(pending)

	wire := make([]entity.Tombstone, len(pending))
	for i, d := range pending {
		wire[i] = d.Tombstone()
	}

	results, err := e.api.PushDeleted(ctx, wire)
	if err != nil {
		return res, err
	}

	byID := make(map[string]entity.DeletedRecord, len(pending))
	for _, d := range pending {
		byID[d.RecordID] = d
	}

	for _, pr := range results {
		d, ok := byID[pr.ID]
		if !ok {
			continue
		}
		if pr.Status != entity.PushOK {
			// The server keeps the row. Forget the tombstone and rewind the
			// table cursor so the next pull restores the local copy.
			log.Warn(ctx, "tombstone refused by server", "table", d.EntityTableName, "id", d.RecordID, "reason", pr.Reason)
			if err := e.repos.Tombstones.Remove(ctx, d.EntityTableName, d.RecordID); err != nil {
				return res, err
			}
			if err := e.ResetCursor(ctx, entity.Table(d.EntityTableName)); err != nil {
				return res, err
			}
			res.Conflicts++
			continue
		}
		if err := e.repos.Tombstones.Remove(ctx, d.EntityTableName, d.RecordID); err != nil {
			return res, err
		}
		res.Applied++
	}

	log.Info(ctx, "pushed tombstones", "sent", res.Sent, "ok", res.Applied, "refused", res.Conflicts)
	return res, nil
}
