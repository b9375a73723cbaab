// Package records is the on-device persistence layer for every synchronized
// table.
//
// One generic SQLite repository serves all tables: the column list of a
// table comes from its entity.Record, so adding a column to an entity and a
// migration is enough to store and sync it.
//
// # Dirty tracking
//
// Local mutations set dirty_flag=1 and sync_status=QUEUED. A successful push
// clears the flag through MarkSynced, which only matches the exact version
// that was pushed; an edit made while the push was in flight keeps its row
// dirty. Rows refused by the server move to CONFLICT and are excluded from
// GetAllPending until the user edits or resolves them.
//
// Rows arriving from the server are written by ApplyRemote, which never
// overwrites a locally dirty row.
package records
