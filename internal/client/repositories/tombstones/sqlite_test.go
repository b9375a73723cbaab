package tombstones

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE deleted_records (
    entity_table_name TEXT NOT NULL,
    record_id         TEXT NOT NULL,
    deleted_at_epoch  INTEGER NOT NULL,
    owner_client_id   TEXT NULL,
    dirty_flag        INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (entity_table_name, record_id)
);`)
	require.NoError(t, err)
	return db
}

func TestCreate_GetAllPending_Remove(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	owner := "c1"
	require.NoError(t, r.Create(ctx, entity.DeletedRecord{EntityTableName: "sites", RecordID: "s1", DeletedAtEpoch: 20, OwnerClientID: &owner}))
	require.NoError(t, r.Create(ctx, entity.DeletedRecord{EntityTableName: "components", RecordID: "k1", DeletedAtEpoch: 10}))

	list, err := r.GetAllPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "k1", list[0].RecordID)
	assert.Nil(t, list[0].OwnerClientID)
	assert.Equal(t, "s1", list[1].RecordID)
	require.NotNil(t, list[1].OwnerClientID)
	assert.True(t, list[1].DirtyFlag)

	assert.Equal(t, entity.Tombstone{TableName: "sites", RecordID: "s1", DeletedAtEpoch: 20}, list[1].Tombstone())

	require.NoError(t, r.Remove(ctx, "components", "k1"))
	list, err = r.GetAllPending(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_ReplacesExisting(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, entity.DeletedRecord{EntityTableName: "sites", RecordID: "s1", DeletedAtEpoch: 1}))
	require.NoError(t, r.Create(ctx, entity.DeletedRecord{EntityTableName: "sites", RecordID: "s1", DeletedAtEpoch: 5}))

	list, err := r.GetAllPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(5), list[0].DeletedAtEpoch)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	err := r.Create(context.Background(), entity.DeletedRecord{EntityTableName: "sites", RecordID: "s1"})
	require.ErrorContains(t, err, "failed to store tombstone sites/s1")

	_, err = r.GetAllPending(context.Background())
	require.ErrorContains(t, err, "failed to select tombstones")
}
