// Package versions hands out the server change sequence that pull cursors
// are based on.
package versions

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

const nextSQL = `UPDATE sync_versions SET value = value + 1 WHERE id = 1 RETURNING value`

// Next bumps the sequence and returns the new value. Called inside a
// transaction it holds the counter row until commit, so a reader never sees
// a version before every smaller one is visible.
func Next(ctx context.Context, db dbx.DBTX) (int64, error) {
	var v int64
	if err := db.QueryRowContext(ctx, nextSQL).Scan(&v); err != nil {
		return 0, fmt.Errorf("next server version: %w", err)
	}
	return v, nil
}
