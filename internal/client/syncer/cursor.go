package syncer

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

const cursorPrefix = "cursor:"

func cursorKey(table entity.Table) string {
	return cursorPrefix + string(table)
}

// Cursor returns the last server version of table applied locally. Without
// a stored cursor it is 0 and the next pull fetches the whole table.
func (e *Engine) Cursor(ctx context.Context, table entity.Table) (int64, error) {
	v, _, err := e.repos.Metadata.GetInt64(ctx, cursorKey(table))
	return v, err
}

func (e *Engine) setCursor(ctx context.Context, table entity.Table, v int64) error {
	return e.repos.Metadata.SetInt64(ctx, cursorKey(table), v)
}

// advanceCursor moves the cursor of table from since to v unless it was
// rewound while the pull was in flight; a rewind wins.
func (e *Engine) advanceCursor(ctx context.Context, table entity.Table, since, v int64) (int64, error) {
	ok, err := e.repos.Metadata.SwapInt64(ctx, cursorKey(table), since, v)
	if err != nil {
		return since, err
	}
	if !ok {
		e.logger.Info(ctx, "cursor moved during pull; keeping it", "table", table)
		return e.Cursor(ctx, table)
	}
	return v, nil
}

// ResetCursor forces the next pull of table to start from the beginning.
func (e *Engine) ResetCursor(ctx context.Context, table entity.Table) error {
	return e.repos.Metadata.SetInt64(ctx, cursorKey(table), 0)
}

// LowerCursor moves the cursor of table back to v if it is ahead of it.
func (e *Engine) LowerCursor(ctx context.Context, table entity.Table, v int64) error {
	cur, err := e.Cursor(ctx, table)
	if err != nil {
		return err
	}
	if v < cur {
		return e.setCursor(ctx, table, v)
	}
	return nil
}

// ResetAllCursors forgets every watermark so that each table is pulled in
// full on the next cycle.
func (e *Engine) ResetAllCursors(ctx context.Context) error {
	return e.repos.Metadata.DeletePrefix(ctx, cursorPrefix)
}
