package client

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// Client is the transport contract of the sync engine.
type Client interface {
	Close() error
	// SetToken replaces the bearer token attached to every request.
	SetToken(token string)
	Ping(ctx context.Context) error
	// Session returns who the current token belongs to.
	Session(ctx context.Context) (*entity.Session, error)
	// Push uploads rows of one table and reports a result per row.
	Push(ctx context.Context, table entity.Table, rows []entity.Record) ([]entity.PushResult, error)
	// PushDeleted uploads local tombstones.
	PushDeleted(ctx context.Context, tombstones []entity.Tombstone) ([]entity.PushResult, error)
	// Pull returns raw rows of table with updated_at_epoch >= since. Rows are
	// left undecoded so that one malformed row cannot fail the whole batch.
	Pull(ctx context.Context, table entity.Table, since int64) ([]json.RawMessage, error)
	// PullDeleted returns tombstones with deletedAtEpoch >= since.
	PullDeleted(ctx context.Context, since int64) ([]entity.Tombstone, error)
	// IconAssets returns download URLs for the active icons of a pack.
	IconAssets(ctx context.Context, packID string) ([]entity.IconAsset, error)
}
