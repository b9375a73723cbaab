// Package iconstatus tracks how far the icon binaries of each pack have been
// downloaded to the device.
package iconstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// Status is the download progress of one icon pack.
type Status struct {
	PackID             string
	PackUpdatedAtEpoch int64
	TotalIcons         int
	DownloadedIcons    int
	Completed          bool
	LastError          string
	SyncedAtEpoch      int64
}

// UpToDate reports whether the pack version packUpdatedAt is fully cached.
func (s *Status) UpToDate(packUpdatedAt int64) bool {
	return s != nil && s.Completed && s.PackUpdatedAtEpoch == packUpdatedAt
}

type Repository interface {
	// Get returns nil, nil when the pack was never fetched.
	Get(ctx context.Context, packID string) (*Status, error)
	Save(ctx context.Context, s Status) error
	List(ctx context.Context) ([]Status, error)
	// Delete forgets the status of a pack. Missing packs are not an error.
	Delete(ctx context.Context, packID string) error
	// Clear forgets every pack.
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `pack_id, pack_updated_at_epoch, total_icons, downloaded_icons, completed, last_error, synced_at_epoch`

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(s scanner) (Status, error) {
	var st Status
	err := s.Scan(&st.PackID, &st.PackUpdatedAtEpoch, &st.TotalIcons, &st.DownloadedIcons,
		&st.Completed, &st.LastError, &st.SyncedAtEpoch)
	return st, err
}

func (r *SQLiteRepository) Get(ctx context.Context, packID string) (*Status, error) {
	st, err := scanStatus(r.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM icon_pack_sync_status WHERE pack_id = ?`, packID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get icon status[%s]: %w", packID, err)
	}
	return &st, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s Status) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO icon_pack_sync_status (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pack_id) DO UPDATE SET
			pack_updated_at_epoch = excluded.pack_updated_at_epoch,
			total_icons = excluded.total_icons,
			downloaded_icons = excluded.downloaded_icons,
			completed = excluded.completed,
			last_error = excluded.last_error,
			synced_at_epoch = excluded.synced_at_epoch
	`, s.PackID, s.PackUpdatedAtEpoch, s.TotalIcons, s.DownloadedIcons, s.Completed, s.LastError, s.SyncedAtEpoch)
	if err != nil {
		return fmt.Errorf("failed to save icon status[%s]: %w", s.PackID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, packID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM icon_pack_sync_status WHERE pack_id = ?`, packID); err != nil {
		return fmt.Errorf("failed to delete icon status[%s]: %w", packID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM icon_pack_sync_status`); err != nil {
		return fmt.Errorf("failed to clear icon status: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Status, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM icon_pack_sync_status ORDER BY pack_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list icon status: %w", err)
	}
	defer rows.Close()

	var out []Status
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan icon status: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
