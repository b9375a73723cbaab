package entity

// SyncStatus is the tri-state sync marker of a local row.
type SyncStatus int

const (
	SyncStatusSynced   SyncStatus = 0
	SyncStatusQueued   SyncStatus = 1
	SyncStatusConflict SyncStatus = 2
)

func (s SyncStatus) String() string {
	switch s {
	case SyncStatusSynced:
		return "SYNCED"
	case SyncStatusQueued:
		return "QUEUED"
	case SyncStatusConflict:
		return "CONFLICT"
	}
	return "UNKNOWN"
}

// Origin records which application created a row.
type Origin string

const (
	OriginCRM    Origin = "CRM"
	OriginClient Origin = "CLIENT"
)

// OrDefault maps the empty origin of legacy rows to CRM.
func (o Origin) OrDefault() Origin {
	if o == "" {
		return OriginCRM
	}
	return o
}

// SyncMeta is the synchronization metadata carried by every entity.
//
// UpdatedAtEpoch is the version marker that decides last-write-wins on push.
// ServerVersion is stamped by the server from its change sequence on every
// accepted write and is what pull cursors follow; whatever a device sends in
// it is ignored. DirtyFlag and SyncStatus are local-only and never leave the
// device.
type SyncMeta struct {
	ID              string  `json:"id"`
	CreatedAtEpoch  int64   `json:"created_at_epoch"`
	UpdatedAtEpoch  int64   `json:"updated_at_epoch"`
	ServerVersion   int64   `json:"server_version"`
	IsArchived      Flag    `json:"is_archived"`
	ArchivedAtEpoch *int64  `json:"archived_at_epoch"`
	DeletedAtEpoch  *int64  `json:"deleted_at_epoch"`
	Origin          Origin  `json:"origin"`
	OwnerClientID   *string `json:"owner_client_id"`
	CreatedByUserID *string `json:"created_by_user_id"`

	DirtyFlag  bool       `json:"-"`
	SyncStatus SyncStatus `json:"-"`
}

// Meta returns the metadata itself; embedding types inherit it.
func (m *SyncMeta) Meta() *SyncMeta { return m }

// Touch marks the row as locally modified at now.
func (m *SyncMeta) Touch(now int64) {
	m.UpdatedAtEpoch = now
	m.DirtyFlag = true
	m.SyncStatus = SyncStatusQueued
}

// Archive soft-deletes the row for display purposes. Archival is an ordinary
// mutation and syncs like any other change.
func (m *SyncMeta) Archive(now int64) {
	m.IsArchived = true
	m.ArchivedAtEpoch = &now
	m.Touch(now)
}

// Unarchive reverses Archive.
func (m *SyncMeta) Unarchive(now int64) {
	m.IsArchived = false
	m.ArchivedAtEpoch = nil
	m.Touch(now)
}

// IsDeleted reports whether the hard-delete marker is set.
func (m *SyncMeta) IsDeleted() bool { return m.DeletedAtEpoch != nil }

func (m *SyncMeta) wireColumns() []Column {
	return []Column{
		{Name: "id", Ptr: &m.ID},
		{Name: "created_at_epoch", Ptr: &m.CreatedAtEpoch},
		{Name: "updated_at_epoch", Ptr: &m.UpdatedAtEpoch},
		{Name: "server_version", Ptr: &m.ServerVersion},
		{Name: "is_archived", Ptr: &m.IsArchived},
		{Name: "archived_at_epoch", Ptr: &m.ArchivedAtEpoch},
		{Name: "deleted_at_epoch", Ptr: &m.DeletedAtEpoch},
		{Name: "origin", Ptr: &m.Origin},
		{Name: "owner_client_id", Ptr: &m.OwnerClientID},
		{Name: "created_by_user_id", Ptr: &m.CreatedByUserID},
	}
}

func (m *SyncMeta) localColumns() []Column {
	return []Column{
		{Name: "dirty_flag", Ptr: &m.DirtyFlag},
		{Name: "sync_status", Ptr: &m.SyncStatus},
	}
}
