package entity

// Tombstone is the wire form of a hard delete.
type Tombstone struct {
	TableName      string `json:"tableName"`
	RecordID       string `json:"recordId"`
	DeletedAtEpoch int64  `json:"deletedAtEpoch"`
	ServerVersion  int64  `json:"serverVersion"`
}

// DeletedRecord is a stored tombstone. OwnerClientID is a snapshot of the
// deleted row's owner taken before the row disappeared; DirtyFlag is only
// meaningful on the device.
type DeletedRecord struct {
	EntityTableName string
	RecordID        string
	DeletedAtEpoch  int64
	ServerVersion   int64
	OwnerClientID   *string
	DirtyFlag       bool
}

// Tombstone converts the stored record to its wire form.
func (d DeletedRecord) Tombstone() Tombstone {
	return Tombstone{
		TableName:      d.EntityTableName,
		RecordID:       d.RecordID,
		DeletedAtEpoch: d.DeletedAtEpoch,
		ServerVersion:  d.ServerVersion,
	}
}

// PushStatus is the per-row outcome of a push.
type PushStatus string

const (
	PushOK       PushStatus = "ok"
	PushConflict PushStatus = "conflict"
	PushRejected PushStatus = "rejected"
)

// PushResult reports what the server did with one pushed row.
type PushResult struct {
	ID     string     `json:"id"`
	Status PushStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// PushResponse is the body returned by push endpoints.
type PushResponse struct {
	Results []PushResult `json:"results"`
}

// IconAsset is a downloadable icon binary.
type IconAsset struct {
	IconID   string `json:"iconId"`
	AssetKey string `json:"assetKey"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`
}

// Role is the access role of an authenticated user.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEngineer Role = "ENGINEER"
	RoleClient   Role = "CLIENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEngineer, RoleClient:
		return true
	}
	return false
}

// Session describes the authenticated user behind a request. For CLIENT
// users ClientID is the only customer whose data they may touch.
type Session struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Role     Role   `json:"role"`
	ClientID string `json:"clientId,omitempty"`
}

// IsClient reports whether the session is restricted to one customer.
func (s Session) IsClient() bool { return s.Role == RoleClient }
