package entity

// ClientGroup groups customer accounts.
type ClientGroup struct {
	SyncMeta
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (*ClientGroup) Table() Table { return TableClientGroups }

func (e *ClientGroup) Fields() []Column {
	return []Column{
		{Name: "name", Ptr: &e.Name},
		{Name: "description", Ptr: &e.Description},
	}
}

// Client is a customer account. Sites hang off it.
type Client struct {
	SyncMeta
	GroupID     *string `json:"group_id"`
	Name        string  `json:"name"`
	ContactName string  `json:"contact_name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Address     string  `json:"address"`
	Notes       string  `json:"notes"`
}

func (*Client) Table() Table { return TableClients }

func (e *Client) Fields() []Column {
	return []Column{
		{Name: "group_id", Ptr: &e.GroupID},
		{Name: "name", Ptr: &e.Name},
		{Name: "contact_name", Ptr: &e.ContactName},
		{Name: "email", Ptr: &e.Email},
		{Name: "phone", Ptr: &e.Phone},
		{Name: "address", Ptr: &e.Address},
		{Name: "notes", Ptr: &e.Notes},
	}
}

// Site is a physical location belonging to a client.
type Site struct {
	SyncMeta
	ClientID   string  `json:"client_id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Notes      string  `json:"notes"`
	IconID     *string `json:"icon_id"`
}

func (*Site) Table() Table { return TableSites }

func (e *Site) Fields() []Column {
	return []Column{
		{Name: "client_id", Ptr: &e.ClientID},
		{Name: "name", Ptr: &e.Name},
		{Name: "address", Ptr: &e.Address},
		{Name: "city", Ptr: &e.City},
		{Name: "postal_code", Ptr: &e.PostalCode},
		{Name: "notes", Ptr: &e.Notes},
		{Name: "icon_id", Ptr: &e.IconID},
	}
}

// Installation is a treatment system installed at a site.
type Installation struct {
	SyncMeta
	SiteID      string  `json:"site_id"`
	Name        string  `json:"name"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	IconID      *string `json:"icon_id"`
	SortOrder   int64   `json:"sort_order"`
}

func (*Installation) Table() Table { return TableInstallations }

func (e *Installation) Fields() []Column {
	return []Column{
		{Name: "site_id", Ptr: &e.SiteID},
		{Name: "name", Ptr: &e.Name},
		{Name: "kind", Ptr: &e.Kind},
		{Name: "description", Ptr: &e.Description},
		{Name: "icon_id", Ptr: &e.IconID},
		{Name: "sort_order", Ptr: &e.SortOrder},
	}
}

// Component is a piece of equipment inside an installation.
type Component struct {
	SyncMeta
	InstallationID  string  `json:"installation_id"`
	TemplateID      *string `json:"template_id"`
	Name            string  `json:"name"`
	SerialNumber    string  `json:"serial_number"`
	Characteristics string  `json:"characteristics"`
	IconID          *string `json:"icon_id"`
	SortOrder       int64   `json:"sort_order"`
}

func (*Component) Table() Table { return TableComponents }

func (e *Component) Fields() []Column {
	return []Column{
		{Name: "installation_id", Ptr: &e.InstallationID},
		{Name: "template_id", Ptr: &e.TemplateID},
		{Name: "name", Ptr: &e.Name},
		{Name: "serial_number", Ptr: &e.SerialNumber},
		{Name: "characteristics", Ptr: &e.Characteristics},
		{Name: "icon_id", Ptr: &e.IconID},
		{Name: "sort_order", Ptr: &e.SortOrder},
	}
}

// ComponentTemplate is a reusable definition of a component kind.
type ComponentTemplate struct {
	SyncMeta
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	IconID      *string `json:"icon_id"`
}

func (*ComponentTemplate) Table() Table { return TableTemplates }

func (e *ComponentTemplate) Fields() []Column {
	return []Column{
		{Name: "name", Ptr: &e.Name},
		{Name: "description", Ptr: &e.Description},
		{Name: "category", Ptr: &e.Category},
		{Name: "icon_id", Ptr: &e.IconID},
	}
}

// ComponentTemplateField is a measurable or descriptive field of a template.
type ComponentTemplateField struct {
	SyncMeta
	TemplateID       string `json:"template_id"`
	Label            string `json:"label"`
	FieldKey         string `json:"field_key"`
	FieldType        string `json:"field_type"`
	Unit             string `json:"unit"`
	Options          string `json:"options"`
	IsCharacteristic Flag   `json:"is_characteristic"`
	IsRequired       Flag   `json:"is_required"`
	SortOrder        int64  `json:"sort_order"`
}

func (*ComponentTemplateField) Table() Table { return TableTemplateFields }

func (e *ComponentTemplateField) Fields() []Column {
	return []Column{
		{Name: "template_id", Ptr: &e.TemplateID},
		{Name: "label", Ptr: &e.Label},
		{Name: "field_key", Ptr: &e.FieldKey},
		{Name: "field_type", Ptr: &e.FieldType},
		{Name: "unit", Ptr: &e.Unit},
		{Name: "options", Ptr: &e.Options},
		{Name: "is_characteristic", Ptr: &e.IsCharacteristic},
		{Name: "is_required", Ptr: &e.IsRequired},
		{Name: "sort_order", Ptr: &e.SortOrder},
	}
}

// MaintenanceSession is a single service visit at a site.
type MaintenanceSession struct {
	SyncMeta
	SiteID           string  `json:"site_id"`
	InstallationID   *string `json:"installation_id"`
	PerformedAtEpoch int64   `json:"performed_at_epoch"`
	TechnicianName   string  `json:"technician_name"`
	Status           string  `json:"status"`
	Notes            string  `json:"notes"`
}

func (*MaintenanceSession) Table() Table { return TableSessions }

func (e *MaintenanceSession) Fields() []Column {
	return []Column{
		{Name: "site_id", Ptr: &e.SiteID},
		{Name: "installation_id", Ptr: &e.InstallationID},
		{Name: "performed_at_epoch", Ptr: &e.PerformedAtEpoch},
		{Name: "technician_name", Ptr: &e.TechnicianName},
		{Name: "status", Ptr: &e.Status},
		{Name: "notes", Ptr: &e.Notes},
	}
}

// MaintenanceValue is a reading recorded for a component during a session.
type MaintenanceValue struct {
	SyncMeta
	SessionID      string  `json:"session_id"`
	ComponentID    string  `json:"component_id"`
	InstallationID *string `json:"installation_id"`
	FieldID        *string `json:"field_id"`
	Value          string  `json:"value"`
	Notes          string  `json:"notes"`
}

func (*MaintenanceValue) Table() Table { return TableValues }

func (e *MaintenanceValue) Fields() []Column {
	return []Column{
		{Name: "session_id", Ptr: &e.SessionID},
		{Name: "component_id", Ptr: &e.ComponentID},
		{Name: "installation_id", Ptr: &e.InstallationID},
		{Name: "field_id", Ptr: &e.FieldID},
		{Name: "value", Ptr: &e.Value},
		{Name: "notes", Ptr: &e.Notes},
	}
}

// IconPack is a versioned set of icons.
type IconPack struct {
	SyncMeta
	Name                   string `json:"name"`
	Description            string `json:"description"`
	Version                int64  `json:"version"`
	IsVisibleInClient      Flag   `json:"is_visible_in_client"`
	IsDefaultForAllClients Flag   `json:"is_default_for_all_clients"`
}

func (*IconPack) Table() Table { return TableIconPacks }

func (e *IconPack) Fields() []Column {
	return []Column{
		{Name: "name", Ptr: &e.Name},
		{Name: "description", Ptr: &e.Description},
		{Name: "version", Ptr: &e.Version},
		{Name: "is_visible_in_client", Ptr: &e.IsVisibleInClient},
		{Name: "is_default_for_all_clients", Ptr: &e.IsDefaultForAllClients},
	}
}

// Icon is a single image of a pack. AssetKey addresses the binary in object
// storage.
type Icon struct {
	SyncMeta
	PackID     string `json:"pack_id"`
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	AssetKey   string `json:"asset_key"`
	MimeType   string `json:"mime_type"`
	IsActive   Flag   `json:"is_active"`
}

func (*Icon) Table() Table { return TableIcons }

func (e *Icon) Fields() []Column {
	return []Column{
		{Name: "pack_id", Ptr: &e.PackID},
		{Name: "name", Ptr: &e.Name},
		{Name: "entity_type", Ptr: &e.EntityType},
		{Name: "asset_key", Ptr: &e.AssetKey},
		{Name: "mime_type", Ptr: &e.MimeType},
		{Name: "is_active", Ptr: &e.IsActive},
	}
}

// ClientIconPack overrides pack visibility for one client.
type ClientIconPack struct {
	SyncMeta
	ClientID  string `json:"client_id"`
	PackID    string `json:"pack_id"`
	IsEnabled Flag   `json:"is_enabled"`
}

func (*ClientIconPack) Table() Table { return TableClientIconPacks }

func (e *ClientIconPack) Fields() []Column {
	return []Column{
		{Name: "client_id", Ptr: &e.ClientID},
		{Name: "pack_id", Ptr: &e.PackID},
		{Name: "is_enabled", Ptr: &e.IsEnabled},
	}
}

// UserMembership grants a user access to a scope.
type UserMembership struct {
	SyncMeta
	UserID   string `json:"user_id"`
	Scope    string `json:"scope"`
	TargetID string `json:"target_id"`
}

func (*UserMembership) Table() Table { return TableUserMemberships }

func (e *UserMembership) Fields() []Column {
	return []Column{
		{Name: "user_id", Ptr: &e.UserID},
		{Name: "scope", Ptr: &e.Scope},
		{Name: "target_id", Ptr: &e.TargetID},
	}
}
