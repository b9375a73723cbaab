package entity

import (
	"fmt"
	"sort"
)

// Table is the name of a synchronized table.
type Table string

const (
	TableClientGroups    Table = "client_groups"
	TableClients         Table = "clients"
	TableSites           Table = "sites"
	TableInstallations   Table = "installations"
	TableComponents      Table = "components"
	TableTemplates       Table = "component_templates"
	TableTemplateFields  Table = "component_template_fields"
	TableSessions        Table = "maintenance_sessions"
	TableValues          Table = "maintenance_values"
	TableIconPacks       Table = "icon_packs"
	TableIcons           Table = "icons"
	TableClientIconPacks Table = "client_icon_packs"
	TableUserMemberships Table = "user_memberships"
	TableDeleted         Table = "deleted"
)

// DeletedRecordsTableName is the storage table of tombstones.
const DeletedRecordsTableName = "deleted_records"

// TableInfo describes a table's place in the data model.
type TableInfo struct {
	Name Table
	New  func() Record
	// Parent is the next hop on the ownership chain, with ParentColumn
	// holding its id. Deleting a parent cascades to its children.
	Parent       Table
	ParentColumn string
	// Reference tables hold shared catalog data that CLIENT users may read
	// but never write.
	Reference bool
	// ClientWritable tables accept pushes from CLIENT users, subject to
	// ownership checks.
	ClientWritable bool
}

var registry = map[Table]TableInfo{
	TableClientGroups: {Name: TableClientGroups, New: func() Record { return &ClientGroup{} }},
	TableClients:      {Name: TableClients, New: func() Record { return &Client{} }},
	TableSites: {Name: TableSites, New: func() Record { return &Site{} },
		Parent: TableClients, ParentColumn: "client_id", ClientWritable: true},
	TableInstallations: {Name: TableInstallations, New: func() Record { return &Installation{} },
		Parent: TableSites, ParentColumn: "site_id", ClientWritable: true},
	TableComponents: {Name: TableComponents, New: func() Record { return &Component{} },
		Parent: TableInstallations, ParentColumn: "installation_id", ClientWritable: true},
	TableSessions: {Name: TableSessions, New: func() Record { return &MaintenanceSession{} },
		Parent: TableSites, ParentColumn: "site_id", ClientWritable: true},
	TableValues: {Name: TableValues, New: func() Record { return &MaintenanceValue{} },
		Parent: TableSessions, ParentColumn: "session_id", ClientWritable: true},
	TableTemplates: {Name: TableTemplates, New: func() Record { return &ComponentTemplate{} }, Reference: true},
	TableTemplateFields: {Name: TableTemplateFields, New: func() Record { return &ComponentTemplateField{} },
		Parent: TableTemplates, ParentColumn: "template_id", Reference: true},
	TableIconPacks: {Name: TableIconPacks, New: func() Record { return &IconPack{} }, Reference: true},
	TableIcons: {Name: TableIcons, New: func() Record { return &Icon{} },
		Parent: TableIconPacks, ParentColumn: "pack_id", Reference: true},
	TableClientIconPacks: {Name: TableClientIconPacks, New: func() Record { return &ClientIconPack{} },
		Parent: TableClients, ParentColumn: "client_id"},
	TableUserMemberships: {Name: TableUserMemberships, New: func() Record { return &UserMembership{} }},
}

// PushOrder is the order in which dirty tables are uploaded. Parents precede
// children so server-side foreign keys resolve.
var PushOrder = []Table{
	TableClientGroups,
	TableClients,
	TableSites,
	TableInstallations,
	TableComponents,
	TableSessions,
	TableValues,
	TableTemplates,
	TableTemplateFields,
	TableIconPacks,
	TableIcons,
	TableClientIconPacks,
}

// PullOrder is the order in which tables are downloaded. Tombstones
// (TableDeleted) are always fetched last.
var PullOrder = []Table{
	TableClientGroups,
	TableClients,
	TableSites,
	TableInstallations,
	TableComponents,
	TableSessions,
	TableValues,
	TableTemplates,
	TableTemplateFields,
	TableIconPacks,
	TableIcons,
	TableClientIconPacks,
	TableUserMemberships,
}

// Info returns the registry entry for t.
func Info(t Table) (TableInfo, bool) {
	info, ok := registry[t]
	return info, ok
}

// New creates an empty record for t.
func New(t Table) (Record, error) {
	info, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", t)
	}
	return info.New(), nil
}

// Tables lists every registered table in pull order.
func Tables() []Table {
	return append([]Table(nil), PullOrder...)
}

// Children returns the tables whose parent is t.
func Children(t Table) []TableInfo {
	var out []TableInfo
	for _, name := range PullOrder {
		if info := registry[name]; info.Parent == t {
			out = append(out, info)
		}
	}
	return out
}

// Depth is the distance of t from the root of its ownership chain.
func Depth(t Table) int {
	d := 0
	for {
		info, ok := registry[t]
		if !ok || info.Parent == "" {
			return d
		}
		t = info.Parent
		d++
	}
}

// SortChildFirst orders tombstones so that descendants are applied before
// their ancestors.
func SortChildFirst(ts []Tombstone) {
	sort.SliceStable(ts, func(i, j int) bool {
		return Depth(Table(ts[i].TableName)) > Depth(Table(ts[j].TableName))
	})
}
