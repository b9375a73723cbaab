package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Flag
	}{
		{"1", true},
		{"0", false},
		{"true", true},
		{"false", false},
		{`"1"`, true},
		{"null", false},
		{"1.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f Flag
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, f)
		})
	}

	for _, bad := range []string{`"maybe"`, "0.5", "2", "-1", `"NaN"`, `"Inf"`, `"-inf"`} {
		var f Flag
		assert.Error(t, json.Unmarshal([]byte(bad), &f), bad)
	}
}

func TestFlag_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Flag `json:"a"`
		B Flag `json:"b"`
	}{A: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":0}`, string(b))
}

func TestFlag_Scan(t *testing.T) {
	var f Flag
	require.NoError(t, f.Scan(int64(1)))
	assert.True(t, bool(f))
	require.NoError(t, f.Scan([]byte("0")))
	assert.False(t, bool(f))
	require.NoError(t, f.Scan(true))
	assert.True(t, bool(f))
	require.NoError(t, f.Scan(nil))
	assert.False(t, bool(f))
	assert.Error(t, f.Scan(3.5))
	assert.Error(t, f.Scan("0.5"))
}

func TestSite_DecodeWireRow(t *testing.T) {
	raw := `{"id":"s1","client_id":"c1","name":"Plant","updated_at_epoch":1700000000000,
		"created_at_epoch":1690000000000,"is_archived":1,"archived_at_epoch":null,
		"deleted_at_epoch":null,"origin":"","owner_client_id":"c1"}`

	var s Site
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, int64(1700000000000), s.UpdatedAtEpoch)
	assert.True(t, bool(s.IsArchived))
	assert.Nil(t, s.ArchivedAtEpoch)
	assert.Equal(t, OriginCRM, s.Origin.OrDefault())
	require.NotNil(t, s.OwnerClientID)
	assert.Equal(t, "c1", *s.OwnerClientID)
	assert.False(t, s.DirtyFlag)
}

func TestSite_EncodeOmitsLocalColumns(t *testing.T) {
	s := Site{ClientID: "c1"}
	s.ID = "s1"
	s.Touch(5)

	b, err := json.Marshal(&s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "dirty_flag")
	assert.NotContains(t, m, "sync_status")
	assert.Equal(t, float64(5), m["updated_at_epoch"])
	assert.Equal(t, float64(0), m["is_archived"])
}

func TestColumn_ValueAndSet(t *testing.T) {
	c := &Component{}
	cols := c.Fields()

	tpl, _ := Lookup(cols, "template_id")
	assert.Nil(t, tpl.Value())
	require.NoError(t, tpl.Set("t1"))
	assert.Equal(t, "t1", tpl.Value())
	require.NoError(t, tpl.Set(""))
	assert.Nil(t, c.TemplateID)

	order, _ := Lookup(cols, "sort_order")
	require.NoError(t, order.Set("7"))
	assert.Equal(t, int64(7), order.Value())
	assert.Error(t, order.Set("x"))

	require.NoError(t, SetField(c, "name", "Pump"))
	assert.Equal(t, "Pump", c.Name)
	assert.Error(t, SetField(c, "id", "nope"))
}

func TestLocalColumns(t *testing.T) {
	p := &IconPack{}
	p.IsVisibleInClient = true
	p.DirtyFlag = true
	p.SyncStatus = SyncStatusConflict

	cols := LocalColumns(p)
	names := Names(cols)
	assert.Equal(t, "id", names[0])
	assert.Equal(t, "dirty_flag", names[len(names)-2])
	assert.Equal(t, "sync_status", names[len(names)-1])

	vals := Values(cols)
	assert.Equal(t, int64(1), vals[len(vals)-2])
	assert.Equal(t, int64(2), vals[len(vals)-1])
	assert.Equal(t, "CRM", vals[7])
}

func TestRegistry_PushOrderPutsParentsFirst(t *testing.T) {
	seen := map[Table]bool{}
	for _, tbl := range PushOrder {
		info, ok := Info(tbl)
		require.True(t, ok, tbl)
		if info.Parent != "" {
			assert.True(t, seen[info.Parent], "%s pushed before parent %s", tbl, info.Parent)
		}
		seen[tbl] = true

		rec, err := New(tbl)
		require.NoError(t, err)
		assert.Equal(t, tbl, rec.Table())
	}

	_, err := New("nope")
	assert.Error(t, err)
}

func TestDepthAndChildren(t *testing.T) {
	assert.Equal(t, 0, Depth(TableClients))
	assert.Equal(t, 1, Depth(TableSites))
	assert.Equal(t, 3, Depth(TableComponents))
	assert.Equal(t, 3, Depth(TableValues))

	var names []Table
	for _, c := range Children(TableSites) {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []Table{TableInstallations, TableSessions}, names)
}

func TestSortChildFirst(t *testing.T) {
	ts := []Tombstone{
		{TableName: "clients", RecordID: "c"},
		{TableName: "components", RecordID: "k"},
		{TableName: "sites", RecordID: "s"},
		{TableName: "installations", RecordID: "i"},
	}
	SortChildFirst(ts)

	var order []string
	for _, x := range ts {
		order = append(order, x.RecordID)
	}
	assert.Equal(t, []string{"k", "i", "s", "c"}, order)
}

func TestParentID(t *testing.T) {
	v := &MaintenanceValue{SessionID: "m1"}
	assert.Equal(t, "m1", ParentID(v))
	assert.Equal(t, "", ParentID(&Client{}))
}
