package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Column binds a column name to the field that holds its value.
type Column struct {
	Name string
	Ptr  any
}

// Record is implemented by every synchronizable entity.
type Record interface {
	// Table names the table the record lives in.
	Table() Table
	// Meta exposes the embedded sync metadata.
	Meta() *SyncMeta
	// Fields lists the entity-specific columns in schema order.
	Fields() []Column
}

// WireColumns returns the columns exchanged with the server: sync metadata
// followed by entity fields.
func WireColumns(r Record) []Column {
	return append(r.Meta().wireColumns(), r.Fields()...)
}

// LocalColumns returns WireColumns plus the local-only dirty tracking columns.
func LocalColumns(r Record) []Column {
	return append(WireColumns(r), r.Meta().localColumns()...)
}

// Names extracts column names.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Ptrs extracts scan destinations.
func Ptrs(cols []Column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.Ptr
	}
	return out
}

// Values dereferences column pointers into driver-friendly arguments.
func Values(cols []Column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.Value()
	}
	return out
}

// Lookup finds a column by name.
func Lookup(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Value returns the column value in a form accepted by both SQL drivers.
func (c Column) Value() any {
	switch p := c.Ptr.(type) {
	case *string:
		return *p
	case **string:
		if *p == nil {
			return nil
		}
		return **p
	case *int64:
		return *p
	case **int64:
		if *p == nil {
			return nil
		}
		return **p
	case *int:
		return int64(*p)
	case *Flag:
		if *p {
			return int64(1)
		}
		return int64(0)
	case *bool:
		if *p {
			return int64(1)
		}
		return int64(0)
	case *SyncStatus:
		return int64(*p)
	case *Origin:
		return string(p.OrDefault())
	}
	return c.Ptr
}

// StringValue renders the column for display. Nulls render as empty.
func (c Column) StringValue() string {
	v := c.Value()
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Set parses raw and stores it into the column. An empty raw value clears
// nullable columns.
func (c Column) Set(raw string) error {
	switch p := c.Ptr.(type) {
	case *string:
		*p = raw
	case **string:
		if raw == "" {
			*p = nil
			return nil
		}
		v := raw
		*p = &v
	case *int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		*p = n
	case **int64:
		if raw == "" {
			*p = nil
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		*p = &n
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		*p = n
	case *Flag:
		v, err := parseFlag(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		*p = v
	default:
		return fmt.Errorf("%s: column is not settable", c.Name)
	}
	return nil
}

// SetField assigns a single entity field by column name. Sync metadata is
// not settable this way.
func SetField(r Record, name, raw string) error {
	col, ok := Lookup(r.Fields(), name)
	if !ok {
		return fmt.Errorf("%s has no field %q", r.Table(), name)
	}
	return col.Set(raw)
}

// ParentID returns the value of the record's ownership-chain parent column,
// or "" when the table has no parent.
func ParentID(r Record) string {
	info, ok := Info(r.Table())
	if !ok || info.Parent == "" {
		return ""
	}
	col, ok := Lookup(r.Fields(), info.ParentColumn)
	if !ok {
		return ""
	}
	return col.StringValue()
}
