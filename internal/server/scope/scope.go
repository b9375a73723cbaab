// Package scope decides which rows a session may read or write. Every
// ownership predicate of the server lives here; repositories only splice the
// returned SQL fragments into their queries.
package scope

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// Scope is the data visibility of one authenticated user.
type Scope struct {
	Role     entity.Role
	UserID   string
	ClientID string
}

// For derives the scope of a session.
func For(s entity.Session) Scope {
	return Scope{Role: s.Role, UserID: s.UserID, ClientID: s.ClientID}
}

// Unrestricted reports whether the scope sees every row. ADMIN and ENGINEER
// users are unrestricted; membership based narrowing is not enforced yet.
func (s Scope) Unrestricted() bool { return s.Role != entity.RoleClient }

// OwnerExpr returns a scalar SQL expression yielding the owning client id of
// the row aliased as alias in table. The expression walks the parent chain of
// the table registry and evaluates to NULL for rows outside any client.
func OwnerExpr(table entity.Table, alias string) string {
	return ownerExpr(table, alias, 0)
}

func ownerExpr(table entity.Table, alias string, depth int) string {
	if table == entity.TableClients {
		return alias + ".id"
	}
	info, ok := entity.Info(table)
	if !ok || info.Parent == "" {
		return "NULL"
	}
	if info.Parent == entity.TableClients {
		return alias + "." + info.ParentColumn
	}
	next := fmt.Sprintf("o%d", depth+1)
	return fmt.Sprintf("(SELECT %s FROM %s %s WHERE %s.id = %s.%s)",
		ownerExpr(info.Parent, next, depth+1), info.Parent, next, next, alias, info.ParentColumn)
}

// Predicate returns a boolean SQL expression restricting rows of table
// (aliased as alias) to those visible in s. Arguments are bound through b.
// Unrestricted scopes get an empty predicate.
func Predicate(b *dbx.Builder, table entity.Table, alias string, s Scope) string {
	if s.Unrestricted() {
		return ""
	}
	switch table {
	case entity.TableClients:
		return alias + ".id = " + b.Arg(s.ClientID)
	case entity.TableClientGroups:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM clients g WHERE g.group_id = %s.id AND g.id = %s)",
			alias, b.Arg(s.ClientID))
	case entity.TableTemplates, entity.TableTemplateFields:
		return "1 = 1"
	case entity.TableIconPacks:
		return packVisible(b, alias, s.ClientID)
	case entity.TableIcons:
		return fmt.Sprintf("%s.is_active = 1 AND EXISTS (SELECT 1 FROM icon_packs vp WHERE vp.id = %s.pack_id AND %s)",
			alias, alias, packVisible(b, "vp", s.ClientID))
	case entity.TableClientIconPacks:
		return alias + ".client_id = " + b.Arg(s.ClientID)
	case entity.TableUserMemberships:
		return alias + ".user_id = " + b.Arg(s.UserID)
	}
	return OwnerExpr(table, alias) + " = " + b.Arg(s.ClientID)
}

// packVisible encodes the icon pack policy: a pack must be visible in client
// apps and either be a default not disabled for the client, or be enabled
// for the client explicitly.
func packVisible(b *dbx.Builder, alias, clientID string) string {
	override := func(enabled int) string {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM client_icon_packs cip WHERE cip.pack_id = %s.id AND cip.client_id = %s AND cip.is_enabled = %d)",
			alias, b.Arg(clientID), enabled)
	}
	return fmt.Sprintf("(%s.is_visible_in_client = 1 AND ((%s.is_default_for_all_clients = 1 AND NOT %s) OR %s))",
		alias, alias, override(0), override(1))
}

// sharedTombstoneTables have no owning client; their tombstones are visible
// to everyone.
func sharedTombstoneTables() []string {
	var out []string
	for _, t := range entity.Tables() {
		info, _ := entity.Info(t)
		if info.Reference || t == entity.TableClientGroups {
			out = append(out, string(t))
		}
	}
	return out
}

// TombstonePredicate restricts deleted_records rows (aliased as alias) to
// those the scope may learn about.
func TombstonePredicate(b *dbx.Builder, alias string, s Scope) string {
	if s.Unrestricted() {
		return ""
	}
	shared := sharedTombstoneTables()
	vals := make([]any, len(shared))
	for i, t := range shared {
		vals[i] = t
	}
	return fmt.Sprintf("(%s.owner_client_id = %s OR (%s.owner_client_id IS NULL AND %s.entity_table_name IN (%s)))",
		alias, b.Arg(s.ClientID), alias, alias, b.List(vals...))
}

// CanWrite reports whether s may push rows of table at all. Row ownership is
// checked separately.
func CanWrite(table entity.Table, s Scope) bool {
	info, ok := entity.Info(table)
	if !ok {
		return false
	}
	if s.Unrestricted() {
		return true
	}
	return info.ClientWritable
}

// Join combines non-empty predicates with AND.
func Join(preds ...string) string {
	var out []string
	for _, p := range preds {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " AND ")
}
