package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/client/syncer"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

var errUsage = errors.New("usage")

// tableAliases lets users type short names at the prompt.
var tableAliases = map[string]entity.Table{
	"groups":      entity.TableClientGroups,
	"templates":   entity.TableTemplates,
	"fields":      entity.TableTemplateFields,
	"sessions":    entity.TableSessions,
	"values":      entity.TableValues,
	"packs":       entity.TableIconPacks,
	"memberships": entity.TableUserMemberships,
}

func resolveTable(name string) (entity.Table, error) {
	if t, ok := tableAliases[name]; ok {
		return t, nil
	}
	t := entity.Table(name)
	if _, ok := entity.Info(t); !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

func tableNames() string {
	names := make([]string, 0, len(entity.PullOrder))
	for _, t := range entity.PullOrder {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// fail prints err and returns it, so handlers can `return a.fail(err)`.
func (a *App) fail(err error) error {
	if errors.Is(err, errUsage) {
		printlnFn(err.Error())
	} else {
		printlnFn("Error:", err.Error())
	}
	return err
}

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

// summary is the short one-line form of a record.
func summary(rec entity.Record) string {
	label := ""
	for _, name := range []string{"name", "label", "value", "scope"} {
		if c, ok := entity.Lookup(rec.Fields(), name); ok {
			label = c.StringValue()
			break
		}
	}
	m := rec.Meta()
	var marks []string
	if m.IsArchived {
		marks = append(marks, "archived")
	}
	if m.DirtyFlag {
		marks = append(marks, strings.ToLower(m.SyncStatus.String()))
	}
	if len(marks) > 0 {
		label += " [" + strings.Join(marks, ",") + "]"
	}
	return label
}

// List prints the rows of a table: list <table> [all].
func (a *App) List(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.fail(usage("list <table> [all]; tables: %s", tableNames()))
	}
	table, err := resolveTable(args[0])
	if err != nil {
		return a.fail(err)
	}
	all := len(args) > 1 && args[1] == "all"

	rows, err := a.records.List(ctx, table, all)
	if err != nil {
		return a.fail(err)
	}
	if len(rows) == 0 {
		printlnFn("No records")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.Meta().ID, summary(r))
	}
	return tw.Flush()
}

// Show prints every column of one row: show <table> <id>.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return a.fail(usage("show <table> <id>"))
	}
	table, err := resolveTable(args[0])
	if err != nil {
		return a.fail(err)
	}
	rec, err := a.records.Get(ctx, table, args[1])
	if err != nil {
		return a.fail(err)
	}
	a.printRecord(rec)
	return nil
}

func (a *App) printRecord(rec entity.Record) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, c := range entity.LocalColumns(rec) {
		fmt.Fprintf(tw, "%s:\t%s\n", c.Name, c.StringValue())
	}
	_ = tw.Flush()
}

// Add prompts for every field of a new row: add <table>.
func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.fail(usage("add <table>"))
	}
	table, err := resolveTable(args[0])
	if err != nil {
		return a.fail(err)
	}
	rec, err := entity.New(table)
	if err != nil {
		return a.fail(err)
	}
	if err := a.promptFields(rec, false); err != nil {
		return a.fail(err)
	}
	if err := a.records.Create(ctx, rec); err != nil {
		return a.fail(err)
	}
	printlnFn("Created", rec.Meta().ID)
	return nil
}

// Edit prompts for every field, keeping the current value on empty input:
// edit <table> <id>.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return a.fail(usage("edit <table> <id>"))
	}
	table, err := resolveTable(args[0])
	if err != nil {
		return a.fail(err)
	}
	rec, err := a.records.Get(ctx, table, args[1])
	if err != nil {
		return a.fail(err)
	}
	if err := a.promptFields(rec, true); err != nil {
		return a.fail(err)
	}
	if err := a.records.Update(ctx, rec); err != nil {
		return a.fail(err)
	}
	printlnFn("Updated", rec.Meta().ID)
	return nil
}

// promptFields asks for each entity field. When editing, an empty answer
// keeps the value and "-" clears it.
func (a *App) promptFields(rec entity.Record, editing bool) error {
	for _, c := range rec.Fields() {
		prompt := c.Name
		if editing {
			prompt = fmt.Sprintf("%s [%s]", c.Name, c.StringValue())
		}

		var (
			raw string
			err error
		)
		if c.Name == "notes" || c.Name == "characteristics" {
			raw, err = GetMultiline(a.reader, prompt, a.out)
		} else {
			raw, err = getSimpleText(a.reader, prompt, a.out)
		}
		if err != nil {
			return err
		}

		switch {
		case editing && raw == "":
			continue
		case editing && raw == "-":
			raw = ""
		case !editing && raw == "":
			if _, isString := c.Ptr.(*string); !isString {
				if _, isFlag := c.Ptr.(*entity.Flag); !isFlag {
					continue
				}
				raw = "0"
			}
		}
		if err := c.Set(raw); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) idCommand(ctx context.Context, args []string, name string, fn func(context.Context, entity.Table, string) error, done string) error {
	if len(args) < 2 {
		return a.fail(usage("%s <table> <id>", name))
	}
	table, err := resolveTable(args[0])
	if err != nil {
		return a.fail(err)
	}
	if err := fn(ctx, table, args[1]); err != nil {
		return a.fail(err)
	}
	printlnFn(done, args[1])
	return nil
}

func (a *App) Archive(ctx context.Context, args []string) error {
	return a.idCommand(ctx, args, "archive", a.records.Archive, "Archived")
}

func (a *App) Unarchive(ctx context.Context, args []string) error {
	return a.idCommand(ctx, args, "unarchive", a.records.Unarchive, "Restored")
}

// Delete hard-deletes a row and its children after confirmation.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) >= 2 && !Confirm(a.reader, fmt.Sprintf("Delete %s %s and everything under it?", args[0], args[1]), os.Stdout) {
		return nil
	}
	return a.idCommand(ctx, args, "delete", a.records.Delete, "Deleted")
}

// Conflicts lists rows refused by the server.
func (a *App) Conflicts(ctx context.Context, _ []string) error {
	rows, err := a.records.Conflicts(ctx)
	if err != nil {
		return a.fail(err)
	}
	if len(rows) == 0 {
		printlnFn("No conflicts")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Table(), r.Meta().ID, summary(r))
	}
	return tw.Flush()
}

// Resolve settles a conflict: resolve <table> <id> keep|discard.
func (a *App) Resolve(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return a.fail(usage("resolve <table> <id> keep|discard"))
	}
	table, err := resolveTable(args[0])
	if err != nil {
		return a.fail(err)
	}
	switch args[2] {
	case "keep":
		err = a.records.KeepLocal(ctx, table, args[1])
	case "discard":
		err = a.records.DiscardLocal(ctx, table, args[1])
	default:
		return a.fail(usage("resolve <table> <id> keep|discard"))
	}
	if err != nil {
		if errors.Is(err, services.ErrNotInConflict) {
			printlnFn("Record is not in conflict")
			return err
		}
		return a.fail(err)
	}
	printlnFn("Resolved", args[1])
	return nil
}

// Status prints connectivity, pending changes, the last sync and icon
// cache progress.
func (a *App) Status(ctx context.Context, _ []string) error {
	printlnFn("Mode:", a.getMode())
	if s := a.currentSession(); s != nil {
		printlnFn(fmt.Sprintf("User: %s (%s)", displayName(s.UserName, s.UserID), s.Role))
	}

	counts, err := a.records.PendingCounts(ctx)
	if err != nil {
		return a.fail(err)
	}
	if len(counts) == 0 {
		printlnFn("Nothing to push")
	} else {
		tables := make([]string, 0, len(counts))
		for t := range counts {
			tables = append(tables, string(t))
		}
		sort.Strings(tables)
		for _, t := range tables {
			printlnFn(fmt.Sprintf("Pending %s: %d", t, counts[entity.Table(t)]))
		}
	}

	if r := a.lastReport.Load(); r != nil {
		t := r.Totals()
		printlnFn(fmt.Sprintf("Last sync: pushed %d, pulled %d, conflicts %d, abandoned %v", t.Sent, t.Received, t.Conflicts, r.Abandoned))
	}
	if st := a.sync.State(); st.Kind == syncer.StateRunning {
		printlnFn(fmt.Sprintf("Sync running: %s (%.0f%%)", st.Step, st.Progress*100))
	}

	if a.icons != nil {
		packs, err := a.icons.List(ctx)
		if err != nil {
			return a.fail(err)
		}
		for _, p := range packs {
			printlnFn(fmt.Sprintf("Icon pack %s: %d/%d", p.PackID, p.DownloadedIcons, p.TotalIcons))
		}
	}
	return nil
}
