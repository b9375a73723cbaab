package records

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/server/scope"
)

var (
	admin   = scope.Scope{Role: entity.RoleAdmin, UserID: "u-admin"}
	client1 = scope.Scope{Role: entity.RoleClient, UserID: "u-c1", ClientID: "c1"}
	client2 = scope.Scope{Role: entity.RoleClient, UserID: "u-c2", ClientID: "c2"}
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "server.db") + "?_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect(dbx.SQLite.Goose))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return db
}

func meta(id string, updated int64) entity.SyncMeta {
	return entity.SyncMeta{ID: id, CreatedAtEpoch: updated, UpdatedAtEpoch: updated}
}

func seed(t *testing.T, r *SQLRepository, recs ...entity.Record) {
	t.Helper()
	for _, rec := range recs {
		ok, err := r.Upsert(context.Background(), rec)
		require.NoError(t, err)
		require.True(t, ok, "seed %s/%s", rec.Table(), rec.Meta().ID)
	}
}

func ids(recs []entity.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Meta().ID
	}
	return out
}

// seedTree stores two clients with one site each; c1's site carries an
// installation with a component and a session with a value.
func seedTree(t *testing.T, r *SQLRepository) {
	seed(t, r,
		&entity.Client{SyncMeta: meta("c1", 10), Name: "C1"},
		&entity.Client{SyncMeta: meta("c2", 10), Name: "C2"},
		&entity.Site{SyncMeta: meta("s1", 100), ClientID: "c1", Name: "S1"},
		&entity.Site{SyncMeta: meta("s2", 200), ClientID: "c2", Name: "S2"},
		&entity.Installation{SyncMeta: meta("i1", 110), SiteID: "s1"},
		&entity.Component{SyncMeta: meta("k1", 120), InstallationID: "i1"},
		&entity.MaintenanceSession{SyncMeta: meta("m1", 130), SiteID: "s1"},
		&entity.MaintenanceValue{SyncMeta: meta("v1", 140), SessionID: "m1", ComponentID: "k1", Value: "7.2"},
	)
}

func TestUpsert_LastWriteWins(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r, &entity.Client{SyncMeta: meta("c1", 100), Name: "v100"})

	ok, err := r.Upsert(ctx, &entity.Client{SyncMeta: meta("c1", 90), Name: "stale"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Upsert(ctx, &entity.Client{SyncMeta: meta("c1", 100), Name: "same version"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Upsert(ctx, &entity.Client{SyncMeta: meta("c1", 150), Name: "newer"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.GetByID(ctx, entity.TableClients, "c1")
	require.NoError(t, err)
	assert.Equal(t, "newer", got.(*entity.Client).Name)
	assert.Equal(t, int64(4), got.Meta().ServerVersion)
	assert.Equal(t, int64(150), got.Meta().UpdatedAtEpoch)
	assert.Equal(t, entity.OriginCRM, got.Meta().Origin)
}

func TestUpsert_MissingParent(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	_, err := r.Upsert(context.Background(), &entity.Site{SyncMeta: meta("s1", 1), ClientID: "ghost"})
	require.Error(t, err)
	assert.True(t, dbx.IsForeignKeyViolation(err))
}

func TestUpsert_UnknownTable(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	_, err := r.GetByID(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, common.ErrUnknownTable)
}

func TestGetByID_NotFound(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	_, err := r.GetByID(context.Background(), entity.TableSites, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSelectUpdated_ScopedByRole(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seedTree(t, r)

	got, err := r.SelectUpdated(ctx, entity.TableSites, 0, client1)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(got))

	got, err = r.SelectUpdated(ctx, entity.TableSites, 0, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids(got))

	s1 := got[0].Meta().ServerVersion
	assert.Greater(t, got[1].Meta().ServerVersion, s1)

	got, err = r.SelectUpdated(ctx, entity.TableSites, s1, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids(got), "since is exclusive")

	got, err = r.SelectUpdated(ctx, entity.TableSites, got[0].Meta().ServerVersion, admin)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.SelectUpdated(ctx, entity.TableValues, 0, client2)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.SelectUpdated(ctx, entity.TableValues, 0, client1)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, ids(got))

	got, err = r.SelectUpdated(ctx, entity.TableClients, 0, client2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids(got))
}

func TestSelectUpdated_ArchivedIncludedDeletedExcluded(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seedTree(t, r)
	before, err := r.SelectUpdated(ctx, entity.TableSites, 0, admin)
	require.NoError(t, err)
	since := before[len(before)-1].Meta().ServerVersion

	s := &entity.Site{SyncMeta: meta("s3", 300), ClientID: "c1"}
	s.Archive(300)
	del := &entity.Site{SyncMeta: meta("s4", 300), ClientID: "c1"}
	at := int64(300)
	del.DeletedAtEpoch = &at
	seed(t, r, s, del)

	got, err := r.SelectUpdated(ctx, entity.TableSites, since, client1)
	require.NoError(t, err)
	require.Equal(t, []string{"s3"}, ids(got))
	assert.True(t, bool(got[0].Meta().IsArchived))
}

func TestSelectUpdated_ClientGroupsAndMemberships(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	g := "g1"
	seed(t, r,
		&entity.ClientGroup{SyncMeta: meta("g1", 1)},
		&entity.ClientGroup{SyncMeta: meta("g2", 1)},
		&entity.Client{SyncMeta: meta("c1", 1), GroupID: &g},
		&entity.UserMembership{SyncMeta: meta("um1", 1), UserID: "u-c1", Scope: "CLIENT", TargetID: "c1"},
		&entity.UserMembership{SyncMeta: meta("um2", 1), UserID: "u-other", Scope: "CLIENT", TargetID: "c1"},
	)

	got, err := r.SelectUpdated(ctx, entity.TableClientGroups, 0, client1)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids(got))

	got, err = r.SelectUpdated(ctx, entity.TableUserMemberships, 0, client1)
	require.NoError(t, err)
	assert.Equal(t, []string{"um1"}, ids(got))
}

func TestSelectUpdated_IconPackPolicy(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r,
		&entity.Client{SyncMeta: meta("c1", 1)},
		&entity.Client{SyncMeta: meta("c2", 1)},
		// visible default pack
		&entity.IconPack{SyncMeta: meta("p-default", 1), IsVisibleInClient: true, IsDefaultForAllClients: true},
		// default, but disabled for c1
		&entity.IconPack{SyncMeta: meta("p-optout", 1), IsVisibleInClient: true, IsDefaultForAllClients: true},
		// opt-in, enabled for c1 only
		&entity.IconPack{SyncMeta: meta("p-optin", 1), IsVisibleInClient: true},
		// never shown in client apps
		&entity.IconPack{SyncMeta: meta("p-hidden", 1), IsDefaultForAllClients: true},
		&entity.ClientIconPack{SyncMeta: meta("o1", 1), ClientID: "c1", PackID: "p-optout", IsEnabled: false},
		&entity.ClientIconPack{SyncMeta: meta("o2", 1), ClientID: "c1", PackID: "p-optin", IsEnabled: true},
		&entity.Icon{SyncMeta: meta("ic1", 1), PackID: "p-default", IsActive: true},
		&entity.Icon{SyncMeta: meta("ic2", 1), PackID: "p-default", IsActive: false},
		&entity.Icon{SyncMeta: meta("ic3", 1), PackID: "p-optin", IsActive: true},
		&entity.Icon{SyncMeta: meta("ic4", 1), PackID: "p-hidden", IsActive: true},
	)

	got, err := r.SelectUpdated(ctx, entity.TableIconPacks, 0, client1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p-default", "p-optin"}, ids(got))

	got, err = r.SelectUpdated(ctx, entity.TableIconPacks, 0, client2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p-default", "p-optout"}, ids(got))

	got, err = r.SelectUpdated(ctx, entity.TableIcons, 0, client1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ic1", "ic3"}, ids(got))

	got, err = r.SelectUpdated(ctx, entity.TableIcons, 0, admin)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = r.ListByParent(ctx, entity.TableIcons, "p-default", client2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ic1"}, ids(got))

	ok, err := r.Visible(ctx, entity.TableIconPacks, "p-optin", client2)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.Visible(ctx, entity.TableIconPacks, "p-optin", client1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOwnerOf_ParentOwner(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seedTree(t, r)

	owner, ok, err := r.OwnerOf(ctx, entity.TableValues, "v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", *owner)

	owner, ok, err = r.OwnerOf(ctx, entity.TableClients, "c2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c2", *owner)

	_, ok, err = r.OwnerOf(ctx, entity.TableSites, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	owner, ok, err = r.ParentOwner(ctx, &entity.Component{SyncMeta: meta("k2", 1), InstallationID: "i1"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", *owner)

	_, ok, err = r.ParentOwner(ctx, &entity.Component{SyncMeta: meta("k3", 1), InstallationID: "ghost"})
	require.NoError(t, err)
	assert.False(t, ok)

	owner, ok, err = r.ParentOwner(ctx, &entity.ComponentTemplate{SyncMeta: meta("t1", 1)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, owner)

	owner, ok, err = r.ParentOwner(ctx, &entity.Client{SyncMeta: meta("c9", 1)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c9", *owner)
}

func TestDescendants_ChildFirst(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seedTree(t, r)

	refs, err := r.Descendants(ctx, entity.TableSites, "s1")
	require.NoError(t, err)
	assert.Equal(t, []Ref{
		{entity.TableComponents, "k1"},
		{entity.TableInstallations, "i1"},
		{entity.TableValues, "v1"},
		{entity.TableSessions, "m1"},
		{entity.TableSites, "s1"},
	}, refs)

	for _, ref := range refs {
		ok, err := r.DeleteByID(ctx, ref.Table, ref.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := r.DeleteByID(ctx, entity.TableSites, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := r.SelectUpdated(ctx, entity.TableComponents, 0, admin)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPostgresRepository_UsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	r := NewPostgresRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sites a WHERE a.server_version > $1 AND a.deleted_at_epoch IS NULL AND a.client_id = $2 ORDER BY")).
		WithArgs(int64(5), "c1").
		WillReturnError(errors.New("db down"))

	_, err = r.SelectUpdated(context.Background(), entity.TableSites, 5, client1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpsertStale(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	r := NewPostgresRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sync_versions SET value = value + 1 WHERE id = 1 RETURNING value")).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(7)))
	mock.ExpectExec(`(?s)^INSERT INTO client_groups \(id, .*\) VALUES \(\$1, .*\$12\).*ON CONFLICT \(id\) DO UPDATE SET .*WHERE client_groups\.updated_at_epoch <= excluded\.updated_at_epoch$`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := r.Upsert(context.Background(), &entity.ClientGroup{SyncMeta: meta("g1", 1)})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ServerVersionIgnoresClientValue(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	c := &entity.Client{SyncMeta: meta("c1", 100)}
	c.ServerVersion = 999
	seed(t, r, c)
	assert.Equal(t, int64(1), c.ServerVersion)

	got, err := r.GetByID(ctx, entity.TableClients, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Meta().ServerVersion)
}

func TestTouchIconPack_ReversionsPackAndIcons(t *testing.T) {
	r := NewRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r,
		&entity.IconPack{SyncMeta: meta("p1", 1), Name: "P1"},
		&entity.IconPack{SyncMeta: meta("p2", 1), Name: "P2"},
		&entity.Icon{SyncMeta: meta("ic1", 1), PackID: "p1", IsActive: true},
		&entity.Icon{SyncMeta: meta("ic2", 1), PackID: "p2", IsActive: true},
	)

	require.NoError(t, r.TouchIconPack(ctx, "p1"))

	packs, err := r.SelectUpdated(ctx, entity.TableIconPacks, 4, admin)
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, ids(packs))
	assert.Equal(t, int64(5), packs[0].Meta().ServerVersion)
	assert.Equal(t, int64(1), packs[0].Meta().UpdatedAtEpoch)

	icons, err := r.SelectUpdated(ctx, entity.TableIcons, 4, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"ic1"}, ids(icons))
}

func TestPostgresRepository_TouchIconPackError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	r := NewPostgresRepository(db)

	mock.ExpectQuery("UPDATE sync_versions").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE icon_packs SET server_version = $1 WHERE id = $2")).
		WithArgs(int64(3), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE icons SET server_version = $1 WHERE pack_id = $2")).
		WithArgs(int64(3), "p1").
		WillReturnError(errors.New("db down"))

	err = r.TouchIconPack(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}
