package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/iconstatus"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertMeta(t *testing.T, db *sql.DB, k string, v []byte) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO metadata(key,value) VALUES(?,?)`, k, v)
	require.NoError(t, err)
}

func getMeta(t *testing.T, db *sql.DB, k string) []byte {
	t.Helper()
	var v []byte
	err := db.QueryRow(`SELECT value FROM metadata WHERE key=?`, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	require.NoError(t, err)
	return v
}

// ---- fake client ----

// fakeClient implements client.Client for AuthService unit tests.
type fakeClient struct {
	CloseErr   error
	PingErr    error
	SessionRet *entity.Session
	SessionErr error

	Token string
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error                   { return f.CloseErr }
func (f *fakeClient) SetToken(token string)          { f.Token = token }
func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

func (f *fakeClient) Session(ctx context.Context) (*entity.Session, error) {
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	s := *f.SessionRet
	return &s, nil
}

func (f *fakeClient) Push(ctx context.Context, table entity.Table, rows []entity.Record) ([]entity.PushResult, error) {
	return nil, nil
}

func (f *fakeClient) PushDeleted(ctx context.Context, tombstones []entity.Tombstone) ([]entity.PushResult, error) {
	return nil, nil
}

func (f *fakeClient) Pull(ctx context.Context, table entity.Table, since int64) ([]json.RawMessage, error) {
	return nil, nil
}

func (f *fakeClient) PullDeleted(ctx context.Context, since int64) ([]entity.Tombstone, error) {
	return nil, nil
}

func (f *fakeClient) IconAssets(ctx context.Context, packID string) ([]entity.IconAsset, error) {
	return nil, nil
}

// ---- TESTS ----

func TestRestore_NoLocalData(t *testing.T) {
	db := setupDB(t)
	svc := NewAuthService(&fakeClient{}, db)

	_, err := svc.Restore(context.Background())
	require.ErrorIs(t, err, client.ErrLocalDataNotAvailable)
	require.Nil(t, svc.Current())
}

func TestLogin_SessionError_Wrapped(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{SessionErr: client.ErrUnauthorized}
	svc := NewAuthService(fc, db)

	_, err := svc.Login(context.Background(), "bad")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.True(t, strings.HasPrefix(err.Error(), "login error:"))
	require.Empty(t, fc.Token, "token must be dropped after a failed login")
	require.Nil(t, getMeta(t, db, metaToken))
}

func TestLogin_Success_PersistsTokenAndSession(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{SessionRet: &entity.Session{UserID: "u1", UserName: "anna", Role: entity.RoleEngineer}}
	svc := NewAuthService(fc, db)

	s, err := svc.Login(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "u1", s.UserID)
	require.Equal(t, "tok", fc.Token)
	require.Equal(t, []byte("tok"), getMeta(t, db, metaToken))
	require.Equal(t, "u1", svc.Current().UserID)

	var stored entity.Session
	require.NoError(t, json.Unmarshal(getMeta(t, db, metaSession), &stored))
	require.Equal(t, entity.RoleEngineer, stored.Role)
}

func TestLogin_SameUser_KeepsCursors(t *testing.T) {
	db := setupDB(t)
	prev, _ := json.Marshal(entity.Session{UserID: "u1"})
	insertMeta(t, db, metaSession, prev)
	insertMeta(t, db, "cursor:sites", []byte("100"))

	fc := &fakeClient{SessionRet: &entity.Session{UserID: "u1", Role: entity.RoleAdmin}}
	_, err := NewAuthService(fc, db).Login(context.Background(), "tok")
	require.NoError(t, err)
	require.NotNil(t, getMeta(t, db, "cursor:sites"))
}

func TestLogin_DifferentUser_PurgesLocalStore(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	prev, _ := json.Marshal(entity.Session{UserID: "u1"})
	insertMeta(t, db, metaSession, prev)
	insertMeta(t, db, "other", []byte("x"))

	repos := client.NewRepositories(db)
	require.NoError(t, repos.Metadata.SetInt64(ctx, "cursor:sites", 100))
	c := &entity.Client{SyncMeta: entity.SyncMeta{ID: "c1", UpdatedAtEpoch: 10, ServerVersion: 4}}
	_, err := repos.Records.ApplyRemote(ctx, c)
	require.NoError(t, err)
	dirty := &entity.Site{SyncMeta: entity.SyncMeta{ID: "s1", UpdatedAtEpoch: 20}, ClientID: "c1"}
	dirty.DirtyFlag = true
	require.NoError(t, repos.Records.CreateOrUpdate(ctx, dirty))
	require.NoError(t, repos.Tombstones.Create(ctx, entity.DeletedRecord{EntityTableName: "sites", RecordID: "s9", DeletedAtEpoch: 5}))
	require.NoError(t, repos.IconStatus.Save(ctx, iconstatus.Status{PackID: "p1", Completed: true}))

	fc := &fakeClient{SessionRet: &entity.Session{UserID: "u2", Role: entity.RoleClient, ClientID: "c2"}}
	_, err = NewAuthService(fc, db).Login(ctx, "tok")
	require.NoError(t, err)

	for _, table := range append(slices.Clone(entity.PullOrder), entity.TableDeleted) {
		v, ok, err := repos.Metadata.GetInt64(ctx, "cursor:"+string(table))
		require.NoError(t, err)
		require.True(t, ok, table)
		require.Zero(t, v, table)
	}
	for _, table := range []entity.Table{entity.TableClients, entity.TableSites} {
		list, err := repos.Records.List(ctx, table, true)
		require.NoError(t, err)
		require.Empty(t, list, table)
	}
	pending, err := repos.Tombstones.GetAllPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
	st, err := repos.IconStatus.Get(ctx, "p1")
	require.NoError(t, err)
	require.Nil(t, st)
	require.Equal(t, []byte("x"), getMeta(t, db, "other"))
}

func TestLogin_SameUser_KeepsLocalRows(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	prev, _ := json.Marshal(entity.Session{UserID: "u1"})
	insertMeta(t, db, metaSession, prev)

	repos := client.NewRepositories(db)
	_, err := repos.Records.ApplyRemote(ctx, &entity.Client{SyncMeta: entity.SyncMeta{ID: "c1", UpdatedAtEpoch: 10}})
	require.NoError(t, err)

	fc := &fakeClient{SessionRet: &entity.Session{UserID: "u1", Role: entity.RoleAdmin}}
	_, err = NewAuthService(fc, db).Login(ctx, "tok")
	require.NoError(t, err)

	_, err = repos.Records.GetByID(ctx, entity.TableClients, "c1")
	require.NoError(t, err)
}

func TestRestore_Success(t *testing.T) {
	db := setupDB(t)
	body, _ := json.Marshal(entity.Session{UserID: "u1", Role: entity.RoleClient, ClientID: "c1"})
	insertMeta(t, db, metaToken, []byte("tok"))
	insertMeta(t, db, metaSession, body)

	fc := &fakeClient{}
	svc := NewAuthService(fc, db)

	s, err := svc.Restore(context.Background())
	require.NoError(t, err)
	require.Equal(t, "c1", s.ClientID)
	require.Equal(t, "tok", fc.Token)
	require.True(t, svc.Current().IsClient())
}

func TestRestore_CorruptSession(t *testing.T) {
	db := setupDB(t)
	insertMeta(t, db, metaToken, []byte("tok"))
	insertMeta(t, db, metaSession, []byte("{"))

	_, err := NewAuthService(&fakeClient{}, db).Restore(context.Background())
	require.Error(t, err)
}

func TestLogout_DropsTokenKeepsSession(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{SessionRet: &entity.Session{UserID: "u1", Role: entity.RoleEngineer}}
	svc := NewAuthService(fc, db)
	_, err := svc.Login(context.Background(), "tok")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background()))
	require.Nil(t, svc.Current())
	require.Empty(t, fc.Token)
	require.Nil(t, getMeta(t, db, metaToken))
	require.NotNil(t, getMeta(t, db, metaSession))
}

func TestPing_Proxy(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{PingErr: client.ErrUnavailable}
	err := NewAuthService(fc, db).Ping(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
}

func TestClose_Proxy(t *testing.T) {
	db := setupDB(t)
	want := errors.New("close failed")
	err := NewAuthService(&fakeClient{CloseErr: want}, db).Close(context.Background())
	require.ErrorIs(t, err, want)
}

func TestClearOfflineData(t *testing.T) {
	db := setupDB(t)
	insertMeta(t, db, metaToken, []byte("tok"))
	insertMeta(t, db, "cursor:clients", []byte("1"))

	require.NoError(t, NewAuthService(&fakeClient{}, db).ClearOfflineData(context.Background()))
	require.Nil(t, getMeta(t, db, metaToken))
	require.Nil(t, getMeta(t, db, "cursor:clients"))
}
