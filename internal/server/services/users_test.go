package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/fieldsync/internal/server/repositories/users"
)

// --- fakes ---

type fakeUsersRepo struct {
	byID      map[string]*models.User
	created   []*models.User
	createErr error
	getErr    error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, u)
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) List(context.Context) ([]*models.User, error) {
	return f.created, nil
}

type fakeClientRecords struct {
	records.Repository
	clients map[string]bool
}

func (f *fakeClientRecords) GetByID(_ context.Context, table entity.Table, id string) (entity.Record, error) {
	if table == entity.TableClients && f.clients[id] {
		return &entity.Client{SyncMeta: entity.SyncMeta{ID: id}}, nil
	}
	return nil, common.ErrorNotFound
}

type fakeRepoMgr struct {
	repomanager.RepositoryManager
	users   *fakeUsersRepo
	records *fakeClientRecords
}

func (m *fakeRepoMgr) Users(dbx.DBTX) usersrepo.Repository          { return m.users }
func (m *fakeRepoMgr) Records(dbx.DBTX) records.Repository          { return m.records }
func (m *fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }

func newUserService(t *testing.T) (*UserService, *fakeRepoMgr) {
	t.Helper()
	rm := &fakeRepoMgr{
		users:   &fakeUsersRepo{byID: map[string]*models.User{}},
		records: &fakeClientRecords{clients: map[string]bool{"c1": true}},
	}
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}
	svc := NewUserService(nil, rm, cfg)
	svc.now = func() time.Time { return time.UnixMilli(1234) }
	return svc, rm
}

func TestUserService_Create(t *testing.T) {
	svc, rm := newUserService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, "  tech  ", entity.RoleEngineer, "")
	require.NoError(t, err)
	assert.Equal(t, "tech", u.Name)
	assert.NotEmpty(t, u.ID)
	assert.Nil(t, u.ClientID)
	assert.Equal(t, int64(1234), u.CreatedAtEpoch)

	u, err = svc.Create(ctx, "customer", entity.RoleClient, "c1")
	require.NoError(t, err)
	require.NotNil(t, u.ClientID)
	assert.Equal(t, "c1", *u.ClientID)
	assert.Len(t, rm.users.created, 2)
}

func TestUserService_CreateValidation(t *testing.T) {
	svc, rm := newUserService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		role     entity.Role
		clientID string
	}{
		{"empty name", " ", entity.RoleAdmin, ""},
		{"unknown role", "x", "ROOT", ""},
		{"client without id", "x", entity.RoleClient, ""},
		{"engineer with client", "x", entity.RoleEngineer, "c1"},
		{"unknown client", "x", entity.RoleClient, "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.userName, tt.role, tt.clientID)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, rm.users.created)

	rm.users.createErr = errors.New("db down")
	_, err := svc.Create(ctx, "x", entity.RoleAdmin, "")
	assert.ErrorContains(t, err, "db down")
}

func TestUserService_IssueTokenAndAuthenticate(t *testing.T) {
	svc, rm := newUserService(t)
	ctx := context.Background()
	client := "c1"
	rm.users.byID["u-1"] = &models.User{ID: "u-1", Name: "customer", Role: entity.RoleClient, ClientID: &client}

	token, err := svc.IssueToken(ctx, "u-1")
	require.NoError(t, err)

	sess, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, entity.Session{UserID: "u-1", UserName: "customer", Role: entity.RoleClient, ClientID: "c1"}, sess)

	_, err = svc.IssueToken(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserService_AuthenticateFailures(t *testing.T) {
	svc, rm := newUserService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	expired, err := auth.GenerateToken("u-1", []byte("k"), -time.Minute)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	foreign, err := auth.GenerateToken("u-1", []byte("other"), time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, foreign)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	unknown, err := auth.GenerateToken("u-gone", []byte("k"), time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, unknown)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	rm.users.byID["u-unbound"] = &models.User{ID: "u-unbound", Role: entity.RoleClient}
	unbound, err := auth.GenerateToken("u-unbound", []byte("k"), time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, unbound)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	rm.users.getErr = errors.New("db down")
	_, err = svc.Authenticate(ctx, unknown)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
}
