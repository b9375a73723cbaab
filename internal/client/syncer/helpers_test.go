package syncer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

func discardLogger() logging.Logger {
	return logging.Nop{}
}

func setupRepos(t *testing.T) *client.Repositories {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return client.NewRepositories(db)
}

// fakeAPI is an in-memory stand-in for the sync server.
type fakeAPI struct {
	mu sync.Mutex

	pushed     map[entity.Table][]entity.Record
	pushStatus func(table entity.Table, r entity.Record) entity.PushResult
	onPush     func(table entity.Table)
	pushErr    error

	pushedTombs []entity.Tombstone
	tombStatus  entity.PushStatus

	rows     map[entity.Table][]json.RawMessage
	sinces   map[entity.Table]int64
	onPull   func(table entity.Table)
	pullErr  error
	tombs    []entity.Tombstone
	assets   map[string][]entity.IconAsset
	assetErr error
	packErrs map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pushed: map[entity.Table][]entity.Record{},
		rows:   map[entity.Table][]json.RawMessage{},
		sinces: map[entity.Table]int64{},
		assets: map[string][]entity.IconAsset{},
	}
}

var _ client.Client = (*fakeAPI)(nil)

func (f *fakeAPI) Close() error                 { return nil }
func (f *fakeAPI) SetToken(string)              {}
func (f *fakeAPI) Ping(ctx context.Context) error { return nil }

func (f *fakeAPI) Session(ctx context.Context) (*entity.Session, error) {
	return &entity.Session{UserID: "u1", Role: entity.RoleEngineer}, nil
}

func (f *fakeAPI) Push(ctx context.Context, table entity.Table, rows []entity.Record) ([]entity.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushed[table] = append(f.pushed[table], rows...)
	if f.onPush != nil {
		f.onPush(table)
	}
	out := make([]entity.PushResult, 0, len(rows))
	for _, r := range rows {
		if f.pushStatus != nil {
			out = append(out, f.pushStatus(table, r))
			continue
		}
		out = append(out, entity.PushResult{ID: r.Meta().ID, Status: entity.PushOK})
	}
	return out, nil
}

func (f *fakeAPI) PushDeleted(ctx context.Context, ts []entity.Tombstone) ([]entity.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushedTombs = append(f.pushedTombs, ts...)
	status := f.tombStatus
	if status == "" {
		status = entity.PushOK
	}
	out := make([]entity.PushResult, len(ts))
	for i, t := range ts {
		out[i] = entity.PushResult{ID: t.RecordID, Status: status}
	}
	return out, nil
}

func (f *fakeAPI) Pull(ctx context.Context, table entity.Table, since int64) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces[table] = since
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.onPull != nil {
		f.onPull(table)
	}
	return f.rows[table], nil
}

func (f *fakeAPI) PullDeleted(ctx context.Context, since int64) ([]entity.Tombstone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces[entity.TableDeleted] = since
	var out []entity.Tombstone
	for _, t := range f.tombs {
		if t.ServerVersion > since {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeAPI) IconAssets(ctx context.Context, packID string) ([]entity.IconAsset, error) {
	if f.assetErr != nil {
		return nil, f.assetErr
	}
	if err := f.packErrs[packID]; err != nil {
		return nil, err
	}
	return f.assets[packID], nil
}

func (f *fakeAPI) serve(table entity.Table, rows ...string) {
	for _, r := range rows {
		f.rows[table] = append(f.rows[table], json.RawMessage(r))
	}
}

func seedClient(t *testing.T, repos *client.Repositories, id string, updated int64, dirty bool) *entity.Client {
	t.Helper()
	c := &entity.Client{Name: "Client " + id}
	c.ID = id
	c.CreatedAtEpoch = updated
	c.UpdatedAtEpoch = updated
	if dirty {
		c.Touch(updated)
	}
	require.NoError(t, repos.Records.CreateOrUpdate(context.Background(), c))
	return c
}

func seedSite(t *testing.T, repos *client.Repositories, id, clientID string, updated int64, dirty bool) *entity.Site {
	t.Helper()
	s := &entity.Site{ClientID: clientID, Name: "Site " + id}
	s.ID = id
	s.CreatedAtEpoch = updated
	s.UpdatedAtEpoch = updated
	if dirty {
		s.Touch(updated)
	}
	require.NoError(t, repos.Records.CreateOrUpdate(context.Background(), s))
	return s
}
