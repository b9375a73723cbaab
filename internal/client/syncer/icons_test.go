package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/iconstatus"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

func seedPack(t *testing.T, repos *client.Repositories, id string, updated int64) {
	t.Helper()
	p := &entity.IconPack{Name: "Pack " + id, IsVisibleInClient: true}
	p.ID = id
	p.UpdatedAtEpoch = updated
	_, err := repos.Records.ApplyRemote(context.Background(), p)
	require.NoError(t, err)
}

func TestSyncIcons_DownloadsAndRecordsStatus(t *testing.T) {
	repos := setupRepos(t)
	api := newFakeAPI()
	api.assets["p1"] = []entity.IconAsset{
		{IconID: "i1", MimeType: "image/png", URL: "u1"},
		{IconID: "i2", MimeType: "image/svg+xml", URL: "u2"},
		{IconID: "i3", MimeType: "image/png", URL: "broken"},
	}
	seedPack(t, repos, "p1", 10)

	dir := t.TempDir()
	downloads := 0
	e := NewEngine(repos, api, discardLogger())
	e.iconDir = dir
	e.download = func(ctx context.Context, url string) ([]byte, error) {
		downloads++
		if url == "broken" {
			return nil, errors.New("403")
		}
		return []byte(url), nil
	}
	ctx := context.Background()

	res, err := e.SyncIcons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 1, res.Failed)

	b, err := os.ReadFile(filepath.Join(dir, "p1", "i2.svg"))
	require.NoError(t, err)
	assert.Equal(t, "u2", string(b))

	st, err := repos.IconStatus.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, st.Completed)
	assert.Equal(t, 2, st.DownloadedIcons)
	assert.Equal(t, "403", st.LastError)

	delete(api.assets, "p1")
	api.assets["p1"] = []entity.IconAsset{
		{IconID: "i1", MimeType: "image/png", URL: "u1"},
		{IconID: "i2", MimeType: "image/svg+xml", URL: "u2"},
		{IconID: "i3", MimeType: "image/png", URL: "u3"},
	}
	downloads = 0
	_, err = e.SyncIcons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, downloads, "cached icons are not downloaded again")

	st, err = repos.IconStatus.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, st.UpToDate(10))

	downloads = 0
	_, err = e.SyncIcons(ctx)
	require.NoError(t, err)
	assert.Zero(t, downloads)
}

func TestSyncIcons_DisabledWithoutCacheDir(t *testing.T) {
	repos := setupRepos(t)
	api := newFakeAPI()
	api.assetErr = client.ErrUnavailable
	seedPack(t, repos, "p1", 10)

	e := NewEngine(repos, api, discardLogger())
	assert.False(t, e.AssetsEnabled())
	_, err := e.SyncIcons(context.Background())
	require.NoError(t, err)
}

func TestSyncIcons_TransportErrorAborts(t *testing.T) {
	repos := setupRepos(t)
	api := newFakeAPI()
	api.assetErr = client.ErrUnavailable
	seedPack(t, repos, "p1", 10)

	e := NewEngine(repos, api, discardLogger())
	e.iconDir = t.TempDir()
	_, err := e.SyncIcons(context.Background())
	assert.ErrorIs(t, err, client.ErrUnavailable)
}

func TestSyncIcons_RevokedPackIsDroppedAndOthersContinue(t *testing.T) {
	for _, code := range []int{404, 403} {
		repos := setupRepos(t)
		api := newFakeAPI()
		api.packErrs = map[string]error{"p1": &client.StatusError{Code: code, Body: "gone"}}
		api.assets["p2"] = []entity.IconAsset{{IconID: "i1", MimeType: "image/png", URL: "u1"}}
		seedPack(t, repos, "p1", 10)
		seedPack(t, repos, "p2", 10)
		icon := &entity.Icon{PackID: "p1", IsActive: true}
		icon.ID = "ic1"
		_, err := repos.Records.ApplyRemote(context.Background(), icon)
		require.NoError(t, err)

		dir := t.TempDir()
		stale := filepath.Join(dir, "p1", "ic1.png")
		require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
		require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

		e := NewEngine(repos, api, discardLogger())
		e.iconDir = dir
		e.download = func(ctx context.Context, url string) ([]byte, error) { return []byte(url), nil }
		ctx := context.Background()
		require.NoError(t, repos.IconStatus.Save(ctx, iconstatus.Status{PackID: "p1", PackUpdatedAtEpoch: 9}))

		res, err := e.SyncIcons(ctx)
		require.NoError(t, err, "http %d", code)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, res.Applied)

		_, err = repos.Records.GetByID(ctx, entity.TableIconPacks, "p1")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		_, err = repos.Records.GetByID(ctx, entity.TableIcons, "ic1")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		st, err := repos.IconStatus.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Nil(t, st)
		assert.NoFileExists(t, stale)

		st, err = repos.IconStatus.Get(ctx, "p2")
		require.NoError(t, err)
		assert.True(t, st.UpToDate(10))
	}
}

func TestSyncIcons_ExpiredSessionAborts(t *testing.T) {
	repos := setupRepos(t)
	api := newFakeAPI()
	api.packErrs = map[string]error{"p1": &client.StatusError{Code: 401}}
	seedPack(t, repos, "p1", 10)

	e := NewEngine(repos, api, discardLogger())
	e.iconDir = t.TempDir()
	_, err := e.SyncIcons(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	_, err = repos.Records.GetByID(context.Background(), entity.TableIconPacks, "p1")
	require.NoError(t, err)
}

func TestIconPath(t *testing.T) {
	assert.Equal(t, filepath.Join("cache", "p1", "i1.png"), IconPath("cache", "p1", "i1", "image/png"))
	assert.Equal(t, filepath.Join("cache", "p1", "i1.bin"), IconPath("cache", "p1", "i1", "application/x-unknown"))
}
