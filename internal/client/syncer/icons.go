package syncer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/iconstatus"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
)

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/svg+xml":
		return ".svg"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}

// IconPath returns where the binary of an icon is cached.
func IconPath(dir, packID, iconID, mime string) string {
	return filepath.Join(dir, packID, iconID+extensionFor(mime))
}

// SyncIcons downloads the binaries of every locally visible icon pack whose
// current version is not cached yet. Download failures are recorded in the
// pack status and retried next cycle. A pack the server no longer lets this
// device see is dropped locally together with its icons and cache. Other
// errors talking to the sync server abort the step.
func (e *Engine) SyncIcons(ctx context.Context) (Result, error) {
	res := Result{Step: Step{Phase: PhaseAssets}}
	if !e.AssetsEnabled() {
		return res, nil
	}
	log := e.logger.With("step", res.Step.String())

	packs, err := e.repos.Records.List(ctx, entity.TableIconPacks, false)
	if err != nil {
		return res, err
	}

	for _, rec := range packs {
		pack := rec.(*entity.IconPack)
		status, err := e.repos.IconStatus.Get(ctx, pack.ID)
		if err != nil {
			return res, err
		}
		if status.UpToDate(pack.UpdatedAtEpoch) {
			continue
		}

		assets, err := e.api.IconAssets(ctx, pack.ID)
		if packRevoked(err) {
			log.Warn(ctx, "icon pack no longer available; dropping it", "pack", pack.ID, "error", err)
			if err := e.dropPack(ctx, pack.ID); err != nil {
				return res, err
			}
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Received += len(assets)

		dir, err := filex.EnsureDir(e.iconDir, pack.ID)
		if err != nil {
			return res, err
		}

		st := iconstatus.Status{PackID: pack.ID, PackUpdatedAtEpoch: pack.UpdatedAtEpoch, TotalIcons: len(assets)}
		for _, a := range assets {
			path := filepath.Join(dir, a.IconID+extensionFor(a.MimeType))
			if filex.Exists(path) {
				st.DownloadedIcons++
				continue
			}
			data, err := e.download(ctx, a.URL)
			if err == nil {
				err = filex.WriteFileAtomic(path, data)
			}
			if err != nil {
				log.Warn(ctx, "icon download failed", "pack", pack.ID, "icon", a.IconID, "error", err)
				st.LastError = err.Error()
				res.Failed++
				continue
			}
			st.DownloadedIcons++
			res.Applied++
		}
		st.Completed = st.DownloadedIcons == st.TotalIcons
		st.SyncedAtEpoch = e.now().UnixMilli()

		if err := e.repos.IconStatus.Save(ctx, st); err != nil {
			return res, err
		}
	}

	if res.Received > 0 {
		log.Info(ctx, "icon assets synced", "listed", res.Received, "downloaded", res.Applied, "failed", res.Failed)
	}
	return res, nil
}

func packRevoked(err error) bool {
	var se *client.StatusError
	return errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusForbidden)
}

// dropPack removes a pack, its icons, its download status and its cached
// binaries.
func (e *Engine) dropPack(ctx context.Context, packID string) error {
	if _, err := e.repos.Records.DeleteByID(ctx, entity.TableIconPacks, packID); err != nil {
		return err
	}
	if err := e.repos.IconStatus.Delete(ctx, packID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(e.iconDir, packID))
}
