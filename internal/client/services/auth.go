// Package services contains application services for the field client.
// This file defines the session service: token login, offline restore of the
// last session, liveness probe, and housekeeping of local auth metadata.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

const (
	metaToken   = "token"
	metaSession = "session"
	cursorKeys  = "cursor:"
)

// AuthService defines session operations for the CLI.
//
// Contract:
//   - Login: validate a token against the server and persist it for offline use.
//   - Restore: reload the last stored session without contacting the server.
//   - Logout: forget the stored token and session.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
//   - ClearOfflineData: wipe locally cached auth metadata.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, token string) (*entity.Session, error)
	Restore(ctx context.Context) (*entity.Session, error)
	Logout(ctx context.Context) error
	Current() *entity.Session
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

// authService is the concrete AuthService backed by a remote Client
// and the local metadata table.
type authService struct {
	client client.Client
	db     *sql.DB

	mu      sync.RWMutex
	current *entity.Session
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
func NewAuthService(client client.Client, db *sql.DB) AuthService {
	return &authService{client: client, db: db}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

func (a *authService) setCurrent(s *entity.Session) {
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()
}

// Current returns the active session or nil.
func (a *authService) Current() *entity.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Login asks the server who the token belongs to and stores both. Switching
// to a different user purges the local store, unsynced edits of the previous
// user included, and pins every pull cursor at 0 so the new user starts from
// a full pull.
func (a *authService) Login(ctx context.Context, token string) (*entity.Session, error) {
	a.client.SetToken(token)

	session, err := a.client.Session(ctx)
	if err != nil {
		a.client.SetToken("")
		return nil, fmt.Errorf("login error: %w", err)
	}

	previous, err := a.storedSession(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.saveOfflineData(ctx, token, session, previous != nil && previous.UserID != session.UserID); err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}

	a.setCurrent(session)
	return session, nil
}

// saveOfflineData persists the token and session in a single transaction,
// purging the local store first when purge is set.
func (a *authService) saveOfflineData(ctx context.Context, token string, s *entity.Session, purge bool) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if purge {
			if err := purgeLocal(ctx, client.NewRepositories(tx)); err != nil {
				return err
			}
		}
		if err := repo.Set(ctx, metaToken, []byte(token)); err != nil {
			return err
		}
		return repo.Set(ctx, metaSession, body)
	})
}

// purgeLocal empties every synced table, the pending tombstones and the icon
// download status, and writes a 0 cursor for every table.
func purgeLocal(ctx context.Context, repos *client.Repositories) error {
	for _, t := range slices.Backward(entity.PullOrder) {
		if _, err := repos.Records.DeleteAll(ctx, t); err != nil {
			return err
		}
	}
	if err := repos.Tombstones.Clear(ctx); err != nil {
		return err
	}
	if err := repos.IconStatus.Clear(ctx); err != nil {
		return err
	}
	if err := repos.Metadata.DeletePrefix(ctx, cursorKeys); err != nil {
		return err
	}
	for _, t := range append(slices.Clone(entity.PullOrder), entity.TableDeleted) {
		if err := repos.Metadata.SetInt64(ctx, cursorKeys+string(t), 0); err != nil {
			return err
		}
	}
	return nil
}

func (a *authService) storedSession(ctx context.Context) (*entity.Session, error) {
	body, err := a.getMetadataRepo().Get(ctx, metaSession)
	if err != nil || body == nil {
		return nil, err
	}
	var s entity.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("stored session is corrupt: %w", err)
	}
	return &s, nil
}

// Restore loads the stored token and session. It returns
// client.ErrLocalDataNotAvailable when nobody has logged in on this device.
func (a *authService) Restore(ctx context.Context) (*entity.Session, error) {
	token, err := a.getMetadataRepo().Get(ctx, metaToken)
	if err != nil {
		return nil, err
	}
	session, err := a.storedSession(ctx)
	if err != nil {
		return nil, err
	}
	if token == nil || session == nil {
		return nil, client.ErrLocalDataNotAvailable
	}

	a.client.SetToken(string(token))
	a.setCurrent(session)
	return session, nil
}

// Logout forgets the token. The session is kept so that the next login can
// tell whether the user changed.
func (a *authService) Logout(ctx context.Context) error {
	a.client.SetToken("")
	a.setCurrent(nil)
	return a.getMetadataRepo().Delete(ctx, metaToken)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

// ClearOfflineData wipes locally cached auth metadata and cursors.
func (a *authService) ClearOfflineData(ctx context.Context) error {
	a.setCurrent(nil)
	return a.getMetadataRepo().Clear(ctx)
}
