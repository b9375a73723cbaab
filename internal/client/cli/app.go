package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/iconstatus"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/client/syncer"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/netx"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// syncRunner is the part of the orchestrator the CLI drives.
type syncRunner interface {
	Run(ctx context.Context, mode syncer.Mode, hooks syncer.Hooks) (*syncer.Report, error)
	State() syncer.State
}

type App struct {
	config      *config.Config
	authService services.AuthService
	records     services.RecordService
	sync        syncRunner
	icons       iconstatus.Repository
	logger      logging.Logger

	mu      sync.RWMutex
	Mode    Mode
	session *entity.Session
	// forcedOffline is set by the user and keeps the watcher from going
	// back online on its own.
	forcedOffline atomic.Bool
	unauthorized  atomic.Bool

	lastReport atomic.Pointer[syncer.Report]

	reader  *bufio.Reader
	out     io.Writer
	closers []io.Closer
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logger, logCloser := logging.NewFileSlogLogger(logging.FileOptions{Path: c.LogFile, Level: c.LogLevel})

	db, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	a := &App{
		config:  c,
		logger:  logger.With("module", "cli"),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		closers: []io.Closer{db, logCloser},
	}

	api := client.NewHTTPClient(c.ServerURL, client.HTTPOptions{
		Timeout:        c.HTTPTimeout,
		RetryCount:     c.RetryCount,
		RetryWait:      c.RetryWait,
		OnUnauthorized: func() { a.unauthorized.Store(true) },
	})

	repos := client.NewRepositories(db)
	engine := syncer.NewEngine(repos, api, logger.With("module", "syncer"),
		syncer.WithIconCache(c.IconDir, netx.NewDownloader(c.HTTPTimeout, c.RetryCount)))

	a.authService = services.NewAuthService(api, db)
	a.records = services.NewRecordService(db, a.authService, engine)
	a.sync = syncer.NewOrchestrator(engine, syncer.Steps(engine.AssetsEnabled()), c.SyncTimeout, logger.With("module", "orchestrator"))
	a.icons = repos.IconStatus

	return a, nil
}

func (a *App) getMode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()
	if changed {
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

func (a *App) currentSession() *entity.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

func (a *App) setSession(s *entity.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *App) Run(ctx context.Context) {
	defer a.close(ctx)
	a.Root(ctx)
}

func (a *App) close(ctx context.Context) {
	_ = a.authService.Close(ctx)
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func (a *App) isLoggedIn() bool {
	return a.currentSession() != nil
}

// StartOnlineStatusWatcher probes the server every interval and flips the
// connectivity mode. Coming back online triggers a background sync.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	if a.forcedOffline.Load() || !a.isLoggedIn() {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.authService.Ping(pingCtx)
	cancel()

	if err != nil {
		if a.getMode() == ModeOnline {
			a.setMode(ModeOffline)
		}
		return
	}
	if a.getMode() != ModeOnline {
		a.setMode(ModeOnline)
		go a.backgroundSync(ctx)
	}
}
