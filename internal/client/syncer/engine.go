package syncer

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/netx"
)

// Engine executes individual sync steps against the local repositories and
// the server.
type Engine struct {
	repos  *client.Repositories
	api    client.Client
	logger logging.Logger

	// iconDir is where icon binaries are cached; empty disables assets.
	iconDir  string
	download func(ctx context.Context, url string) ([]byte, error)
	now      func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithIconCache enables icon binary downloads into dir using dl.
func WithIconCache(dir string, dl *resty.Client) EngineOption {
	return func(e *Engine) {
		e.iconDir = dir
		e.download = func(ctx context.Context, url string) ([]byte, error) {
			return netx.DownloadPresignedURL(ctx, dl, url)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repos *client.Repositories, api client.Client, logger logging.Logger, opts ...EngineOption) *Engine {
	e := &Engine{repos: repos, api: api, logger: logging.OrNop(logger), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AssetsEnabled reports whether the icon asset step is part of a cycle.
func (e *Engine) AssetsEnabled() bool { return e.iconDir != "" }

// Run executes a single step.
func (e *Engine) Run(ctx context.Context, step Step) (Result, error) {
	switch step.Phase {
	case PhasePush:
		return e.Push(ctx, step.Table)
	case PhasePull:
		return e.Pull(ctx, step.Table)
	}
	return e.SyncIcons(ctx)
}
