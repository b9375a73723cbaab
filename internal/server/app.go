// Package server wires the sync server together: PostgreSQL storage and
// migrations, the optional Redis URL cache, services, the HTTP API and
// graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/cache"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/httpapi"
	"github.com/dmitrijs2005/fieldsync/internal/server/metrics"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
)

// iconURLKeyPrefix namespaces presigned URLs in a shared Redis.
const iconURLKeyPrefix = "fieldsync:icon-url:"

type App struct {
	config *config.Config
	zap    *zap.Logger
	logger logging.Logger
	db     *sql.DB
	server *httpapi.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	zl, err := logging.NewZap(c.LogLevel, "json", "fieldsync-server")
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	logger := logging.NewZapLogger(zl)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	var kv cache.KV = cache.Noop{}
	if c.RedisAddr != "" {
		kv = cache.NewRedisKV(cache.NewRedisClient(c.RedisAddr, "", 0), iconURLKeyPrefix)
		logger.Info(ctx, "icon url cache enabled", "redis", c.RedisAddr)
	}

	m := metrics.New()
	us := services.NewUserService(db, rm, c)
	ss := services.NewSyncService(db, rm, logger, m)
	is := services.NewIconService(db, rm, c, kv, logger)

	srv := httpapi.NewHTTPServer(c.HTTPAddr, logger, us, ss, is, m)

	return &App{config: c, zap: zl, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives or the HTTP server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
	_ = app.zap.Sync()
}
