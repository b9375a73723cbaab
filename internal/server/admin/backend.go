package admin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
)

// ServiceBackend runs the commands through the same services the server uses.
type ServiceBackend struct {
	db    *sql.DB
	rm    repomanager.RepositoryManager
	zap   *zap.Logger
	users *services.UserService
	sync  *services.SyncService
}

// OpenPostgres connects to cfg.DatabaseDSN.
func OpenPostgres(ctx context.Context, cfg *config.Config) (Backend, error) {
	zl, err := logging.NewZap(cfg.LogLevel, "console", "fieldsync-admin")
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return NewServiceBackend(db, repomanager.NewPostgresRepositoryManager(), cfg, zl), nil
}

func NewServiceBackend(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, zl *zap.Logger) *ServiceBackend {
	logger := logging.NewZapLogger(zl)
	return &ServiceBackend{
		db:    db,
		rm:    rm,
		zap:   zl,
		users: services.NewUserService(db, rm, cfg),
		sync:  services.NewSyncService(db, rm, logger, nil),
	}
}

func (b *ServiceBackend) Migrate(ctx context.Context) error {
	return b.rm.RunMigrations(ctx, b.db)
}

func (b *ServiceBackend) CreateUser(ctx context.Context, name string, role entity.Role, clientID string) (*models.User, error) {
	return b.users.Create(ctx, name, role, clientID)
}

func (b *ServiceBackend) ListUsers(ctx context.Context) ([]*models.User, error) {
	return b.users.List(ctx)
}

func (b *ServiceBackend) IssueToken(ctx context.Context, userID string) (string, error) {
	return b.users.IssueToken(ctx, userID)
}

func (b *ServiceBackend) PurgeTombstones(ctx context.Context, olderThan time.Duration) (int64, error) {
	return b.sync.PurgeTombstones(ctx, olderThan)
}

func (b *ServiceBackend) Close() error {
	_ = b.zap.Sync()
	return b.db.Close()
}
