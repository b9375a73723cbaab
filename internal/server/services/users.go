// Package services contains server-side business logic: the sync service
// (push, pull, tombstones), icon asset presigning and user provisioning with
// bearer-token authentication.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
)

// UserService provisions accounts and turns bearer tokens into sessions.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	now                         func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		now:                         time.Now,
	}
}

// Create adds a user. CLIENT users must name an existing client; other roles
// must not name one.
func (s *UserService) Create(ctx context.Context, name string, role entity.Role, clientID string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("user name is required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	user := &models.User{
		ID:             uuid.NewString(),
		Name:           name,
		Role:           role,
		CreatedAtEpoch: s.now().UnixMilli(),
	}

	switch {
	case role == entity.RoleClient && clientID == "":
		return nil, errors.New("CLIENT users need a client id")
	case role != entity.RoleClient && clientID != "":
		return nil, fmt.Errorf("%s users are not bound to a client", role)
	case role == entity.RoleClient:
		if _, err := s.repomanager.Records(s.db).GetByID(ctx, entity.TableClients, clientID); err != nil {
			return nil, fmt.Errorf("client %s: %w", clientID, err)
		}
		user.ClientID = &clientID
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// IssueToken mints a bearer token for an existing user.
func (s *UserService) IssueToken(ctx context.Context, userID string) (string, error) {
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		return "", fmt.Errorf("user %s: %w", userID, err)
	}
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

// Authenticate resolves a bearer token to the session of its user. Every
// failure wraps common.ErrorUnauthorized except storage errors.
func (s *UserService) Authenticate(ctx context.Context, token string) (entity.Session, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return entity.Session{}, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return entity.Session{}, fmt.Errorf("%w: unknown user", common.ErrorUnauthorized)
		}
		return entity.Session{}, err
	}
	if user.Role == entity.RoleClient && user.ClientID == nil {
		return entity.Session{}, fmt.Errorf("%w: client binding missing", common.ErrorUnauthorized)
	}
	return user.Session(), nil
}
