package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/cache"
	sc "github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/scope"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// IconService hands out download URLs for icon binaries kept in an
// S3-compatible bucket. URLs are cached for half their lifetime so that a
// cached URL is never close to expiry when served.
type IconService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	cache       cache.KV
	logger      logging.Logger
}

func NewIconService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config, kv cache.KV, logger logging.Logger) *IconService {
	if kv == nil {
		kv = cache.Noop{}
	}
	return &IconService{
		db:          db,
		repomanager: m,
		config:      config,
		cache:       kv,
		logger:      logging.OrNop(logger).With("module", "icons"),
	}
}

func (s *IconService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

func (s *IconService) presign(ctx context.Context, pc *s3.PresignClient, key string) (string, error) {
	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.IconURLTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PresignedGetURL returns a download URL for key, from cache when possible.
func (s *IconService) PresignedGetURL(ctx context.Context, key string) (string, error) {
	var pc *s3.PresignClient
	return s.url(ctx, &pc, key)
}

// url resolves one key. pc is created on the first cache miss and reused by
// later calls sharing it.
func (s *IconService) url(ctx context.Context, pc **s3.PresignClient, key string) (string, error) {
	u, err := s.cache.Get(ctx, key)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn(ctx, "icon url cache unavailable", "key", key, "error", err)
	}

	if *pc == nil {
		c, err := s.getPresignClient(ctx)
		if err != nil {
			return "", err
		}
		*pc = c
	}
	u, err = s.presign(ctx, *pc, key)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, key, u, s.cacheTTL()); err != nil {
		s.logger.Warn(ctx, "icon url not cached", "key", key, "error", err)
	}
	return u, nil
}

func (s *IconService) cacheTTL() time.Duration {
	return s.config.IconURLTTL / 2
}

// IconAssets lists download URLs for the active icons of a pack visible to
// sess. A pack outside the caller's entitlement reads as not found.
func (s *IconService) IconAssets(ctx context.Context, sess entity.Session, packID string) ([]entity.IconAsset, error) {
	repo := s.repomanager.Records(s.db)
	sco := scope.For(sess)

	visible, err := repo.Visible(ctx, entity.TableIconPacks, packID, sco)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, fmt.Errorf("icon pack %s: %w", packID, common.ErrorNotFound)
	}

	icons, err := repo.ListByParent(ctx, entity.TableIcons, packID, sco)
	if err != nil {
		return nil, err
	}

	var pc *s3.PresignClient
	assets := make([]entity.IconAsset, 0, len(icons))
	for _, rec := range icons {
		icon, ok := rec.(*entity.Icon)
		if !ok || !bool(icon.IsActive) || icon.AssetKey == "" || bool(icon.IsArchived) {
			continue
		}
		u, err := s.url(ctx, &pc, icon.AssetKey)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", icon.AssetKey, err)
		}
		assets = append(assets, entity.IconAsset{
			IconID:   icon.ID,
			AssetKey: icon.AssetKey,
			MimeType: icon.MimeType,
			URL:      u,
		})
	}
	s.logger.Debug(ctx, "icon assets served", "pack_id", packID, "assets", len(assets), "user_id", sess.UserID)
	return assets, nil
}
