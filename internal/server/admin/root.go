// Package admin implements fieldsync-admin, the operator tool for schema
// migrations, user provisioning, token issuing and tombstone retention.
package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Backend is what the commands act on.
type Backend interface {
	Migrate(ctx context.Context) error
	CreateUser(ctx context.Context, name string, role entity.Role, clientID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	IssueToken(ctx context.Context, userID string) (string, error)
	PurgeTombstones(ctx context.Context, olderThan time.Duration) (int64, error)
	io.Closer
}

// Opener connects a Backend for the resolved configuration.
type Opener func(ctx context.Context, cfg *config.Config) (Backend, error)

type rootOptions struct {
	configPath string
	dsn        string
	secret     string
	tokenTTL   time.Duration
	logLevel   string
}

// NewRootCmd builds the command tree. The backend is opened lazily by the
// command that needs it and closed when that command returns.
func NewRootCmd(open Opener) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "fieldsync-admin",
		Short:         "Administer a fieldsync server database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to the server JSON config (default $FIELDSYNC_CONFIG)")
	pf.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN, overrides the config file")
	pf.StringVar(&opts.secret, "secret", "", "token signing key, overrides the config file")
	pf.DurationVar(&opts.tokenTTL, "token-ttl", 0, "lifetime of issued tokens, overrides the config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level, overrides the config file")

	var withBackend runner = func(cmd *cobra.Command, fn func(ctx context.Context, b Backend) error) error {
		cfg, err := opts.load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		b, err := open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open backend: %w", err)
		}
		defer b.Close()
		return fn(ctx, b)
	}

	rootCmd.AddCommand(
		newMigrateCmd(withBackend),
		newUserCmd(withBackend),
		newTokenCmd(withBackend),
		newTombstonesCmd(withBackend),
	)
	return rootCmd
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, b Backend) error) error

func configPathFromEnv() string {
	return os.Getenv(common.EnvConfigPath)
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	path := o.configPath
	if path == "" {
		path = configPathFromEnv()
	}
	if path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if o.dsn != "" {
		cfg.DatabaseDSN = o.dsn
	}
	if o.secret != "" {
		cfg.SecretKey = o.secret
	}
	if o.tokenTTL > 0 {
		cfg.AccessTokenValidityDuration = o.tokenTTL
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// Execute runs the tool against args and writes results to out.
func Execute(ctx context.Context, open Opener, args []string, out, errOut io.Writer) error {
	rootCmd := NewRootCmd(open)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	return rootCmd.ExecuteContext(ctx)
}
