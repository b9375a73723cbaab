package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// DefaultTombstoneRetention is how long tombstones are kept when
// --older-than is not given. Devices offline for longer must re-sync.
const DefaultTombstoneRetention = 90 * 24 * time.Hour

func newMigrateCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b Backend) error {
				if err := b.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newUserCmd(run runner) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage sync accounts",
	}

	var (
		name     string
		role     string
		clientID string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long: `Create a user that can sync.

CLIENT users must be bound to an existing client with --client.
ADMIN and ENGINEER users must not be.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := entity.Role(strings.ToUpper(role))
			if !r.Valid() {
				return fmt.Errorf("--role must be one of ADMIN, ENGINEER, CLIENT, got %q", role)
			}
			return run(cmd, func(ctx context.Context, b Backend) error {
				u, err := b.CreateUser(ctx, name, r, clientID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "display name")
	addCmd.Flags().StringVar(&role, "role", "", "ADMIN, ENGINEER or CLIENT")
	addCmd.Flags().StringVar(&clientID, "client", "", "client id for CLIENT users")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("role")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b Backend) error {
				users, err := b.ListUsers(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tROLE\tCLIENT")
				for _, u := range users {
					client := "-"
					if u.ClientID != nil {
						client = *u.ClientID
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Role, client)
				}
				return w.Flush()
			})
		},
	}

	userCmd.AddCommand(addCmd, listCmd)
	return userCmd
}

func newTokenCmd(run runner) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	var userID string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Print a bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b Backend) error {
				token, err := b.IssueToken(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	issueCmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = issueCmd.MarkFlagRequired("user")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}

func newTombstonesCmd(run runner) *cobra.Command {
	tombstonesCmd := &cobra.Command{
		Use:   "tombstones",
		Short: "Tombstone retention",
	}

	var olderThan time.Duration
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete tombstones older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return run(cmd, func(ctx context.Context, b Backend) error {
				n, err := b.PurgeTombstones(ctx, olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d tombstones\n", n)
				return nil
			})
		},
	}
	purgeCmd.Flags().DurationVar(&olderThan, "older-than", DefaultTombstoneRetention, "retention window")

	tombstonesCmd.AddCommand(purgeCmd)
	return tombstonesCmd
}
