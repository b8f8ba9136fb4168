package admin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/guildkeeper/internal/server/auth"
	"github.com/dmitrijs2005/guildkeeper/internal/server/config"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/repomanager"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Opener opens the credential store described by cfg. The returned func
// releases it.
type Opener func(ctx context.Context, cfg *config.Config) (credentials.Repository, func() error, error)

// OpenRepository opens the configured backend through the repository
// manager and applies pending migrations.
func OpenRepository(ctx context.Context, cfg *config.Config) (credentials.Repository, func() error, error) {
	m, err := repomanager.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, nil, err
	}
	return m.Credentials(), m.Close, nil
}

// NewRootCommand builds the credentials command tree.
func NewRootCommand(open Opener) *cobra.Command {
	var (
		configPath string
		backend    string
		dsn        string
		table      string

		admin   *Admin
		release func() error
	)

	root := &cobra.Command{
		Use:           "credentials",
		Short:         "Manage stored bot credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}

			var cfgArgs []string
			if configPath != "" {
				cfgArgs = append(cfgArgs, "-c="+configPath)
			}
			if backend != "" {
				cfgArgs = append(cfgArgs, "-b="+backend)
			}
			if dsn != "" {
				cfgArgs = append(cfgArgs, "-d="+dsn)
			}
			if table != "" {
				cfgArgs = append(cfgArgs, "-t="+table)
			}

			cfg, err := config.Load(cfgArgs)
			if err != nil {
				return err
			}

			repo, closeFn, err := open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			release = closeFn
			admin = New(repo, auth.NewBcryptHasher(), cmd.OutOrStdout())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if release != nil {
				return release()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")
	root.PersistentFlags().StringVarP(&backend, "backend", "b", "", "credential backend (dynamodb, postgres, sqlite, memory)")
	root.PersistentFlags().StringVarP(&dsn, "dsn", "d", "", "database DSN for SQL backends")
	root.PersistentFlags().StringVarP(&table, "table", "t", "", "DynamoDB table name")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return admin.List(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "show USER_ID",
			Short: "Show one credential",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return admin.Show(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "export FILE",
			Short: "Write all credentials to a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return admin.Export(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "import FILE",
			Short: "Bulk-load credentials from a JSON export",
			Long: `Bulk-load credentials from a JSON export, overwriting records with the
same user id. Stop the bot first: registrations made while the import runs
may be overwritten.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return admin.Import(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "rename USER_ID USERNAME",
			Short: "Change the stored username",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return admin.Rename(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "passwd USER_ID",
			Short: "Reset a user's password",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				pw, err := promptPassword(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer clear(pw)
				return admin.Passwd(cmd.Context(), args[0], pw)
			},
		},
		&cobra.Command{
			Use:   "delete USER_ID",
			Short: "Delete a credential",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return admin.Delete(cmd.Context(), args[0])
			},
		},
	)

	return root
}

func promptPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "New password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
