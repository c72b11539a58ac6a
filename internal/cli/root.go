package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/xavierca1/healing-ledger/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "yaml"
	Driver string
	DSN    string
}

var ValidFormats = []string{"json", "yaml"}

// NewRootCommand builds the admin CLI. Database flags default to the service config.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.Load)
}

func newRootCommand(load func() (*config.Config, error)) *cobra.Command {
	opts := &RootOptions{}

	cfg, loadErr := load()
	defaultDriver, defaultDSN := "postgres", ""
	if loadErr == nil && cfg != nil {
		defaultDriver, defaultDSN = cfg.Database.Driver, cfg.Database.DSN
	}

	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Healing ledger administration",
		Long:          "Operational commands for the catalog, purchase ledger and lead capture database.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil && !cmd.Flags().Changed("dsn") {
				return fmt.Errorf("load config: %w", loadErr)
			}
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", defaultDriver, "database driver (postgres|sqlite3|libsql)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", defaultDSN, "database connection string")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))

	return cmd
}
