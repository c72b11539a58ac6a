package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/xavierca1/healing-ledger/internal/infra/database"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

func openDB(opts *RootOptions) (*sqlx.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("no database configured: set DB_URL or --dsn")
	}
	return database.NewDBConnection(database.Options{Driver: opts.Driver, DSN: opts.DSN})
}

// withDB opens the database for one command run.
func withDB(opts *RootOptions, fn func(ctx context.Context, db *sqlx.DB) error) error {
	db, err := openDB(opts)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(context.Background(), db)
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply the embedded schema",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(ctx context.Context, db *sqlx.DB) error {
				if err := database.Migrate(ctx, db); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", db.DriverName())
				return nil
			})
		},
	}
}

func NewStatsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics",
	}

	var days int
	revenue := &cobra.Command{
		Use:          "revenue",
		Short:        "Completed revenue over the last N days",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(ctx context.Context, db *sqlx.DB) error {
				ledger := usecase.NewPurchaseLedger(database.NewPurchaseRepository(db), nil, nil)
				stats, err := ledger.RevenueStats(ctx, days)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.Format, stats)
			})
		},
	}
	revenue.Flags().IntVar(&days, "days", usecase.DefaultWindowDays, "window size in days")

	leads := &cobra.Command{
		Use:          "leads",
		Short:        "Quiz lead totals, growth and conversion",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(ctx context.Context, db *sqlx.DB) error {
				stats, err := usecase.NewLeadCapture(database.NewLeadRepository(db), nil, nil).Stats(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.Format, stats)
			})
		},
	}

	aiLeads := &cobra.Command{
		Use:          "ai-leads",
		Short:        "Chat lead totals, growth and engagement",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(ctx context.Context, db *sqlx.DB) error {
				chat := usecase.NewChatLedger(database.NewChatRepository(db), database.NewAILeadRepository(db), nil, nil)
				stats, err := chat.LeadStats(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.Format, stats)
			})
		},
	}

	products := &cobra.Command{
		Use:          "products",
		Short:        "Purchase count and revenue per product",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(ctx context.Context, db *sqlx.DB) error {
				stats, err := newCatalog(db).StatsWithSales(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.Format, stats)
			})
		},
	}

	cmd.AddCommand(revenue, leads, aiLeads, products)
	return cmd
}

func NewProductsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect the catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List every product, active or not",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(ctx context.Context, db *sqlx.DB) error {
				products, err := newCatalog(db).ListAll(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.Format, products)
			})
		},
	})
	return cmd
}

func newCatalog(db *sqlx.DB) *usecase.CatalogService {
	return usecase.NewCatalogService(database.NewProductRepository(db), database.NewPurchaseRepository(db), nil)
}
