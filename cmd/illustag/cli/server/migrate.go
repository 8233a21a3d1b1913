package server

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwantia/illustag/pkg/db/migrations"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/log"

	config "github.com/mwantia/illustag/internal/config/server"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending metadata schema migrations",
		Long: `Apply pending metadata schema migrations.

The agent migrates on startup; this command lets the schema be inspected and
upgraded or reverted without starting the service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				count, err := m.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", count)
				return nil
			})
		},
	}

	cmd.AddCommand(newMigrateStatusCommand())
	cmd.AddCommand(newMigrateRollbackCommand())

	return cmd
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List known migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
				for _, status := range statuses {
					applied := "pending"
					if status.Applied {
						applied = status.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", status.Version, applied, status.Description)
				}
				return w.Flush()
			})
		},
	}
}

func newMigrateRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Revert the most recently applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				migration, err := m.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reverted migration %d (%s)\n", migration.Version, migration.Description)
				return nil
			})
		},
	}
}

func withMigrator(ctx context.Context, fn func(m *migrations.Migrator) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	logger := log.NewWriterLogger(cfg.Log.Name, cfg.Log, os.Stderr)
	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path:   cfg.Metadata.SQLite.Path,
		Logger: log.NewGormLogger(logger.Named("store"), 0),
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to metadata store: %w", err)
	}
	return fn(st.Migrator())
}
