package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/migrations"
)

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	var forceVersion int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		Long:  "Apply pending PostgreSQL schema migrations, or force the recorded version to recover from a dirty state",
		Example: `  # Apply all pending migrations
  server migrate

  # Mark version 1 as applied after fixing a failed migration by hand
  server migrate --force-version 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default().With("command", "migrate")

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("migrations only apply to the postgres driver, not %q", cfg.Database.Driver)
			}

			conn, err := connectPostgres(cmd.Context(), cfg.Database.Postgres, log)
			if err != nil {
				return err
			}
			defer conn.Close()

			if forceVersion >= 0 {
				log.Info("Force setting migration version", "version", forceVersion)
				if err := conn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
					return fmt.Errorf("failed to force migration version: %w", err)
				}
				return nil
			}

			if err := conn.RunMigrations(migrations.FS); err != nil {
				return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
			}

			version, dirty, err := conn.MigrationVersion(migrations.FS)
			if err != nil {
				return fmt.Errorf("failed to read migration version: %w", err)
			}
			log.Info("Migrations applied", "version", version, "dirty", dirty)
			return nil
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force-version", -1, "Force migration version (use to fix dirty migration state)")
	return cmd
}
