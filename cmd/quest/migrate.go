package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-quest/internal/cli"
	"github.com/Veraticus/spice-quest/internal/config"
	"github.com/Veraticus/spice-quest/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

An automatic checkpoint is taken before an existing database is upgraded.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")
	cmd.Flags().Bool("no-checkpoint", false, "Skip the automatic checkpoint")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	noCheckpoint, _ := cmd.Flags().GetBool("no-checkpoint")
	ctx := cmd.Context()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		fmt.Println(cli.FormatTitle("Database migration status"))
		fmt.Printf("  Database:        %s\n", cfg.Database.Path)
		fmt.Printf("  Current version: %d\n", current)
		fmt.Printf("  Latest version:  %d\n", storage.ExpectedSchemaVersion)
		if current < storage.ExpectedSchemaVersion {
			fmt.Println(cli.FormatWarning(fmt.Sprintf("%d migration(s) pending", storage.ExpectedSchemaVersion-current)))
		}
		return nil
	}

	if current == storage.ExpectedSchemaVersion {
		fmt.Println(cli.FormatSuccess("Database is up to date"))
		return nil
	}

	if current > 0 && !noCheckpoint {
		manager, err := store.Checkpoints()
		if err != nil {
			return fmt.Errorf("failed to create checkpoint manager: %w", err)
		}
		if _, err := manager.AutoCheckpoint(ctx, "migrate"); err != nil {
			return err
		}
	}

	slog.Info("Running database migrations",
		"database", cfg.Database.Path,
		"from", current,
		"to", storage.ExpectedSchemaVersion)

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Database migrated to version %d", storage.ExpectedSchemaVersion)))
	return nil
}
