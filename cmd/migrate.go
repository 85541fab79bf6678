/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/reckon-app/apiserver/internal/db"
	"github.com/spf13/cobra"
)

var migrationsPath string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd, "up", func(m *migrate.Migrate) error { return m.Up() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd, "down", func(m *migrate.Migrate) error { return m.Steps(-1) })
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "internal/db/migrations", "directory holding the migration files")
}

func runMigration(cmd *cobra.Command, direction string, step func(*migrate.Migrate) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	migrator, err := migrate.New("file://"+migrationsPath, db.DSN(cfg.Database))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := step(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info(cmd.Context(), "no migration to apply", "direction", direction)
			return nil
		}
		return fmt.Errorf("migrate %s failed: %w", direction, err)
	}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info(cmd.Context(), "migration applied", "direction", direction, "version", version, "dirty", dirty)
	return nil
}
