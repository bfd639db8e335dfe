// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/store"
)

// migrator matches store.Migrator; injectable for tests.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// newMigrator is swapped out in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand with its up/down/status verbs.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect schema migrations against the PostgreSQL database.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					cmd.Println("No migrations applied")
					return nil
				}
				cmd.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator, runs fn, and
// always closes.
func withMigrator(cmd *cobra.Command, fn func(migrator) error) error {
	appCfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	databaseURL := resolveDatabaseURL(appCfg)
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (db.url or DATABASE_URL)")
	}

	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	return fn(m)
}
