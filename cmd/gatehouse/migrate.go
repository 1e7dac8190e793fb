// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/arenalabs/gatehouse/internal/config"
	"github.com/arenalabs/gatehouse/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" && configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		databaseURL = cfg.DatabaseURL
	}
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable or config file is required")
	}

	cmd.Println("Running migrations...")
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	if ver, applied, err := migrator.Version(); err == nil && applied {
		cmd.Printf("Migrations completed successfully (version %d)\n", ver)
	} else {
		cmd.Println("Migrations completed successfully")
	}
	return nil
}
