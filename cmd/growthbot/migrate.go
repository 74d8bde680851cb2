package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/growth.report/internal/db"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate <" + strings.Join(db.MigrateActions, "|") + "> [version]",
		Short:     "Manage the session database schema",
		Long:      "Apply, roll back or inspect schema migrations. version and force take the target version.",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: db.MigrateActions,
		RunE:      runMigrateCmd,
	}
	cmd.Flags().String("db", "", "SQLite session database")
	return cmd
}

func runMigrateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.GetDBPath()
	if path == "" {
		return errors.New("migrate needs --db or db_path in the config file")
	}

	database, err := db.OpenDB(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	return db.RunMigrate(cmd.OutOrStdout(), database, args[0], args[1:])
}
