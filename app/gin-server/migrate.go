package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoockh/scribe/config"
	"github.com/yoockh/scribe/internal/logger"
	"github.com/yoockh/scribe/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, dialect, err := config.OpenDatabase(cfg.DatabaseURL, logger.New(cfg.LogLevel))
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		n, err := migrations.Up(cmd.Context(), sqlDB, dialect)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) on %s\n", n, dialect)
		return nil
	},
}
