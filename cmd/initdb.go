package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quillblog/db"
	"quillblog/internal/util"
)

func newInitDBCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema and seed the canned posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sqliteDB, err := db.ConnectToSQLite(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer sqliteDB.Close()

			// A running server may hold the write lock briefly.
			return util.RetryOnLock(cmd.Context(), func() error {
				if reset {
					log.Warn().Str("path", cfg.SQLitePath).Msg("Dropping existing tables")
					if err := db.DropSchema(sqliteDB); err != nil {
						return err
					}
				}
				return db.InitializeSchema(sqliteDB)
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop existing tables first (destroys all users and posts)")
	return cmd
}
