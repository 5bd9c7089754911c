package main

import (
	"github.com/spf13/cobra"

	"gomarket_mdm/migrations/mdm"
	"gomarket_mdm/pkg/dbconnect/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the mdm schema in Postgres",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, closeDB, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		return migration.Apply(db, mdm.NewMigration(newLogger("[Migrations] ")))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
