/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package main provides the CLI commands for managing database migrations.
*/
package main

import (
	"database/sql"
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/nordlion/nordlion"
	"github.com/nordlion/nordlion/database"
)

const schema = "nordlion"

func migrateCommands(n *nordlionInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run nordlion database migrations",
	}

	cmd.AddCommand(migrateCommand(n, "up", migrate.Up))
	cmd.AddCommand(migrateCommand(n, "down", migrate.Down))

	return cmd
}

// openForMigration connects and makes sure the schema holding the migration table exists.
func openForMigration(dns string) (*sql.DB, error) {
	db, err := database.ConnectDB(dns)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + schema); err != nil {
		return nil, err
	}
	migrate.SetSchema(schema)
	return db, nil
}

func migrateCommand(n *nordlionInstance, use string, direction migrate.MigrationDirection) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "migrate " + use,
		Run: func(cmd *cobra.Command, args []string) {
			migrations := migrate.EmbedFileSystemMigrationSource{
				FileSystem: nordlion.SQLFiles,
				Root:       "sql",
			}

			db, err := openForMigration(n.cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			count, err := migrate.Exec(db, "postgres", migrations, direction)
			if err != nil {
				log.Printf("Error migrating %s: %v", use, err)
				return
			}
			fmt.Printf("Applied %d migrations %s!\n", count, use)
		},
	}

	return cmd
}
