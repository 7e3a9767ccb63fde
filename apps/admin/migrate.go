package main

import (
	"database/sql"

	"github.com/trezcool/goose"

	"github.com/trezcool/acolher/storage/database"
	"github.com/trezcool/acolher/storage/database/migrations"
)

// mockable
var gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
	return goose.RunFS(command, db, migrations.FS, database.MigrationsDir, args...)
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, arguments...)
}
