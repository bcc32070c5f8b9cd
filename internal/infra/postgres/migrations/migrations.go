// Package migrations holds the bun migrations for the postgres backend.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
