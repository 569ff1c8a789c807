package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered set applied by `fitapi db migrate` and on serve.
var Migrations = migrate.NewMigrations()
