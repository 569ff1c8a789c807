package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// isPostgreSQL gates statements sqlite cannot run, such as adding a
// constraint to an existing table.
func isPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
