package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for primary keys. IDs are
// generated in Go so the same models work on PostgreSQL and SQLite.
//
// Panics only if the entropy source fails, in which case no ID generation
// could succeed anyway.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
