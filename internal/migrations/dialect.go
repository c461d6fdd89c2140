package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DialectName reports "postgres", "sqlite" or "unknown" for db.
func DialectName(db *bun.DB) string {
	switch db.Dialect().Name() {
	case dialect.PG:
		return "postgres"
	case dialect.SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// NeedsLock reports whether schema changes must take the migration lock.
// A SQLite file has a single writer, so only PostgreSQL uses the lock table.
func NeedsLock(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
