// Package bunx opens bun handles for the RBAC store on PostgreSQL or SQLite.
package bunx

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// DatabaseType names a supported backend.
type DatabaseType string

const (
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeSQLite     DatabaseType = "sqlite"
)

// DefaultMaxConns is the PostgreSQL pool size used when none is configured.
const DefaultMaxConns = 25

const pingTimeout = 10 * time.Second

var postgresSchemes = []string{"postgres://", "postgresql://", "unix://"}

// sqlitePragmas run on every new SQLite handle. Foreign keys carry the
// cascade from groups and users to the join tables.
var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
}

// DetectDatabaseType classifies a DSN. Anything that is not a PostgreSQL URL
// (including :memory: and file: forms) is treated as SQLite.
func DetectDatabaseType(dsn string) DatabaseType {
	for _, scheme := range postgresSchemes {
		if strings.HasPrefix(dsn, scheme) {
			return DatabaseTypePostgreSQL
		}
	}
	return DatabaseTypeSQLite
}

// RedactDSN hides the password of a PostgreSQL DSN for logging.
func RedactDSN(dsn string) string {
	if DetectDatabaseType(dsn) != DatabaseTypePostgreSQL {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "postgres://<unparseable>"
	}
	return u.Redacted()
}

// NewDB opens dsn with the default pool size.
func NewDB(dsn string) (*bun.DB, error) {
	return NewDBWithPool(dsn, DefaultMaxConns)
}

// NewDBWithPool opens dsn and verifies connectivity. maxConns applies to
// PostgreSQL; SQLite always uses one connection so that :memory: databases
// live as long as the handle.
func NewDBWithPool(dsn string, maxConns int) (*bun.DB, error) {
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}

	var (
		db  *bun.DB
		err error
	)
	switch DetectDatabaseType(dsn) {
	case DatabaseTypePostgreSQL:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		sqldb.SetMaxOpenConns(maxConns)
		sqldb.SetMaxIdleConns(maxConns)
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		db, err = openSQLite(dsn)
		if err != nil {
			return nil, err
		}
	}

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func openSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}
	return db, nil
}

func ping(db *bun.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close closes db. A nil handle is a no-op.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
