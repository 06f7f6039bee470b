// Package dbdriver registers the database/sql drivers this server can speak
// and resolves a connection string's dialect, so the rest of the core never
// imports a specific driver package directly.
package dbdriver

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql dialect
	_ "github.com/jackc/pgx/v5/stdlib" // postgres dialect
	_ "modernc.org/sqlite"             // sqlite dialect (default, embedded)
)

// Dialect identifies the SQL dialect a data or metadata session speaks. The
// Registry's upsert-returning meta-tools (general_merge_tool) render
// dialect-specific SQL based on this.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// Open opens a *sql.DB for the given connection URL, inferring the driver
// name from the URL scheme (sqlite:, mysql://, postgres://).
func Open(url string) (*sql.DB, Dialect, error) {
	dialect, driverName, dsn, err := parse(url)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("dbdriver: opening %s: %w", dialect, err)
	}
	return db, dialect, nil
}

// parse splits a connection URL into its dialect, database/sql driver name,
// and driver-specific DSN.
func parse(url string) (dialect Dialect, driverName string, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return DialectSQLite, "sqlite", strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "sqlite:"):
		return DialectSQLite, "sqlite", strings.TrimPrefix(url, "sqlite:"), nil
	case strings.HasPrefix(url, "mysql://"):
		return DialectMySQL, "mysql", strings.TrimPrefix(url, "mysql://"), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DialectPostgres, "pgx", url, nil
	default:
		return "", "", "", fmt.Errorf("dbdriver: unrecognized connection URL scheme: %q", url)
	}
}
