package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // sqlite driver (pure Go)
)

// Supported DATABASE_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const pingTimeout = 3 * time.Second

// sqliteDSN turns a bare path into a URI with foreign keys and a busy timeout.
// Values already written as "file:" URIs are passed through.
func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
}

// Open connects to the database and verifies the connection.
func Open(driver, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One writer at a time; also keeps an in-memory database alive on a
		// single connection.
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	log.Info().Str("driver", driver).Msg("Database connection established successfully.")
	return conn, nil
}

// Migrate applies idempotent schema statements in order.
func Migrate(ctx context.Context, conn *sqlx.DB, statements ...string) error {
	if conn == nil {
		return fmt.Errorf("database not initialized, call Open first")
	}
	if len(statements) == 0 {
		return fmt.Errorf("no schema statements provided for migration")
	}

	for i, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}

	log.Info().Int("statements_applied", len(statements)).Msg("Database migration completed successfully.")
	return nil
}
