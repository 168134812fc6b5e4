// Package storage provides the SQL storage layer for event rows.
//
// It owns the connection (a pgxpool bridged to database/sql for PostgreSQL,
// or a modernc SQLite handle), the per-backend dialect, the composable event
// query scopes, the owner predicates used by parent queries, and the
// set-based prune statements.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// DefaultTable is the events table name used when none is configured.
const DefaultTable = "events"

// Options configures Open.
type Options struct {
	Driver   string // DriverPostgres or DriverSQLite; inferred from DSN when empty.
	DSN      string
	Table    string
	Logger   *slog.Logger
	Clock    func() time.Time // defaults to time.Now
	Location *time.Location   // default zone for today/week/month scopes; UTC when nil
}

// DB is the event store. PostgreSQL connections go through a pgxpool wrapped
// by pgx's database/sql bridge so both backends share one query path.
type DB struct {
	sql      *sql.DB
	pool     *pgxpool.Pool // nil for SQLite
	dialect  Dialect
	table    string
	logger   *slog.Logger
	clock    func() time.Time
	location *time.Location
}

// InferDriver picks a driver from a DSN: postgres:// and postgresql:// URLs
// are PostgreSQL, everything else is a SQLite path or URI.
func InferDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to the configured backend and pings it.
func Open(ctx context.Context, opts Options) (*DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = InferDriver(opts.DSN)
	}
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db := &DB{
		dialect:  dialect,
		table:    opts.Table,
		logger:   opts.Logger,
		clock:    opts.Clock,
		location: opts.Location,
	}
	if db.table == "" {
		db.table = DefaultTable
	}
	if db.logger == nil {
		db.logger = slog.Default()
	}
	if db.clock == nil {
		db.clock = time.Now
	}
	if db.location == nil {
		db.location = time.UTC
	}

	switch driver {
	case DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("storage: create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: ping pool: %w", err)
		}
		db.pool = pool
		db.sql = stdlib.OpenDBFromPool(pool)

	case DriverSQLite:
		sqlDB, err := sql.Open("sqlite", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("storage: open sqlite: %w", err)
		}
		// One connection: in-memory databases are per connection, and SQLite
		// serializes writers anyway.
		sqlDB.SetMaxOpenConns(1)
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("storage: enable WAL mode: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("storage: ping sqlite: %w", err)
		}
		db.sql = sqlDB
	}

	db.logger.Debug("storage: connected", "driver", driver, "table", db.table)
	return db, nil
}

// SQL returns the database/sql handle for callers composing their own queries.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Pool returns the pgx pool, or nil when the backend is SQLite.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Dialect returns the backend dialect.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Table returns the events table name.
func (db *DB) Table() string {
	return db.table
}

// Location returns the default zone for calendar scopes.
func (db *DB) Location() *time.Location {
	return db.location
}

// Now returns the store clock's current time.
func (db *DB) Now() time.Time {
	return db.clock()
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Close releases the database/sql handle and, for PostgreSQL, the pool.
func (db *DB) Close() {
	if err := db.sql.Close(); err != nil {
		db.logger.Warn("storage: close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *DB) quotedTable() string {
	return db.dialect.QuoteIdent(db.table)
}
