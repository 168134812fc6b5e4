package storage

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"
)

// migrationData is the template context for migration files.
type migrationData struct {
	Table string // quoted table name
	table string
	quote func(string) string
}

// Index returns a quoted index name derived from the table name.
func (m migrationData) Index(suffix string) string {
	return m.quote(m.table + "_" + suffix + "_index")
}

// Companion returns the quoted name of a table kept alongside the events
// table, e.g. "events_prune_log".
func (m migrationData) Companion(suffix string) string {
	return m.quote(m.table + "_" + suffix)
}

// RunMigrations executes unapplied SQL migration files in order. migrationsFS
// holds one directory per driver; only the directory for the open backend is
// read. Files are templates over the table name, and applied versions are
// recorded per table in schema_migrations so several event tables can share
// a database.
func (db *DB) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	dir, err := fs.Sub(migrationsFS, db.dialect.Name())
	if err != nil {
		return fmt.Errorf("storage: open %s migrations: %w", db.dialect.Name(), err)
	}

	if err := db.exec(ctx, db.schemaMigrationsDDL()); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	applied, err := db.loadAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}

	entries, err := fs.ReadDir(dir, ".")
	if err != nil {
		return fmt.Errorf("storage: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	data := migrationData{Table: db.quotedTable(), table: db.table, quote: db.dialect.QuoteIdent}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version := db.table + "/" + entry.Name()
		if applied[version] {
			db.logger.Debug("migration already applied, skipping", "version", version)
			continue
		}

		content, err := fs.ReadFile(dir, entry.Name())
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", entry.Name(), err)
		}
		tmpl, err := template.New(entry.Name()).Parse(string(content))
		if err != nil {
			return fmt.Errorf("storage: parse migration %s: %w", entry.Name(), err)
		}
		var rendered bytes.Buffer
		if err := tmpl.Execute(&rendered, data); err != nil {
			return fmt.Errorf("storage: render migration %s: %w", entry.Name(), err)
		}

		db.logger.Info("running migration", "version", version)
		if err := db.exec(ctx, rendered.String()); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", version, err)
		}

		if _, err := db.sql.ExecContext(ctx,
			db.dialect.Rebind(`INSERT INTO schema_migrations (version) VALUES (?) ON CONFLICT DO NOTHING`), version,
		); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", version, err)
		}
	}

	return nil
}

// exec runs a multi-statement script. PostgreSQL scripts go straight to the
// pool, which uses the simple protocol for argument-free statements.
func (db *DB) exec(ctx context.Context, script string) error {
	if db.pool != nil {
		_, err := db.pool.Exec(ctx, script)
		return err
	}
	_, err := db.sql.ExecContext(ctx, script)
	return err
}

func (db *DB) schemaMigrationsDDL() string {
	if db.dialect.Name() == DriverPostgres {
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	}
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
}

// loadAppliedMigrations returns the set of versions already recorded.
func (db *DB) loadAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := db.sql.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
