// Package migrations embeds the per-backend SQL that creates the events table.
// Files are text/template sources; the runner fills in the table name.
package migrations

import "embed"

// FS holds one directory per driver (postgres/, sqlite/) of ordered .sql files.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
