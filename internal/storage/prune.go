package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aarondfrancis/eventable/internal/model"
)

// errNilPruneConfig guards PruneCase; cases without a policy are skipped by
// the caller and never reach the store.
var errNilPruneConfig = errors.New("storage: nil prune config")

// PruneCase deletes (or, when dryRun is set, counts) the rows of one event
// case that fall outside its retention policy, in a single statement.
//
// With Keep > 0 the rows of each (owner_id, owner_type[, data]) partition
// are ranked newest first and the top Keep are retained. With a Before
// cutoff only rows strictly older than it are eligible. Both conditions are
// ANDed. A policy with neither removes every row of the case.
func (db *DB) PruneCase(ctx context.Context, key model.EventKey, cfg *model.PruneConfig, dryRun bool) (int64, error) {
	query, args, err := db.pruneSQL(key, cfg, dryRun)
	if err != nil {
		return 0, err
	}
	query = db.dialect.Rebind(query)

	if dryRun {
		var n int64
		if err := db.sql.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("storage: count prunable %s: %w", key, classify(err))
		}
		return n, nil
	}

	res, err := db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("storage: prune %s: %w", key, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: prune %s rows affected: %w", key, err)
	}
	return n, nil
}

// pruneSQL renders the prune statement with '?' placeholders.
func (db *DB) pruneSQL(key model.EventKey, cfg *model.PruneConfig, dryRun bool) (string, []any, error) {
	if cfg == nil {
		return "", nil, errNilPruneConfig
	}
	table := db.quotedTable()

	var (
		sql  string
		args []any
	)
	if keep := cfg.Keep(); keep > 0 {
		partition := "owner_id, owner_type"
		if cfg.VaryOnData() {
			partition += ", data"
		}
		sql = "WITH ranked AS (SELECT id, row_number() OVER (PARTITION BY " + partition +
			" ORDER BY created_at DESC, id DESC) AS num FROM " + table +
			" WHERE type_alias = ? AND type_value = ?) "
		args = append(args, key.Alias, key.Value)
	}

	if dryRun {
		sql += "SELECT COUNT(*) FROM " + table
	} else {
		sql += "DELETE FROM " + table
	}
	sql += " WHERE type_alias = ? AND type_value = ?"
	args = append(args, key.Alias, key.Value)

	if keep := cfg.Keep(); keep > 0 {
		sql += " AND id NOT IN (SELECT id FROM ranked WHERE num <= ?)"
		args = append(args, keep)
	}
	if before, ok := cfg.Before(); ok {
		sql += " AND created_at < ?"
		args = append(args, db.dialect.TimeArg(before))
	}
	return sql, args, nil
}
