package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PruneRun is an operation-level record of one prune run.
type PruneRun struct {
	RunID       uuid.UUID
	DryRun      bool
	Counts      map[string]int64 // "alias:value" -> rows deleted (or counted on a dry run)
	Total       int64
	StartedAt   time.Time
	CompletedAt time.Time
}

func (db *DB) pruneLogTable() string {
	return db.dialect.QuoteIdent(db.table + "_prune_log")
}

// RecordPruneRun appends run to the prune log of this events table.
func (db *DB) RecordPruneRun(ctx context.Context, run PruneRun) error {
	counts := run.Counts
	if counts == nil {
		counts = map[string]int64{}
	}
	raw, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("storage: encode prune counts: %w", err)
	}
	query := `INSERT INTO ` + db.pruneLogTable() +
		` (run_id, dry_run, deleted_counts, total, started_at, completed_at) VALUES (?, ?, ` +
		db.dialect.DataPlaceholder() + `, ?, ?, ?)`
	_, err = db.sql.ExecContext(ctx, db.dialect.Rebind(query),
		run.RunID.String(), run.DryRun, db.dialect.DataArg(raw), run.Total,
		db.dialect.TimeArg(run.StartedAt), db.dialect.TimeArg(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: record prune run: %w", classify(err))
	}
	return nil
}

// LastPruneRun returns the most recent run that actually deleted rows (dry
// runs are skipped). ok is false when no run has been recorded.
func (db *DB) LastPruneRun(ctx context.Context) (run PruneRun, ok bool, err error) {
	query := `SELECT run_id, dry_run, deleted_counts, total, started_at, completed_at FROM ` +
		db.pruneLogTable() + ` WHERE dry_run = ? ORDER BY started_at DESC, id DESC LIMIT 1`

	var id string
	var counts sql.NullString
	err = db.sql.QueryRowContext(ctx, db.dialect.Rebind(query), false).Scan(
		&id, &run.DryRun, &counts, &run.Total,
		sqlTime{&run.StartedAt}, sqlTime{&run.CompletedAt},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PruneRun{}, false, nil
	}
	if err != nil {
		return PruneRun{}, false, fmt.Errorf("storage: last prune run: %w", classify(err))
	}
	if run.RunID, err = uuid.Parse(id); err != nil {
		return PruneRun{}, false, fmt.Errorf("storage: last prune run: %w", err)
	}
	if counts.Valid {
		if err := json.Unmarshal([]byte(counts.String), &run.Counts); err != nil {
			return PruneRun{}, false, fmt.Errorf("storage: decode prune counts: %w", err)
		}
	}
	return run, true, nil
}
