package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aarondfrancis/eventable/internal/model"
)

// NewEvent is the write shape of an event row.
type NewEvent struct {
	Key   model.EventKey
	Owner model.OwnerRef
	Data  json.RawMessage
	// CreatedAt defaults to the store clock when zero.
	CreatedAt time.Time
}

// InsertEvent writes one row and returns it with its id and timestamps set.
func (db *DB) InsertEvent(ctx context.Context, in NewEvent) (model.Event, error) {
	e := db.eventFrom(in)
	query := db.insertSQL() + " RETURNING id"
	err := db.sql.QueryRowContext(ctx, db.dialect.Rebind(query),
		e.TypeAlias, e.TypeValue, db.dialect.DataArg(e.Data), e.OwnerID, e.OwnerType,
		db.dialect.TimeArg(e.CreatedAt), db.dialect.TimeArg(e.UpdatedAt),
	).Scan(&e.ID)
	if err != nil {
		return model.Event{}, fmt.Errorf("storage: insert event: %w", classify(err))
	}
	return e, nil
}

// InsertEvents bulk-loads rows. PostgreSQL uses the COPY protocol; SQLite
// inserts inside one transaction. It returns the number of rows written.
func (db *DB) InsertEvents(ctx context.Context, in []NewEvent) (int64, error) {
	if len(in) == 0 {
		return 0, nil
	}
	if db.pool != nil {
		return db.copyEvents(ctx, in)
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: begin insert events: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := db.dialect.Rebind(db.insertSQL())
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("storage: prepare insert events: %w", classify(err))
	}
	defer func() { _ = stmt.Close() }()

	for _, n := range in {
		e := db.eventFrom(n)
		if _, err := stmt.ExecContext(ctx,
			e.TypeAlias, e.TypeValue, db.dialect.DataArg(e.Data), e.OwnerID, e.OwnerType,
			db.dialect.TimeArg(e.CreatedAt), db.dialect.TimeArg(e.UpdatedAt),
		); err != nil {
			return 0, fmt.Errorf("storage: insert events: %w", classify(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: commit insert events: %w", err)
	}
	return int64(len(in)), nil
}

func (db *DB) copyEvents(ctx context.Context, in []NewEvent) (int64, error) {
	columns := []string{"type_alias", "type_value", "data", "owner_id", "owner_type", "created_at", "updated_at"}
	rows := make([][]any, len(in))
	for i, n := range in {
		e := db.eventFrom(n)
		var data any
		if e.Data != nil {
			data = e.Data
		}
		rows[i] = []any{e.TypeAlias, e.TypeValue, data, e.OwnerID, e.OwnerType, e.CreatedAt, e.UpdatedAt}
	}

	// COPY gets its own deadline so a hung server cannot block a bulk load forever.
	copyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := db.pool.CopyFrom(copyCtx, pgx.Identifier{db.table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("storage: copy events: %w", classify(err))
	}
	return n, nil
}

func (db *DB) insertSQL() string {
	return "INSERT INTO " + db.quotedTable() +
		" (type_alias, type_value, data, owner_id, owner_type, created_at, updated_at)" +
		" VALUES (?, ?, " + db.dialect.DataPlaceholder() + ", ?, ?, ?, ?)"
}

// GetEvent returns one row by id.
func (db *DB) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	return db.Events().Where("id = ?", id).First(ctx)
}

func (db *DB) eventFrom(in NewEvent) model.Event {
	created := in.CreatedAt
	if created.IsZero() {
		created = db.Now()
	}
	created = created.UTC()
	return model.Event{
		TypeAlias: in.Key.Alias,
		TypeValue: in.Key.Value,
		Data:      in.Data,
		OwnerID:   in.Owner.ID,
		OwnerType: in.Owner.Type,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
