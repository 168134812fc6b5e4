package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aarondfrancis/eventable/internal/model"
)

const eventColumns = "id, type_alias, type_value, data, owner_id, owner_type, created_at, updated_at"

// Query is a composable filter over the events table. Scopes are ANDed in
// call order. The first scope error is kept and returned by the terminal call.
type Query struct {
	db    *DB
	alias string
	conds []string
	args  []any
	order string
	limit int
	err   error
}

// Events starts a query over every event row.
func (db *DB) Events() *Query {
	return &Query{db: db}
}

// eventsAs starts a query whose columns are qualified with alias, for use
// inside correlated sub-queries.
func (db *DB) eventsAs(alias string) *Query {
	return &Query{db: db, alias: alias}
}

// Clone copies the query so branches can diverge.
func (q *Query) Clone() *Query {
	c := *q
	c.conds = append([]string(nil), q.conds...)
	c.args = append([]any(nil), q.args...)
	return &c
}

// Err returns the first scope error.
func (q *Query) Err() error {
	return q.err
}

func (q *Query) col(name string) string {
	if q.alias == "" {
		return name
	}
	return q.alias + "." + name
}

func (q *Query) where(cond string, args ...any) *Query {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
	return q
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Where adds a raw condition with '?' placeholders.
func (q *Query) Where(cond string, args ...any) *Query {
	return q.where("("+cond+")", args...)
}

// OfType matches type_value against one value or a set. Values may be
// cases, strings, integers, or slices of those.
func (q *Query) OfType(values ...any) *Query {
	flat, err := typeValues(values)
	if err != nil {
		return q.fail(err)
	}
	switch len(flat) {
	case 0:
		return q.where("1 = 0")
	case 1:
		return q.where(q.col("type_value")+" = ?", flat[0])
	default:
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(flat)), ", ")
		args := make([]any, len(flat))
		for i, v := range flat {
			args[i] = v
		}
		return q.where(q.col("type_value")+" IN ("+marks+")", args...)
	}
}

// OfTypeAlias matches rows of one registered type family.
func (q *Query) OfTypeAlias(alias string) *Query {
	return q.where(q.col("type_alias")+" = ?", alias)
}

// OfKey matches one case of one registered family.
func (q *Query) OfKey(key model.EventKey) *Query {
	return q.OfTypeAlias(key.Alias).where(q.col("type_value")+" = ?", key.Value)
}

// ForOwner matches events attached to ref.
func (q *Query) ForOwner(ref model.OwnerRef) *Query {
	return q.where(q.col("owner_id")+" = ? AND "+q.col("owner_type")+" = ?", ref.ID, ref.Type)
}

// WhereData matches payloads containing the reference structure. Empty
// references match everything; scalars compare the whole payload; nested
// structures constrain only the given leaves.
func (q *Query) WhereData(data any) *Query {
	ref, err := NormalizeReference(data)
	if err != nil {
		return q.fail(err)
	}
	if ref.Empty {
		return q
	}
	column := q.col("data")
	if ref.Scalar != nil {
		cond, args := q.db.dialect.DataEquals(column, ref.Scalar)
		return q.where(cond, args...)
	}
	for _, leaf := range ref.Leaves {
		cond, args, err := q.db.dialect.PathEquals(column, leaf)
		if err != nil {
			return q.fail(fmt.Errorf("storage: data path %s: %w", leaf.DotPath(), err))
		}
		q.where(cond, args...)
	}
	return q
}

// Latest orders newest first, id breaking created_at ties.
func (q *Query) Latest() *Query {
	q.order = q.col("created_at") + " DESC, " + q.col("id") + " DESC"
	return q
}

// Oldest orders oldest first, id breaking created_at ties.
func (q *Query) Oldest() *Query {
	q.order = q.col("created_at") + " ASC, " + q.col("id") + " ASC"
	return q
}

// Limit caps the number of rows returned by All.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// whereSQL renders " WHERE a AND b" with '?' placeholders.
func (q *Query) whereSQL() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func (q *Query) from() string {
	if q.alias == "" {
		return q.db.quotedTable()
	}
	return q.db.quotedTable() + " " + q.alias
}

// All returns the matching rows.
func (q *Query) All(ctx context.Context) ([]model.Event, error) {
	if q.err != nil {
		return nil, q.err
	}
	query := "SELECT " + q.qualifiedColumns() + " FROM " + q.from() + q.whereSQL()
	if q.order != "" {
		query += " ORDER BY " + q.order
	}
	if q.limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.limit)
	}
	rows, err := q.db.sql.QueryContext(ctx, q.db.dialect.Rebind(query), q.args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query events: %w", classify(err))
	}
	defer rows.Close()
	return scanEvents(rows)
}

// First returns the first row in the query's order, or ErrNotFound.
func (q *Query) First(ctx context.Context) (model.Event, error) {
	events, err := q.Clone().Limit(1).All(ctx)
	if err != nil {
		return model.Event{}, err
	}
	if len(events) == 0 {
		return model.Event{}, ErrNotFound
	}
	return events[0], nil
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	var n int64
	query := "SELECT COUNT(*) FROM " + q.from() + q.whereSQL()
	if err := q.db.sql.QueryRowContext(ctx, q.db.dialect.Rebind(query), q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count events: %w", classify(err))
	}
	return n, nil
}

// Exists reports whether any row matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	if q.err != nil {
		return false, q.err
	}
	var found int
	query := "SELECT 1 FROM " + q.from() + q.whereSQL() + " LIMIT 1"
	err := q.db.sql.QueryRowContext(ctx, q.db.dialect.Rebind(query), q.args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: check events exist: %w", classify(err))
	}
	return true, nil
}

// Delete removes the matching rows and returns how many were deleted.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if q.alias != "" {
		return 0, fmt.Errorf("storage: delete through an aliased query")
	}
	query := "DELETE FROM " + q.from() + q.whereSQL()
	res, err := q.db.sql.ExecContext(ctx, q.db.dialect.Rebind(query), q.args...)
	if err != nil {
		return 0, fmt.Errorf("storage: delete events: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: delete events rows affected: %w", err)
	}
	return n, nil
}

func (q *Query) qualifiedColumns() string {
	if q.alias == "" {
		return eventColumns
	}
	cols := strings.Split(eventColumns, ", ")
	for i, c := range cols {
		cols[i] = q.col(c)
	}
	return strings.Join(cols, ", ")
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e    model.Event
		data sql.NullString
	)
	if err := row.Scan(
		&e.ID, &e.TypeAlias, &e.TypeValue, &data, &e.OwnerID, &e.OwnerType,
		sqlTime{&e.CreatedAt}, sqlTime{&e.UpdatedAt},
	); err != nil {
		return model.Event{}, fmt.Errorf("storage: scan event: %w", err)
	}
	if data.Valid {
		e.Data = json.RawMessage(data.String)
	}
	return e, nil
}

// typeValues flattens OfType arguments into type_value strings.
func typeValues(values []any) ([]string, error) {
	var out []string
	for _, v := range values {
		switch x := v.(type) {
		case nil:
			continue
		case model.Case:
			s, err := model.CaseValue(x)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
			continue
		case string:
			out = append(out, x)
			continue
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out = append(out, strconv.FormatInt(rv.Int(), 10))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, strconv.FormatUint(rv.Uint(), 10))
		case reflect.Slice, reflect.Array:
			nested := make([]any, rv.Len())
			for i := range nested {
				nested[i] = rv.Index(i).Interface()
			}
			flat, err := typeValues(nested)
			if err != nil {
				return nil, err
			}
			out = append(out, flat...)
		default:
			return nil, fmt.Errorf("%w: %T", model.ErrUnsupportedCase, v)
		}
	}
	return out, nil
}

// timeArg encodes a timestamp for comparison against created_at.
func (q *Query) timeArg(t time.Time) any {
	return q.db.dialect.TimeArg(t)
}
