package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aarondfrancis/eventable/internal/model"
)

// OwnerQuery filters rows of an owning entity's table by their event history.
// Each predicate is a sub-query over the events table correlated on
// (owner_id, owner_type), so it composes with any other owner condition.
type OwnerQuery struct {
	db       *DB
	table    string
	idColumn string
	kind     string
	conds    []string
	args     []any
	err      error
}

// Owners starts a query over table, whose rows are owners of the given kind.
func (db *DB) Owners(table, kind string) *OwnerQuery {
	return &OwnerQuery{db: db, table: table, idColumn: "id", kind: kind}
}

// IDColumn overrides the owner primary key column (default "id").
func (o *OwnerQuery) IDColumn(col string) *OwnerQuery {
	o.idColumn = col
	return o
}

// Err returns the first predicate error.
func (o *OwnerQuery) Err() error {
	return o.err
}

// Where adds a raw condition on the owner table with '?' placeholders.
func (o *OwnerQuery) Where(cond string, args ...any) *OwnerQuery {
	o.conds = append(o.conds, "("+cond+")")
	o.args = append(o.args, args...)
	return o
}

func (o *OwnerQuery) ownerID() string {
	return o.db.dialect.QuoteIdent(o.table) + "." + o.db.dialect.QuoteIdent(o.idColumn)
}

// correlated returns an aliased event query bound to the outer owner row.
func (o *OwnerQuery) correlated(alias string) *Query {
	return o.db.eventsAs(alias).where(
		alias+".owner_id = "+o.ownerID()+" AND "+alias+".owner_type = ?", o.kind)
}

func (o *OwnerQuery) add(cond string, sub *Query) *OwnerQuery {
	if sub.err != nil {
		if o.err == nil {
			o.err = sub.err
		}
		return o
	}
	o.conds = append(o.conds, cond)
	o.args = append(o.args, sub.args...)
	return o
}

func (o *OwnerQuery) matching(key model.EventKey, data any) *Query {
	return o.correlated("ev").OfKey(key).WhereData(data)
}

// WhereEventHasHappened keeps owners with at least one matching event.
func (o *OwnerQuery) WhereEventHasHappened(key model.EventKey, data any) *OwnerQuery {
	sub := o.matching(key, data)
	return o.add("EXISTS (SELECT 1 FROM "+sub.from()+sub.whereSQL()+")", sub)
}

// WhereEventHasntHappened keeps owners with no matching event.
func (o *OwnerQuery) WhereEventHasntHappened(key model.EventKey, data any) *OwnerQuery {
	sub := o.matching(key, data)
	return o.add("NOT EXISTS (SELECT 1 FROM "+sub.from()+sub.whereSQL()+")", sub)
}

// WhereEventHasHappenedExactly keeps owners with exactly n matching events.
// n == 0 includes owners that have no events at all.
func (o *OwnerQuery) WhereEventHasHappenedExactly(key model.EventKey, n int, data any) *OwnerQuery {
	return o.countCompare(key, "=", n, data)
}

// WhereEventHasHappenedAtLeast keeps owners with n or more matching events.
func (o *OwnerQuery) WhereEventHasHappenedAtLeast(key model.EventKey, n int, data any) *OwnerQuery {
	return o.countCompare(key, ">=", n, data)
}

func (o *OwnerQuery) countCompare(key model.EventKey, op string, n int, data any) *OwnerQuery {
	if n < 0 {
		if o.err == nil {
			o.err = fmt.Errorf("storage: negative event count %d", n)
		}
		return o
	}
	sub := o.matching(key, data)
	sub.args = append(sub.args, n)
	return o.add("(SELECT COUNT(*) FROM "+sub.from()+sub.whereSQL()+") "+op+" ?", sub)
}

// WhereLatestEventIs keeps owners whose highest-id event is key. The highest
// id stands in for "most recent", matching Latest's tie-break.
func (o *OwnerQuery) WhereLatestEventIs(key model.EventKey) *OwnerQuery {
	latest := o.correlated("ev_max")
	sub := o.correlated("ev").OfKey(key)
	sub.conds = append(sub.conds,
		"ev.id = (SELECT MAX(ev_max.id) FROM "+latest.from()+latest.whereSQL()+")")
	sub.args = append(sub.args, latest.args...)
	return o.add("EXISTS (SELECT 1 FROM "+sub.from()+sub.whereSQL()+")", sub)
}

// Predicate returns the combined condition with '?' placeholders for callers
// embedding it in their own owner queries. Rebind it with the store dialect.
func (o *OwnerQuery) Predicate() (string, []any, error) {
	if o.err != nil {
		return "", nil, o.err
	}
	if len(o.conds) == 0 {
		return "1 = 1", nil, nil
	}
	return strings.Join(o.conds, " AND "), append([]any(nil), o.args...), nil
}

// IDs returns the matching owner ids in ascending order.
func (o *OwnerQuery) IDs(ctx context.Context) ([]int64, error) {
	pred, args, err := o.Predicate()
	if err != nil {
		return nil, err
	}
	query := "SELECT " + o.ownerID() + " FROM " + o.db.dialect.QuoteIdent(o.table) +
		" WHERE " + pred + " ORDER BY " + o.ownerID()
	rows, err := o.db.sql.QueryContext(ctx, o.db.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query owners: %w", classify(err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan owner id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of matching owners.
func (o *OwnerQuery) Count(ctx context.Context) (int64, error) {
	pred, args, err := o.Predicate()
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM " + o.db.dialect.QuoteIdent(o.table) + " WHERE " + pred
	var n int64
	if err := o.db.sql.QueryRowContext(ctx, o.db.dialect.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count owners: %w", classify(err))
	}
	return n, nil
}
