package events

import (
	"context"
	"fmt"

	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/storage"
)

// OwnerQuery filters the rows of an owner table by event history, taking
// cases instead of raw keys. Errors are kept until a terminal call.
type OwnerQuery struct {
	s   *Service
	q   *storage.OwnerQuery
	err error
}

// Owners starts an owner query over table, whose rows have the given kind.
func (s *Service) Owners(table, kind string) *OwnerQuery {
	return &OwnerQuery{s: s, q: s.db.Owners(table, kind)}
}

// OwnersOf is Owners with the kind taken from the morph map entry of sample.
func (s *Service) OwnersOf(table string, sample any) *OwnerQuery {
	kind, ok := s.morphs.KindOf(sample)
	o := s.Owners(table, kind)
	if !ok {
		o.err = fmt.Errorf("events: owner kind for %T is not mapped", sample)
	}
	return o
}

func (o *OwnerQuery) key(c model.Case) (model.EventKey, bool) {
	if o.err != nil {
		return model.EventKey{}, false
	}
	key, err := o.s.Key(c)
	if err != nil {
		o.err = fmt.Errorf("events: owner predicate: %w", err)
		return model.EventKey{}, false
	}
	return key, true
}

// IDColumn overrides the owner primary key column.
func (o *OwnerQuery) IDColumn(col string) *OwnerQuery {
	o.q.IDColumn(col)
	return o
}

// Where adds a raw owner-table condition.
func (o *OwnerQuery) Where(cond string, args ...any) *OwnerQuery {
	o.q.Where(cond, args...)
	return o
}

// WhereEventHasHappened keeps owners with an event of c matching data.
func (o *OwnerQuery) WhereEventHasHappened(c model.Case, data any) *OwnerQuery {
	if key, ok := o.key(c); ok {
		o.q.WhereEventHasHappened(key, data)
	}
	return o
}

// WhereEventHasntHappened keeps owners without an event of c matching data.
func (o *OwnerQuery) WhereEventHasntHappened(c model.Case, data any) *OwnerQuery {
	if key, ok := o.key(c); ok {
		o.q.WhereEventHasntHappened(key, data)
	}
	return o
}

// WhereEventHasHappenedExactly keeps owners with exactly n matching events.
func (o *OwnerQuery) WhereEventHasHappenedExactly(c model.Case, n int, data any) *OwnerQuery {
	if key, ok := o.key(c); ok {
		o.q.WhereEventHasHappenedExactly(key, n, data)
	}
	return o
}

// WhereEventHasHappenedAtLeast keeps owners with n or more matching events.
func (o *OwnerQuery) WhereEventHasHappenedAtLeast(c model.Case, n int, data any) *OwnerQuery {
	if key, ok := o.key(c); ok {
		o.q.WhereEventHasHappenedAtLeast(key, n, data)
	}
	return o
}

// WhereLatestEventIs keeps owners whose most recent event is c.
func (o *OwnerQuery) WhereLatestEventIs(c model.Case) *OwnerQuery {
	if key, ok := o.key(c); ok {
		o.q.WhereLatestEventIs(key)
	}
	return o
}

// Predicate returns the combined condition for embedding in a caller's query.
func (o *OwnerQuery) Predicate() (string, []any, error) {
	if o.err != nil {
		return "", nil, o.err
	}
	return o.q.Predicate()
}

// IDs returns the matching owner ids in ascending order.
func (o *OwnerQuery) IDs(ctx context.Context) ([]int64, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.q.IDs(ctx)
}

// Count returns the number of matching owners.
func (o *OwnerQuery) Count(ctx context.Context) (int64, error) {
	if o.err != nil {
		return 0, o.err
	}
	return o.q.Count(ctx)
}
