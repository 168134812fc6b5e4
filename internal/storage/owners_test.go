package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/storage"
)

// withUsers creates a users table holding ids 1..3 and returns its name;
// only users 1 and 2 get events in these tests.
func withUsers(t *testing.T, db *storage.DB) string {
	t.Helper()
	ctx := context.Background()
	table := db.Table() + "_users"
	quoted := db.Dialect().QuoteIdent(table)
	_, err := db.SQL().ExecContext(ctx, `CREATE TABLE `+quoted+` (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	for i, name := range []string{"alice", "bob", "carol"} {
		_, err := db.SQL().ExecContext(ctx,
			db.Dialect().Rebind(`INSERT INTO `+quoted+` (id, name) VALUES (?, ?)`), i+1, name)
		require.NoError(t, err)
	}
	return table
}

func ownerIDs(t *testing.T, q *storage.OwnerQuery) []int64 {
	t.Helper()
	ids, err := q.IDs(context.Background())
	require.NoError(t, err)
	return ids
}

func TestOwnerPredicates(t *testing.T) {
	db, _ := newStore(t)
	table := withUsers(t, db)

	insert(t, db, key(viewed), alice, map[string]any{"page": "home"}, base.Add(-3*time.Second))
	insert(t, db, key(viewed), alice, map[string]any{"page": "docs"}, base.Add(-2*time.Second))
	insert(t, db, key(updated), alice, nil, base.Add(-time.Second))
	insert(t, db, key(viewed), bob, map[string]any{"page": "home"}, base)
	insert(t, db, key(viewed), post1, nil, base) // same id as alice, other kind

	users := func() *storage.OwnerQuery { return db.Owners(table, "user") }

	assert.Equal(t, []int64{1, 2}, ownerIDs(t, users().WhereEventHasHappened(key(viewed), nil)))
	assert.Equal(t, []int64{1}, ownerIDs(t, users().WhereEventHasHappened(key(viewed), map[string]any{"page": "docs"})))
	assert.Equal(t, []int64{3}, ownerIDs(t, users().WhereEventHasntHappened(key(viewed), nil)))
	assert.Equal(t, []int64{2, 3}, ownerIDs(t, users().WhereEventHasntHappened(key(updated), nil)))

	assert.Equal(t, []int64{1}, ownerIDs(t, users().WhereEventHasHappenedExactly(key(viewed), 2, nil)))
	assert.Equal(t, []int64{2}, ownerIDs(t, users().WhereEventHasHappenedExactly(key(viewed), 1, nil)))
	assert.Equal(t, []int64{3}, ownerIDs(t, users().WhereEventHasHappenedExactly(key(viewed), 0, nil)), "zero includes owners without events")
	assert.Equal(t, []int64{1, 2}, ownerIDs(t, users().WhereEventHasHappenedAtLeast(key(viewed), 1, nil)))
	assert.Equal(t, []int64{1, 2}, ownerIDs(t, users().WhereEventHasHappenedAtLeast(key(viewed), 1, map[string]any{"page": "home"})))

	assert.Equal(t, []int64{1}, ownerIDs(t, users().WhereLatestEventIs(key(updated))))
	assert.Equal(t, []int64{2}, ownerIDs(t, users().WhereLatestEventIs(key(viewed))))
	assert.Empty(t, ownerIDs(t, users().WhereLatestEventIs(key(created))))

	combined := users().WhereEventHasHappened(key(viewed), nil).Where("name = ?", "bob")
	n, err := combined.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOwnerPredicateErrors(t *testing.T) {
	db, _ := newStore(t)
	table := withUsers(t, db)

	_, err := db.Owners(table, "user").WhereEventHasHappenedExactly(key(viewed), -1, nil).IDs(context.Background())
	assert.Error(t, err)

	_, _, err = db.Owners(table, "user").WhereEventHasHappened(key(viewed), func() {}).Predicate()
	assert.ErrorIs(t, err, model.ErrInvalidData)

	pred, args, err := db.Owners(table, "user").Predicate()
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", pred)
	assert.Empty(t, args)
}

func TestEventRowsCanOwnEvents(t *testing.T) {
	db, _ := newStore(t)
	parent := insert(t, db, key(created), alice, nil, base)
	insert(t, db, key(viewed), model.OwnerRef{ID: parent.ID, Type: "event"}, nil, base)

	ids := ownerIDs(t, db.Owners(db.Table(), "event").WhereEventHasHappened(key(viewed), nil))
	assert.Equal(t, []int64{parent.ID}, ids)
}
