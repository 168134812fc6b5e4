package storage_test

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/storage"
	"github.com/aarondfrancis/eventable/internal/testutil"
	"github.com/aarondfrancis/eventable/migrations"
)

// base is a Wednesday; the surrounding week starts Monday 2026-06-15.
var base = time.Date(2026, 6, 17, 12, 0, 0, 0, time.UTC)

type lifecycle int

const (
	created lifecycle = iota + 1
	viewed
	updated
)

func (l lifecycle) String() string {
	switch l {
	case created:
		return "Created"
	case viewed:
		return "Viewed"
	case updated:
		return "Updated"
	}
	return "Unknown"
}

var (
	alice = model.OwnerRef{ID: 1, Type: "user"}
	bob   = model.OwnerRef{ID: 2, Type: "user"}
	post1 = model.OwnerRef{ID: 1, Type: "post"}
)

func key(l lifecycle) model.EventKey {
	v, _ := model.CaseValue(l)
	return model.EventKey{Alias: "lifecycle", Value: v}
}

// newStore is overridden by the integration build to target PostgreSQL.
var newStore = func(t *testing.T) (*storage.DB, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(base)
	return testutil.NewSQLiteDB(t, clock), clock
}

func insert(t *testing.T, db *storage.DB, k model.EventKey, owner model.OwnerRef, data any, at time.Time) model.Event {
	t.Helper()
	raw, err := model.EncodeData(data)
	require.NoError(t, err)
	e, err := db.InsertEvent(context.Background(), storage.NewEvent{Key: k, Owner: owner, Data: raw, CreatedAt: at})
	require.NoError(t, err)
	return e
}

func count(t *testing.T, q *storage.Query) int64 {
	t.Helper()
	n, err := q.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestInsertAndGetEvent(t *testing.T) {
	db, _ := newStore(t)
	ctx := context.Background()

	e := insert(t, db, key(created), alice, map[string]any{"ip": "10.0.0.1", "n": 3}, time.Time{})
	require.NotZero(t, e.ID)

	got, err := db.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "lifecycle", got.TypeAlias)
	assert.Equal(t, "1", got.TypeValue)
	assert.Equal(t, alice, got.Owner())
	assert.JSONEq(t, `{"ip":"10.0.0.1","n":3}`, string(got.Data))
	assert.True(t, got.CreatedAt.Equal(base), "created_at defaults to the store clock")
	assert.True(t, got.UpdatedAt.Equal(got.CreatedAt))

	_, err = db.GetEvent(ctx, e.ID+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsertEventNullData(t *testing.T) {
	db, _ := newStore(t)

	e := insert(t, db, key(viewed), alice, nil, base)
	got, err := db.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.False(t, got.HasData())
	assert.Nil(t, got.Data)
}

func TestInsertEventsBulk(t *testing.T) {
	db, _ := newStore(t)
	ctx := context.Background()

	rows := make([]storage.NewEvent, 5)
	for i := range rows {
		rows[i] = storage.NewEvent{Key: key(viewed), Owner: bob, CreatedAt: base.Add(-time.Duration(i) * time.Hour)}
	}
	n, err := db.InsertEvents(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, int64(5), count(t, db.Events().ForOwner(bob).OfKey(key(viewed))))

	n, err = db.InsertEvents(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOfType(t *testing.T) {
	db, _ := newStore(t)
	insert(t, db, key(created), alice, nil, base)
	insert(t, db, key(viewed), alice, nil, base)
	insert(t, db, key(viewed), bob, nil, base)
	insert(t, db, key(updated), bob, nil, base)

	assert.Equal(t, int64(2), count(t, db.Events().OfType(viewed)))
	assert.Equal(t, int64(2), count(t, db.Events().OfType("2")))
	assert.Equal(t, int64(3), count(t, db.Events().OfType([]lifecycle{created, viewed})))
	assert.Equal(t, int64(2), count(t, db.Events().OfType(1, 4, updated)))
	assert.Zero(t, count(t, db.Events().OfType()))
	assert.Equal(t, int64(4), count(t, db.Events().OfTypeAlias("lifecycle")))
	assert.Zero(t, count(t, db.Events().OfTypeAlias("other")))

	_, err := db.Events().OfType(3.5).Count(context.Background())
	assert.ErrorIs(t, err, model.ErrUnsupportedCase)
}

func TestForOwnerUsesKindAndID(t *testing.T) {
	db, _ := newStore(t)
	insert(t, db, key(created), alice, nil, base)
	insert(t, db, key(created), post1, nil, base)

	assert.Equal(t, int64(1), count(t, db.Events().ForOwner(alice)))
	assert.Equal(t, int64(1), count(t, db.Events().ForOwner(post1)))
	assert.Zero(t, count(t, db.Events().ForOwner(model.OwnerRef{ID: 1, Type: "comment"})))
}

func TestWhereData(t *testing.T) {
	db, _ := newStore(t)
	insert(t, db, key(viewed), alice, map[string]any{"a": map[string]any{"b": 1}, "c": "x"}, base)
	insert(t, db, key(viewed), alice, map[string]any{"a": map[string]any{"b": 2}}, base)
	insert(t, db, key(viewed), alice, map[string]any{"a": map[string]any{"b": 1}}, base)
	insert(t, db, key(viewed), alice, nil, base)
	insert(t, db, key(viewed), alice, "hello", base)
	insert(t, db, key(viewed), alice, map[string]any{"flag": true, "tags": []string{"go", "sql"}}, base)
	insert(t, db, key(viewed), alice, map[string]any{"flag": 1, "missing": nil}, base)
	insert(t, db, key(viewed), alice, map[string]any{`a"b`: 1, `c\d`: 2, "e.f": 3}, base)

	tests := []struct {
		name string
		data any
		want int64
	}{
		{"nil is identity", nil, 8},
		{"empty map is identity", map[string]any{}, 8},
		{"empty slice is identity", []any{}, 8},
		{"nested leaf", map[string]any{"a": map[string]any{"b": 1}}, 2},
		{"siblings constrain", map[string]any{"a": map[string]any{"b": 1}, "c": "x"}, 1},
		{"no match", map[string]any{"a": map[string]any{"b": 3}}, 0},
		{"scalar compares whole payload", "hello", 1},
		{"bool is not an integer", map[string]any{"flag": true}, 1},
		{"integer is not a bool", map[string]any{"flag": 1}, 1},
		{"array position", map[string]any{"tags": []string{"go"}}, 1},
		{"explicit null", map[string]any{"missing": nil}, 1},
		{"key with quote", map[string]any{`a"b`: 1}, 1},
		{"key with backslash", map[string]any{`c\d`: 2}, 1},
		{"key with dot", map[string]any{"e.f": 3}, 1},
		{"key with backslash and wrong value", map[string]any{`c\d`: 3}, 0},
		{"struct reference", struct {
			C string `json:"c"`
		}{C: "x"}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, count(t, db.Events().WhereData(tc.data)))
		})
	}
}

func TestLatestAndOldestBreakTiesByID(t *testing.T) {
	db, _ := newStore(t)
	ctx := context.Background()

	first := insert(t, db, key(viewed), alice, nil, base)
	insert(t, db, key(viewed), alice, nil, base)
	last := insert(t, db, key(viewed), alice, nil, base)

	got, err := db.Events().ForOwner(alice).Latest().First(ctx)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.ID)

	got, err = db.Events().ForOwner(alice).Oldest().First(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = db.Events().ForOwner(bob).Latest().First(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAllWithLimit(t *testing.T) {
	db, _ := newStore(t)
	for i := 0; i < 4; i++ {
		insert(t, db, key(viewed), alice, map[string]any{"i": i}, base.Add(time.Duration(i)*time.Minute))
	}
	events, err := db.Events().Latest().Limit(2).All(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"i":3}`, string(events[0].Data))
	assert.JSONEq(t, `{"i":2}`, string(events[1].Data))
}

func TestHappenedAfterBeforeBetween(t *testing.T) {
	db, _ := newStore(t)
	at := base.Add(-time.Hour)
	insert(t, db, key(viewed), alice, nil, at)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	assert.Zero(t, count(t, db.Events().HappenedAfter(at)), "after is strict")
	assert.Zero(t, count(t, db.Events().HappenedBefore(at)), "before is strict")
	assert.Equal(t, int64(1), count(t, db.Events().HappenedAfter(at.Add(-time.Second))))
	assert.Equal(t, int64(1), count(t, db.Events().HappenedAfter(at.Add(-time.Second).In(ny))), "zone does not change the instant")
	assert.Equal(t, int64(1), count(t, db.Events().HappenedBefore(at.Add(time.Second).In(ny))))

	assert.Zero(t, count(t, db.Events().HappenedBetween(at, at.Add(time.Minute))))
	assert.Zero(t, count(t, db.Events().HappenedBetween(at.Add(-time.Minute), at)))
	assert.Equal(t, int64(1), count(t, db.Events().HappenedBetween(at.Add(-time.Minute), at.Add(time.Minute))))
}

func TestHappenedInTheLast(t *testing.T) {
	db, _ := newStore(t)
	insert(t, db, key(viewed), alice, nil, base.AddDate(0, 0, -1))
	insert(t, db, key(viewed), alice, nil, base.AddDate(0, 0, -7))
	insert(t, db, key(viewed), alice, nil, base.AddDate(0, 0, -10))

	assert.Equal(t, int64(2), count(t, db.Events().HappenedInTheLast(7, model.Day)), "cutoff is inclusive")
	assert.Equal(t, int64(1), count(t, db.Events().HasntHappenedInTheLast(7, model.Day)), "cutoff is exclusive")
	assert.Equal(t, int64(3), count(t, db.Events().HappenedInTheLast(1, model.Month)))
	assert.Equal(t, int64(1), count(t, db.Events().HappenedInTheLast(36, model.Hour)))

	_, err := db.Events().HappenedInTheLast(1, model.Unit("fortnight")).Count(context.Background())
	assert.ErrorIs(t, err, model.ErrInvalidUnit)
}

func TestHappenedTodayWeekMonth(t *testing.T) {
	db, _ := newStore(t)
	insert(t, db, key(viewed), alice, nil, base.Add(-11*time.Hour))                 // today, 01:00
	insert(t, db, key(viewed), alice, nil, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)) // Monday midnight
	insert(t, db, key(viewed), alice, nil, time.Date(2026, 6, 14, 23, 0, 0, 0, time.UTC)) // Sunday
	insert(t, db, key(viewed), alice, nil, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))  // month start
	insert(t, db, key(viewed), alice, nil, time.Date(2026, 5, 31, 23, 0, 0, 0, time.UTC))
	insert(t, db, key(viewed), alice, nil, base)                // now
	insert(t, db, key(viewed), alice, nil, base.Add(time.Hour)) // later today

	assert.Equal(t, int64(3), count(t, db.Events().HappenedToday("")), "today covers the whole local day")
	assert.Equal(t, int64(3), count(t, db.Events().HappenedThisWeek("")), "week runs from Monday through now")
	assert.Equal(t, int64(5), count(t, db.Events().HappenedThisMonth("")), "month runs from the first through now")
}

func TestHappenedTodayRespectsZone(t *testing.T) {
	db, clock := newStore(t)
	clock.Set(time.Date(2026, 6, 15, 3, 0, 0, 0, time.UTC)) // 23:00 on June 14 in New York
	insert(t, db, key(viewed), alice, nil, time.Date(2026, 6, 14, 23, 0, 0, 0, time.UTC))

	assert.Zero(t, count(t, db.Events().HappenedToday("UTC")))
	assert.Equal(t, int64(1), count(t, db.Events().HappenedToday("America/New_York")))

	_, err := db.Events().HappenedToday("Mars/Olympus").Count(context.Background())
	assert.ErrorIs(t, err, storage.ErrInvalidTimezone)
}

func TestExistsAndDelete(t *testing.T) {
	db, _ := newStore(t)
	ctx := context.Background()
	insert(t, db, key(viewed), alice, nil, base)
	insert(t, db, key(viewed), bob, nil, base)

	ok, err := db.Events().ForOwner(alice).Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := db.Events().ForOwner(alice).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err = db.Events().ForOwner(alice).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), count(t, db.Events()))
}

func TestCustomTableAndMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    ":memory:",
		Table:  "audit_events",
		Logger: testutil.TestLogger(),
		Clock:  testutil.NewClock(base).Now,
	})
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	}
	_, err = db.InsertEvent(ctx, storage.NewEvent{Key: key(created), Owner: alice})
	require.NoError(t, err)
	assert.Equal(t, "audit_events", db.Table())
	assert.Equal(t, int64(1), count(t, db.Events()))
}
