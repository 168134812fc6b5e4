package eventable_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aarondfrancis/eventable"
)

var now = time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)

type article int

const (
	published article = iota + 1
	viewed
)

func (a article) String() string {
	return [...]string{"", "Published", "Viewed"}[a]
}

func (a article) Prune() *eventable.PruneConfig {
	if a == viewed {
		return eventable.NewPruneConfig(eventable.KeepLast(2), eventable.VaryOnData(false))
	}
	return nil
}

type comment int

func (comment) String() string { return "Commented" }

type post struct{ ID int64 }

func (p post) EventOwnerID() int64 { return p.ID }

func baseOptions(extra ...eventable.Option) []eventable.Option {
	return append([]eventable.Option{
		eventable.WithoutDotenv(),
		eventable.WithDatabaseURL(":memory:"),
		eventable.WithDriver("sqlite"),
		eventable.WithRegistry(eventable.NewRegistry(nil)),
		eventable.WithClock(func() time.Time { return now }),
		eventable.WithOwnerKind("post", post{}),
	}, extra...)
}

func newApp(t *testing.T, extra ...eventable.Option) *eventable.App {
	t.Helper()
	app, err := eventable.New(context.Background(), baseOptions(extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })
	return app
}

func TestAppAttachesEvents(t *testing.T) {
	app := newApp(t, eventable.WithType("article", eventable.TypeOf(published, viewed)))
	ctx := context.Background()
	p := post{ID: 9}

	e, err := app.AddEvent(ctx, p, published, map[string]any{"by": "ada"})
	require.NoError(t, err)
	assert.Equal(t, eventable.OwnerRef{ID: 9, Type: "post"}, e.Owner())
	assert.Equal(t, now, e.CreatedAt)

	ok, err := app.HasEvent(ctx, p, published, map[string]any{"by": "ada"})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := app.EventCount(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = app.AddEvent(ctx, p, comment(1), nil)
	assert.ErrorIs(t, err, eventable.ErrNotRegistered)
}

func TestEventRowsCanOwnEvents(t *testing.T) {
	app := newApp(t, eventable.WithType("article", eventable.TypeOf(published, viewed)))
	ctx := context.Background()

	parent, err := app.AddEvent(ctx, post{ID: 1}, published, nil)
	require.NoError(t, err)
	child, err := app.AddEvent(ctx, parent, viewed, nil)
	require.NoError(t, err)
	assert.Equal(t, eventable.OwnerRef{ID: parent.ID, Type: "event"}, child.Owner())

	latest, ok, err := app.LatestEvent(ctx, parent, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, child.ID, latest.ID)
}

func TestNewRejectsConflictingAliases(t *testing.T) {
	_, err := eventable.New(context.Background(), baseOptions(
		eventable.WithType("article", eventable.TypeOf(published)),
		eventable.WithType("post", eventable.TypeOf(viewed)),
	)...)
	assert.ErrorIs(t, err, eventable.ErrConflict)
}

func TestRejectedRegisterKeepsEarlierAlias(t *testing.T) {
	app := newApp(t, eventable.WithType("article", eventable.TypeOf(published, viewed)))

	err := app.Register("article2", eventable.TypeOf(published, viewed))
	assert.ErrorIs(t, err, eventable.ErrConflict)
	assert.False(t, app.Registry().HasAlias("article2"))

	e, err := app.AddEvent(context.Background(), post{ID: 1}, published, nil)
	require.NoError(t, err)
	assert.Equal(t, "article", e.TypeAlias)
}

func TestNewRejectsBadTable(t *testing.T) {
	_, err := eventable.New(context.Background(), baseOptions(eventable.WithTable("bad table"))...)
	assert.ErrorContains(t, err, "EVENTABLE_TABLE")
}

func TestOptionsOverrideInvalidEnvironment(t *testing.T) {
	t.Setenv("EVENTABLE_TABLE", "bad table")
	app := newApp(t, eventable.WithTable("audit_events"))
	assert.Equal(t, "audit_events", app.Store().Table())
}

func TestRunPrune(t *testing.T) {
	reg := eventable.NewRegistry(nil)
	reg.Register("article", eventable.TypeOf(published, viewed))
	opts := baseOptions(eventable.WithRegistry(reg), eventable.WithDatabaseURL("file:"+t.TempDir()+"/events.db"))

	app, err := eventable.New(context.Background(), opts...)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := app.AddEvent(context.Background(), post{ID: 1}, viewed, map[string]any{"n": i % 2})
		require.NoError(t, err)
	}
	app.Close(context.Background())

	var out, errOut bytes.Buffer
	code := eventable.Run(context.Background(), []string{"prune", "--dry-run"}, &out, &errOut, opts...)
	require.Equal(t, 0, code, errOut.String())
	assert.Equal(t, "Event Viewed: 3 records to prune.\nTotal: 3 records would be pruned.\n", out.String())

	out.Reset()
	code = eventable.Run(context.Background(), []string{"prune"}, &out, &errOut, opts...)
	require.Equal(t, 0, code, errOut.String())
	assert.Equal(t, "Event Viewed: 3 records pruned.\nTotal: 3 records pruned.\n", out.String())

	out.Reset()
	code = eventable.Run(context.Background(), []string{"prune"}, &out, &errOut, opts...)
	require.Equal(t, 0, code)
	assert.Equal(t, "Event Viewed: 0 records pruned.\nTotal: 0 records pruned.\n", out.String())
}

func TestRunPruneWithoutPruneableTypes(t *testing.T) {
	var out, errOut bytes.Buffer
	code := eventable.Run(context.Background(), []string{"prune"}, &out, &errOut,
		baseOptions(eventable.WithType("comment", eventable.TypeOf(comment(1))))...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "No pruneable event types found.")
	assert.Empty(t, out.String())
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 1, eventable.Run(context.Background(), nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "usage: eventable")

	errOut.Reset()
	assert.Equal(t, 1, eventable.Run(context.Background(), []string{"compact"}, &out, &errOut))
	assert.Contains(t, errOut.String(), `unknown command "compact"`)

	assert.Equal(t, 1, eventable.Run(context.Background(), []string{"prune", "--force"}, &out, &errOut))
}
