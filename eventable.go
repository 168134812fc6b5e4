// Package eventable attaches typed, enumerated events to arbitrary owner
// records and prunes them according to per-case retention policies.
//
// Applications declare their event enums once and embed an App:
//
//	app, err := eventable.New(ctx,
//	    eventable.WithType("order", eventable.TypeOf(Placed, Shipped, Refunded)),
//	    eventable.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer app.Close(ctx)
//
//	_, err = app.AddEvent(ctx, user, Placed, map[string]any{"total": 42})
//
// The import graph keeps internal/* free of this package: the root wires
// storage, registry and services together and re-exports the types callers
// need through aliases in types.go.
package eventable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/aarondfrancis/eventable/internal/config"
	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/morph"
	"github.com/aarondfrancis/eventable/internal/registry"
	"github.com/aarondfrancis/eventable/internal/service/events"
	"github.com/aarondfrancis/eventable/internal/service/prune"
	"github.com/aarondfrancis/eventable/internal/storage"
	"github.com/aarondfrancis/eventable/internal/telemetry"
	"github.com/aarondfrancis/eventable/migrations"
)

// App is one configured event store with its registry and services.
// Construct with New and release with Close.
type App struct {
	cfg          config.Config
	db           *storage.DB
	registry     *registry.Registry
	morphs       *morph.Map
	events       *events.Service
	engine       *prune.Engine
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New loads configuration, connects to the store, runs the embedded
// migrations when enabled and assembles the registry from the catalog plus
// the given options.
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	// Load .env file if present (non-fatal; production won't have one).
	if !o.skipDotenv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, storage.Options{
		Driver:   cfg.Driver,
		DSN:      cfg.DatabaseURL,
		Table:    cfg.Table,
		Logger:   logger,
		Clock:    o.clock,
		Location: cfg.Location(),
	})
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, err
	}
	if err := db.RegisterMetrics(); err != nil {
		logger.Warn("eventable: register store metrics", "error", err)
	}

	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, err
		}
	} else {
		logger.Info("eventable: embedded migrations skipped by config")
	}

	reg, err := buildRegistry(cfg, o)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, err
	}

	morphs := o.morphs
	if morphs == nil {
		morphs = morph.New()
	}
	for _, m := range o.morphEntries {
		morphs.Register(m.kind, m.sample)
	}
	if cfg.RegisterMorphMap {
		morphs.Register(cfg.MorphAlias, model.Event{})
	}

	logger.Info("eventable: ready",
		"version", version,
		"driver", db.Dialect().Name(),
		"table", db.Table(),
		"event_types", len(reg.All()),
	)

	return &App{
		cfg:          cfg,
		db:           db,
		registry:     reg,
		morphs:       morphs,
		events:       events.New(db, reg, morphs, logger),
		engine:       prune.NewEngine(db, reg, logger),
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

func buildRegistry(cfg config.Config, o resolvedOptions) (*registry.Registry, error) {
	reg := o.registry
	if reg == nil {
		reg = registry.Default()
	}
	if len(cfg.EventTypes) > 0 {
		static := make(map[string]model.TypeID, len(cfg.EventTypes))
		for alias, id := range cfg.EventTypes {
			static[alias] = model.TypeID(id)
		}
		reg.SetStatic(static)
	}
	reg.Declare(o.declared...)
	for _, r := range o.registrations {
		reg.Register(r.alias, r.typ)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("eventable: event type catalog: %w", err)
	}
	return reg, nil
}

// Close releases the store and flushes telemetry.
func (a *App) Close(ctx context.Context) {
	a.db.Close()
	if err := a.otelShutdown(ctx); err != nil {
		a.logger.Warn("eventable: telemetry shutdown", "error", err)
	}
}

// Registry returns the alias <-> event type table the App resolves through.
func (a *App) Registry() *Registry { return a.registry }

// Morphs returns the owner kind table.
func (a *App) Morphs() *MorphMap { return a.morphs }

// Store returns the underlying event store.
func (a *App) Store() *Store { return a.db }

// Register adds a runtime alias for t. Runtime registrations win over the
// catalog on alias collision. A registration that would give a type a second
// alias is rejected and leaves the registry unchanged.
func (a *App) Register(alias string, t Type) error {
	if err := a.registry.TryRegister(alias, t); err != nil {
		return fmt.Errorf("eventable: register %q: %w", alias, err)
	}
	return nil
}

// AddEvent appends an event of case c to owner. data may be nil, a scalar, or
// any JSON-serializable structure.
func (a *App) AddEvent(ctx context.Context, owner Owner, c Case, data any) (Event, error) {
	return a.events.AddEvent(ctx, owner, c, data)
}

// HasEvent reports whether owner has an event of case c whose payload
// contains data. A nil or empty data matches any payload.
func (a *App) HasEvent(ctx context.Context, owner Owner, c Case, data any) (bool, error) {
	return a.events.HasEvent(ctx, owner, c, data)
}

// EventCount counts owner's events of case c, or all of its events when c is nil.
func (a *App) EventCount(ctx context.Context, owner Owner, c Case) (int64, error) {
	return a.events.EventCount(ctx, owner, c)
}

// LatestEvent returns owner's most recent event of case c (any case when nil).
func (a *App) LatestEvent(ctx context.Context, owner Owner, c Case) (Event, bool, error) {
	return a.events.LatestEvent(ctx, owner, c)
}

// FirstEvent returns owner's oldest event of case c (any case when nil).
func (a *App) FirstEvent(ctx context.Context, owner Owner, c Case) (Event, bool, error) {
	return a.events.FirstEvent(ctx, owner, c)
}

// EventsOf starts a query over owner's events.
func (a *App) EventsOf(owner Owner) (*Query, error) {
	return a.events.Events(owner)
}

// OfCase starts a query over every event of case c.
func (a *App) OfCase(c Case) (*Query, error) {
	return a.events.OfCase(c)
}

// Events starts an unscoped query over the events table.
func (a *App) Events() *Query {
	return a.db.Events()
}

// Owners starts an owner filter over table for owners of the given kind.
func (a *App) Owners(table, kind string) *OwnerQuery {
	return a.events.Owners(table, kind)
}

// OwnersOf is Owners with the kind taken from sample's morph mapping.
func (a *App) OwnersOf(table string, sample any) *OwnerQuery {
	return a.events.OwnersOf(table, sample)
}

// Prune applies every discovered retention policy. With dryRun the matching
// rows are counted but not deleted. ErrNoPruneableTypes is returned when no
// registered event type declares a policy.
func (a *App) Prune(ctx context.Context, dryRun bool) (PruneReport, error) {
	if a.cfg.PruneTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.PruneTimeout)
		defer cancel()
	}
	report, err := a.engine.Run(ctx, dryRun)
	if err != nil && !errors.Is(err, prune.ErrNoPruneableTypes) {
		a.logger.Error("eventable: prune failed", "run_id", report.RunID.String(), "error", err)
	}
	return report, err
}

// LastPrune returns the most recent prune run that deleted rows, as recorded
// in the prune log. ok is false before the first run.
func (a *App) LastPrune(ctx context.Context) (run PruneRun, ok bool, err error) {
	return a.db.LastPruneRun(ctx)
}

// Now returns the store clock's current time.
func (a *App) Now() time.Time { return a.db.Now() }
